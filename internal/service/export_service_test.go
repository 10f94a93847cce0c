package service

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/export"
)

func sampleStudyLoad() *models.StudyLoad {
	return &models.StudyLoad{
		Student: models.Student{ID: "stu-1", StudentNumber: "2023-0042", FullName: "Ana Cruz", Course: "BSIT", YearLevel: 2, StudentType: models.StudentTypeRegular},
		Term:    models.Term{SchoolYear: "2024-2025", Semester: "1st"},
		Entries: []models.StudyLoadEntry{
			{SubjectCode: "CC103", SubjectName: "Data Structures", Units: 3, SectionCode: "BSIT-2A", Slots: []models.ScheduleSlot{
				{Days: "MWF", StartMinute: 540, EndMinute: 600, Room: "IT-101"},
			}},
			{SubjectCode: "PE3", SubjectName: "Team Sports", Units: 2, SectionCode: "BSIT-2A"},
		},
		TotalUnits: 5,
	}
}

func TestStudyLoadDocumentRows(t *testing.T) {
	doc := StudyLoadDocument(sampleStudyLoad())
	require.Len(t, doc.Data.Rows, 2)
	assert.Equal(t, "09:00-10:00", doc.Data.Rows[0]["Time"])
	assert.Equal(t, "IT-101", doc.Data.Rows[0]["Room"])
	assert.Empty(t, doc.Data.Rows[1]["Days"])
	assert.Equal(t, []string{"Total units: 5"}, doc.Footer)
	assert.Contains(t, doc.Subtitle[2], "2024-2025 1st")
}

func TestRenderStudyLoadCSV(t *testing.T) {
	svc := NewExportService(true, nil, nil, nil)
	doc, err := svc.RenderStudyLoad(sampleStudyLoad(), "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", doc.ContentType)
	assert.Equal(t, "study_load_2023-0042_2024-2025_1st.csv", doc.Filename)
	assert.Equal(t, "Code,Subject,Units,Section,Days,Time,Room\nCC103,Data Structures,3,BSIT-2A,MWF,09:00-10:00,IT-101\nPE3,Team Sports,2,BSIT-2A,,,\n", string(doc.Body))
}

func TestRenderStudyLoadPDF(t *testing.T) {
	svc := NewExportService(true, nil, nil, nil)
	doc, err := svc.RenderStudyLoad(sampleStudyLoad(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
}

type failingRenderer struct{}

func (failingRenderer) Render(export.Document) ([]byte, error) { return nil, errors.New("disk full") }
func (failingRenderer) ContentType() string                    { return "text/csv" }
func (failingRenderer) Extension() string                      { return "csv" }

func TestRenderStudyLoadErrors(t *testing.T) {
	_, err := NewExportService(false, nil, nil, nil).RenderStudyLoad(sampleStudyLoad(), "csv")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = NewExportService(true, nil, nil, nil).RenderStudyLoad(sampleStudyLoad(), "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = NewExportService(true, nil, failingRenderer{}, nil).RenderStudyLoad(sampleStudyLoad(), "csv")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
