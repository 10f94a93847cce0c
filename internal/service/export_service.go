package service

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/export"
)

// Study load export formats.
const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
)

var studyLoadHeaders = []string{"Code", "Subject", "Units", "Section", "Days", "Time", "Room"}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// RenderedDocument is a study load ready to be streamed as a download.
type RenderedDocument struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders study loads into printable documents.
type ExportService struct {
	renderers map[string]documentRenderer
	enabled   bool
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the CSV and PDF exporters.
func NewExportService(enabled bool, logger *zap.Logger, csv, pdf documentRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(map[string]float64{"Subject": 3, "Days": 1.2, "Time": 1.5})
	}
	return &ExportService{
		renderers: map[string]documentRenderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		enabled:   enabled,
		logger:    logger,
	}
}

// RenderStudyLoad renders the load in the requested format.
func (s *ExportService) RenderStudyLoad(load *models.StudyLoad, format string) (*RenderedDocument, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document exports are disabled")
	}
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	body, err := renderer.Render(StudyLoadDocument(load))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render study load")
	}
	s.logger.Debug("study load rendered", zap.String("student_id", load.Student.ID), zap.String("format", renderer.Extension()), zap.Int("bytes", len(body)))
	return &RenderedDocument{
		Filename:    studyLoadFilename(load, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// StudyLoadDocument lays the load out one row per meeting slot. Subjects without slots get a single
// row with blank schedule columns.
func StudyLoadDocument(load *models.StudyLoad) export.Document {
	rows := make([]map[string]string, 0, len(load.Entries))
	for _, entry := range load.Entries {
		base := map[string]string{
			"Code":    entry.SubjectCode,
			"Subject": entry.SubjectName,
			"Units":   formatUnits(entry.Units),
			"Section": entry.SectionCode,
		}
		if len(entry.Slots) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, slot := range entry.Slots {
			row := make(map[string]string, len(studyLoadHeaders))
			for k, v := range base {
				row[k] = v
			}
			row["Days"] = slot.Days
			row["Time"] = slotWindow(slot)
			row["Room"] = slot.Room
			rows = append(rows, row)
		}
	}
	student := load.Student
	return export.Document{
		Title: "Study Load",
		Subtitle: []string{
			fmt.Sprintf("Student: %s %s", student.StudentNumber, student.FullName),
			fmt.Sprintf("Program: %s  Year: %d  Type: %s", student.Course, student.YearLevel, student.StudentType),
			fmt.Sprintf("Term: %s", load.Term),
		},
		Data:   export.Dataset{Headers: studyLoadHeaders, Rows: rows},
		Footer: []string{"Total units: " + formatUnits(load.TotalUnits)},
	}
}

func slotWindow(slot models.ScheduleSlot) string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", slot.StartMinute/60, slot.StartMinute%60, slot.EndMinute/60, slot.EndMinute%60)
}

func formatUnits(units float64) string {
	return strconv.FormatFloat(units, 'f', -1, 64)
}

func studyLoadFilename(load *models.StudyLoad, ext string) string {
	id := load.Student.StudentNumber
	if id == "" {
		id = load.Student.ID
	}
	name := fmt.Sprintf("study_load_%s_%s_%s", id, load.Term.SchoolYear, load.Term.Semester)
	return sanitizeFilename(name) + "." + ext
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
