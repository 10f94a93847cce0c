package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type advisingServiceMock struct {
	items     []models.SubjectEligibility
	checked   []models.Eligibility
	gwa       *models.GwaResult
	report    *models.GradeReport
	err       error
	lastTerm  models.Term
	lastScope models.GwaScope
	lastCheck dto.CheckEligibilityRequest
	studentID string
}

func (m *advisingServiceMock) EligibleSubjects(ctx context.Context, studentID string, term models.Term) ([]models.SubjectEligibility, error) {
	m.studentID = studentID
	m.lastTerm = term
	return m.items, m.err
}

func (m *advisingServiceMock) CheckSubjects(ctx context.Context, studentID string, req dto.CheckEligibilityRequest) ([]models.Eligibility, error) {
	m.studentID = studentID
	m.lastCheck = req
	return m.checked, m.err
}

func (m *advisingServiceMock) Gwa(ctx context.Context, studentID string, scope models.GwaScope) (*models.GwaResult, error) {
	m.studentID = studentID
	m.lastScope = scope
	return m.gwa, m.err
}

func (m *advisingServiceMock) GradeReport(ctx context.Context, studentID string) (*models.GradeReport, error) {
	m.studentID = studentID
	return m.report, m.err
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newAdvisingRouter(svc advisingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAdvisingHandler(svc)
	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	router.GET("/students/:id/eligibility", h.Eligibility)
	router.POST("/students/:id/eligibility/check", h.CheckEligibility)
	router.GET("/students/:id/gwa", h.Gwa)
	router.GET("/students/:id/grades/report", h.GradeReport)
	return router
}

func TestAdvisingHandlerEligibility(t *testing.T) {
	svc := &advisingServiceMock{items: []models.SubjectEligibility{
		{Subject: models.Subject{Code: "CC103"}, Eligibility: models.Eligibility{SubjectCode: "CC103", Missing: []string{"CC102"}, Reasons: []models.BlockReason{models.BlockReasonPrerequisite}}},
		{Subject: models.Subject{Code: "IT201"}, Eligibility: models.Eligibility{SubjectCode: "IT201", Eligible: true}},
	}}
	rec := httptest.NewRecorder()
	newAdvisingRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/stu-1/eligibility?schoolYear=2024-2025&semester=1st", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", svc.studentID)
	assert.Equal(t, models.Term{SchoolYear: "2024-2025", Semester: "1st"}, svc.lastTerm)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, float64(1), env.Meta["eligible_count"])
	var items []models.SubjectEligibility
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2)
}

func TestAdvisingHandlerEligibilityNotFound(t *testing.T) {
	svc := &advisingServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")}
	rec := httptest.NewRecorder()
	newAdvisingRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/ghost/eligibility", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestAdvisingHandlerCheckEligibility(t *testing.T) {
	svc := &advisingServiceMock{checked: []models.Eligibility{{SubjectCode: "CC103", Eligible: true}}}
	router := newAdvisingRouter(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/students/stu-1/eligibility/check", bytes.NewBufferString(`{"subject_codes":["CC103"]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"CC103"}, svc.lastCheck.SubjectCodes)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/students/stu-1/eligibility/check", bytes.NewBufferString(`{"subject_codes":`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvisingHandlerGwaScopes(t *testing.T) {
	value := 1.75
	svc := &advisingServiceMock{gwa: &models.GwaResult{Scope: "cumulative", Value: &value, Available: true}}
	router := newAdvisingRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/stu-1/gwa", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastScope.Cumulative)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/stu-1/gwa?scope=term&schoolYear=2023-2024&semester=2nd", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.lastScope.Cumulative)
	assert.Equal(t, "2023-2024", svc.lastScope.Term.SchoolYear)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/stu-1/gwa?scope=yearly", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvisingHandlerGwaValidatesQuery(t *testing.T) {
	value := 2.0
	svc := &advisingServiceMock{gwa: &models.GwaResult{Scope: "term", Value: &value, Available: true}}
	router := newAdvisingRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/stu-1/gwa?scope=term&schoolYear=2023-2024", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.GwaScope{}, svc.lastScope)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/stu-1/gwa?scope=%20TERM&schoolYear=2023-2024&semester=1st", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.lastScope.Cumulative)
	assert.Equal(t, "1st", svc.lastScope.Term.Semester)
}

func TestAdvisingHandlerGradeReport(t *testing.T) {
	svc := &advisingServiceMock{report: &models.GradeReport{StudentID: "stu-1"}}
	rec := httptest.NewRecorder()
	newAdvisingRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/stu-1/grades/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var report models.GradeReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &report))
	assert.Equal(t, "stu-1", report.StudentID)
}
