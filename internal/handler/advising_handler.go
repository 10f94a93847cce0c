package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/response"
)

type advisingService interface {
	EligibleSubjects(ctx context.Context, studentID string, term models.Term) ([]models.SubjectEligibility, error)
	CheckSubjects(ctx context.Context, studentID string, req dto.CheckEligibilityRequest) ([]models.Eligibility, error)
	Gwa(ctx context.Context, studentID string, scope models.GwaScope) (*models.GwaResult, error)
	GradeReport(ctx context.Context, studentID string) (*models.GradeReport, error)
}

// AdvisingHandler exposes eligibility and GWA endpoints.
type AdvisingHandler struct {
	advising advisingService
}

// NewAdvisingHandler constructs an AdvisingHandler.
func NewAdvisingHandler(advising advisingService) *AdvisingHandler {
	return &AdvisingHandler{advising: advising}
}

// Eligibility godoc
// @Summary List curriculum subjects with eligibility
// @Tags Advising
// @Produce json
// @Param id path string true "Student ID"
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/eligibility [get]
func (h *AdvisingHandler) Eligibility(c *gin.Context) {
	var query dto.TermQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	term := models.Term{SchoolYear: query.SchoolYear, Semester: query.Semester}
	items, err := h.advising.EligibleSubjects(c.Request.Context(), c.Param("id"), term)
	if err != nil {
		response.Error(c, err)
		return
	}
	eligible := 0
	for _, item := range items {
		if item.Eligibility.Eligible {
			eligible++
		}
	}
	middleware.SetMeta(c, "eligible_count", eligible)
	response.JSON(c, http.StatusOK, items, middleware.ExtractMeta(c))
}

// CheckEligibility godoc
// @Summary Evaluate specific subjects for a student
// @Tags Advising
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.CheckEligibilityRequest true "Subject codes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/eligibility/check [post]
func (h *AdvisingHandler) CheckEligibility(c *gin.Context) {
	var req dto.CheckEligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	results, err := h.advising.CheckSubjects(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results)
}

// Gwa godoc
// @Summary Compute a student's general weighted average
// @Tags Advising
// @Produce json
// @Param id path string true "Student ID"
// @Param scope query string false "cumulative or term"
// @Param schoolYear query string false "School year (term scope)"
// @Param semester query string false "Semester (term scope)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/gwa [get]
func (h *AdvisingHandler) Gwa(c *gin.Context) {
	var query dto.GwaQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "scope must be cumulative or term with schoolYear and semester"))
		return
	}
	scope := models.CumulativeScope()
	if query.Scope == "term" {
		scope = models.TermScope(models.Term{SchoolYear: query.SchoolYear, Semester: query.Semester})
	}
	result, err := h.advising.Gwa(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// GradeReport godoc
// @Summary Grades per term with term and cumulative GWA
// @Tags Advising
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/grades/report [get]
func (h *AdvisingHandler) GradeReport(c *gin.Context) {
	report, err := h.advising.GradeReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}
