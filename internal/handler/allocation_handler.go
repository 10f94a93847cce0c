package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/service"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/response"
)

type allocationService interface {
	Allocate(ctx context.Context, req dto.AllocateRequest) (*models.AllocationResult, error)
	Cancel(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*dto.CancelEnrollmentResponse, error)
	StudyLoad(ctx context.Context, studentID string, term models.Term) (*models.StudyLoad, error)
	SectionCapacity(ctx context.Context, sectionID string) (*models.SectionCapacity, error)
}

type studyLoadRenderer interface {
	RenderStudyLoad(load *models.StudyLoad, format string) (*service.RenderedDocument, error)
}

// AllocationHandler exposes section allocation, cancellation and study-load endpoints.
type AllocationHandler struct {
	allocations allocationService
	exporter    studyLoadRenderer
}

// NewAllocationHandler constructs an AllocationHandler.
func NewAllocationHandler(allocations allocationService, exporter studyLoadRenderer) *AllocationHandler {
	return &AllocationHandler{allocations: allocations, exporter: exporter}
}

var rejectionErrors = map[models.RejectionReason]*appErrors.Error{
	models.RejectionEligibilityBlocked: appErrors.ErrEligibilityBlocked,
	models.RejectionScheduleConflict:   appErrors.ErrScheduleConflict,
	models.RejectionCapacityExceeded:   appErrors.ErrCapacityExceeded,
}

// Allocate godoc
// @Summary Allocate a student to a section for a batch of subjects
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.AllocateRequest true "Allocation request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && !claims.Staff() && claims.StudentID != req.StudentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	result, err := h.allocations.Allocate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Rejection != nil {
		sentinel, ok := rejectionErrors[result.Rejection.Reason]
		if !ok {
			sentinel = appErrors.ErrConflict
		}
		response.Error(c, appErrors.WithDetails(sentinel, result.Rejection.Message, result))
		return
	}
	response.Created(c, result)
}

// CancelEnrollment godoc
// @Summary Cancel an enrollment record
// @Tags Allocations
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/cancel [post]
func (h *AllocationHandler) CancelEnrollment(c *gin.Context) {
	result, err := h.allocations.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// StudyLoad godoc
// @Summary A student's committed subjects and schedule for a term
// @Tags Allocations
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param schoolYear query string true "School year"
// @Param semester query string true "Semester"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/study-load [get]
func (h *AllocationHandler) StudyLoad(c *gin.Context) {
	var query dto.StudyLoadQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "schoolYear and semester are required; format must be json, csv or pdf"))
		return
	}
	load, err := h.allocations.StudyLoad(c.Request.Context(), c.Param("id"), models.Term{SchoolYear: query.SchoolYear, Semester: query.Semester})
	if err != nil {
		response.Error(c, err)
		return
	}
	format := query.Format
	if format == "" || format == service.ExportFormatJSON {
		response.JSON(c, http.StatusOK, load)
		return
	}
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document exports are disabled"))
		return
	}
	doc, err := h.exporter.RenderStudyLoad(load, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Body)
}

// SectionCapacity godoc
// @Summary Live seat counts of a section against its quotas
// @Tags Allocations
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{id}/capacity [get]
func (h *AllocationHandler) SectionCapacity(c *gin.Context) {
	capacity, err := h.allocations.SectionCapacity(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity)
}
