package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-registration-api/internal/dto"
	"github.com/noah-isme/lesson-registration-api/internal/middleware"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/internal/service"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
	"github.com/noah-isme/lesson-registration-api/pkg/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type registrationService interface {
	Create(ctx context.Context, req service.CreateRegistrationRequest, opts service.MutationOptions) (*models.Registration, error)
	BulkCreate(ctx context.Context, req service.BulkCreateRegistrationsRequest, opts service.MutationOptions) (*service.BulkCreateResult, error)
	Update(ctx context.Context, id string, req service.UpdateRegistrationRequest, opts service.MutationOptions) (*models.Registration, error)
	Delete(ctx context.Context, id string, opts service.MutationOptions) (*models.Registration, error)
	List(ctx context.Context, period string, filter models.RegistrationFilter) ([]models.Registration, string, error)
}

type auditHistory interface {
	History(ctx context.Context, table, registrationID string) ([]models.AuditRecord, error)
}

type rosterExporter interface {
	Export(ctx context.Context, req service.RosterRequest) (*service.RosterFile, error)
}

// RegistrationHandler exposes the registration lifecycle over HTTP.
type RegistrationHandler struct {
	registrations registrationService
	audit         auditHistory
	roster        rosterExporter
	router        tableResolver
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(registrations registrationService, audit auditHistory, roster rosterExporter, router tableResolver) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, audit: audit, roster: roster, router: router}
}

// Create godoc
// @Summary Register a student for a private lesson or group class
// @Description Targets the enrollment trimester unless trimester is given. Rejected candidates return 409 with the conflict list in error.details.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param trimester query string false "fall, winter, spring, current or enrollment"
// @Param payload body service.CreateRegistrationRequest true "Candidate registration"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	opts, err := mutationOptions(c, h.router)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid registration payload"))
		return
	}
	reg, err := h.registrations.Create(requestContext(c), req, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// BulkCreate godoc
// @Summary Register several candidates at once
// @Description Items are checked in order against the table and the items before them. Without partial_on_error any rejection writes nothing.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param trimester query string false "fall, winter, spring, current or enrollment"
// @Param payload body service.BulkCreateRegistrationsRequest true "Candidates"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/bulk [post]
func (h *RegistrationHandler) BulkCreate(c *gin.Context) {
	opts, err := mutationOptions(c, h.router)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.BulkCreateRegistrationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid bulk registration payload"))
		return
	}
	result, err := h.registrations.BulkCreate(requestContext(c), req, opts)
	if err != nil {
		if result != nil && errors.Is(err, appErrors.ErrConflict) {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil, map[string]interface{}{
		"created":  len(result.Created),
		"rejected": len(result.Rejected),
	})
}

// Update godoc
// @Summary Update the mutable fields of a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param trimester query string false "Defaults to the current trimester"
// @Param payload body service.UpdateRegistrationRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id} [patch]
func (h *RegistrationHandler) Update(c *gin.Context) {
	opts, err := mutationOptions(c, h.router)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid registration update"))
		return
	}
	reg, err := h.registrations.Update(requestContext(c), c.Param("id"), req, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Delete godoc
// @Summary Cancel a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Param trimester query string false "Defaults to the current trimester"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Delete(c *gin.Context) {
	opts, err := mutationOptions(c, h.router)
	if err != nil {
		response.Error(c, err)
		return
	}
	reg, err := h.registrations.Delete(requestContext(c), c.Param("id"), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// List godoc
// @Summary List registrations of a trimester
// @Tags Registrations
// @Produce json
// @Param period query string false "current (default), enrollment, fall, winter or spring"
// @Param studentId query string false "Student filter"
// @Param instructorId query string false "Instructor filter"
// @Param classId query string false "Class filter"
// @Param day query string false "Weekday filter"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	var query dto.RegistrationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query parameters"))
		return
	}
	filter := models.RegistrationFilter{
		StudentID:    strings.TrimSpace(query.StudentID),
		InstructorID: strings.TrimSpace(query.InstructorID),
		ClassID:      strings.TrimSpace(query.ClassID),
	}
	if query.Day != "" {
		day, ok := models.ParseDay(query.Day)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day must be a weekday"))
			return
		}
		filter.Day = day
	}

	regs, table, err := h.registrations.List(requestContext(c), query.Period, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, pagination := paginate(regs, query.Page, query.PageSize)
	middleware.SetMeta(c, "table", table)
	response.JSON(c, http.StatusOK, page, pagination, middleware.ExtractMeta(c))
}

// History godoc
// @Summary Audit history of one registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Param period query string false "current (default), enrollment, fall, winter or spring"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id}/history [get]
func (h *RegistrationHandler) History(c *gin.Context) {
	table, err := h.router.TableFor(c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.audit.History(requestContext(c), table, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "table", table)
	response.JSON(c, http.StatusOK, records, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download a trimester roster
// @Tags Registrations
// @Produce text/csv
// @Produce application/pdf
// @Param period query string false "current (default), enrollment, fall, winter or spring"
// @Param instructorId query string false "Restrict to one instructor"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /registrations/export [get]
func (h *RegistrationHandler) Export(c *gin.Context) {
	var req service.RosterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query parameters"))
		return
	}
	claims := middleware.Claims(c)
	if claims != nil && claims.Role == models.RoleInstructor {
		if req.InstructorID != "" && req.InstructorID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "instructors may only export their own roster"))
			return
		}
		req.InstructorID = claims.UserID
	}
	file, err := h.roster.Export(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

func paginate(regs []models.Registration, page, size int) ([]models.Registration, *models.Pagination) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	start := (page - 1) * size
	if start > len(regs) {
		start = len(regs)
	}
	end := start + size
	if end > len(regs) {
		end = len(regs)
	}
	return regs[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: len(regs)}
}
