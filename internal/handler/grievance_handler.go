package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unioncase/unioncase-api/internal/models"
	"github.com/unioncase/unioncase-api/internal/service"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
	"github.com/unioncase/unioncase-api/pkg/response"
)

// GrievanceHandler wires HTTP endpoints to the grievance workflows.
type GrievanceHandler struct {
	service *service.GrievanceService
	export  *service.ExportService
	metrics *service.MetricsService
}

// NewGrievanceHandler creates a new handler.
func NewGrievanceHandler(svc *service.GrievanceService, export *service.ExportService, metrics *service.MetricsService) *GrievanceHandler {
	return &GrievanceHandler{service: svc, export: export, metrics: metrics}
}

func filterFromQuery(c *gin.Context) models.GrievanceFilter {
	filter := models.GrievanceFilter{
		Status:      c.Query("status"),
		CurrentStep: c.Query("step"),
		Facility:    c.Query("facility"),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// Create godoc
// @Summary File a grievance
// @Description File a new grievance case with its initial contractual deadline
// @Tags Grievances
// @Accept json
// @Produce json
// @Param payload body models.CreateGrievanceRequest true "Grievance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Create(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grievance payload"))
		return
	}

	grievance, err := h.service.Create(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.GrievanceFiled()
	}

	response.Created(c, grievance)
}

// List godoc
// @Summary List grievances
// @Description List cases visible to the caller, filtered and paginated
// @Tags Grievances
// @Produce json
// @Param status query string false "Status filter"
// @Param step query string false "Step filter"
// @Param facility query string false "Facility filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := filterFromQuery(c)
	summaries, total, err := h.service.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	response.JSON(c, http.StatusOK, summaries, &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get grievance detail
// @Description Full case file: timeline, deadlines, documents and notes
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStep godoc
// @Summary Update grievance step
// @Description Move the case to another step of the grievance procedure
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body models.UpdateStepRequest true "Step payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id}/step [patch]
func (h *GrievanceHandler) UpdateStep(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid step payload"))
		return
	}

	grievance, err := h.service.UpdateStep(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grievance, nil)
}

// UpdateStatus godoc
// @Summary Update grievance status
// @Description Change the case disposition (active, resolved, settled, ...)
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body models.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id}/status [patch]
func (h *GrievanceHandler) UpdateStatus(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	grievance, err := h.service.UpdateStatus(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grievance, nil)
}

// AddNote godoc
// @Summary Add a case note
// @Description Append a note; non-internal notes notify the case counterpart
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body models.AddNoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grievances/{id}/notes [post]
func (h *GrievanceHandler) AddNote(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}

	note, err := h.service.AddNote(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, note)
}

// CompleteDeadline godoc
// @Summary Complete a deadline
// @Description Mark a contractual deadline as satisfied
// @Tags Grievances
// @Produce json
// @Param id path string true "Deadline ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /deadlines/{id}/complete [patch]
func (h *GrievanceHandler) CompleteDeadline(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	deadline, err := h.service.CompleteDeadline(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, deadline, nil)
}

// Statistics godoc
// @Summary Dashboard statistics
// @Description Case counts and pending deadlines for the caller's scope
// @Tags Grievances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grievances/statistics [get]
func (h *GrievanceHandler) Statistics(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.service.Statistics(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportPDF godoc
// @Summary Export case file as PDF
// @Description Render the full case file into a downloadable PDF
// @Tags Grievances
// @Produce application/pdf
// @Param id path string true "Grievance ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id}/export [get]
func (h *GrievanceHandler) ExportPDF(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.export.CaseFilePDF(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// ExportCSV godoc
// @Summary Export grievances as CSV
// @Description Export the caller's visible cases as a CSV file
// @Tags Grievances
// @Produce text/csv
// @Param status query string false "Status filter"
// @Param step query string false "Step filter"
// @Success 200 {file} binary
// @Router /grievances/export [get]
func (h *GrievanceHandler) ExportCSV(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.export.GrievancesCSV(c.Request.Context(), scope, filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
