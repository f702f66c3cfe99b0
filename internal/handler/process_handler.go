package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicas-api/internal/service"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
	"github.com/noah-isme/practicas-api/pkg/response"
)

// ProcessHandler wires HTTP endpoints to the process service.
type ProcessHandler struct {
	service *service.ProcessService
}

// NewProcessHandler creates a new handler.
func NewProcessHandler(svc *service.ProcessService) *ProcessHandler {
	return &ProcessHandler{service: svc}
}

// Create godoc
// @Summary Register a process
// @Tags Processes
// @Accept json
// @Produce json
// @Param payload body service.CreateProcessRequest true "Process payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /processes [post]
func (h *ProcessHandler) Create(c *gin.Context) {
	var req service.CreateProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid process payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	process, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, process)
}

// Get godoc
// @Summary Get a process
// @Tags Processes
// @Produce json
// @Param id path int true "Process ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /processes/{id} [get]
func (h *ProcessHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	process, err := h.service.Get(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, process, nil)
}

// ListMine godoc
// @Summary List the caller's processes
// @Tags Processes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /processes [get]
func (h *ProcessHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	processes, err := h.service.ListMine(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, processes, nil)
}

// Checklist godoc
// @Summary Export the document checklist as PDF
// @Tags Processes
// @Produce application/pdf
// @Param id path int true "Process ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /processes/{id}/checklist [get]
func (h *ProcessHandler) Checklist(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, filename, err := h.service.ChecklistPDF(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
