package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/topodata/geoflow/internal/http/middleware"
	"github.com/topodata/geoflow/internal/model"
	"github.com/topodata/geoflow/internal/service"
)

type Handler struct {
	workflow *service.WorkflowService
	finance  *service.FinanceService
	records  RecordStore
	log      zerolog.Logger
}

func NewHandler(workflow *service.WorkflowService, finance *service.FinanceService, records RecordStore, log zerolog.Logger) *Handler {
	return &Handler{workflow: workflow, finance: finance, records: records, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/projects", h.listProjects)
	protected.GET("/projects/:id", h.getProject)
	protected.POST("/projects/:id/workflow/init", h.initializeWorkflow)
	protected.GET("/projects/:id/checklist", h.projectChecklist)
	protected.GET("/projects/:id/steps/:index", h.selectStep)

	protected.POST("/steps/:stepID/request-approval", h.requestApproval)
	protected.POST("/steps/:stepID/approve", h.approveStep)
	protected.POST("/steps/:stepID/reject", h.rejectStep)
	protected.POST("/steps/:stepID/checklist/toggle", h.toggleChecklistItem)
	protected.PUT("/steps/:stepID/notes", h.saveNotes)
	protected.PUT("/steps/:stepID/document-number", h.setDocumentNumber)
	protected.GET("/steps/:stepID/document", h.stepDocument)

	protected.GET("/cards/:id/invoices", h.cardInvoices)
	protected.GET("/cards/:id/invoices/export", h.exportInvoices)

	protected.GET("/records/:kind", h.listRecords)
	protected.POST("/records/:kind", h.createRecord)
	protected.PUT("/records/:kind/:id", h.updateRecord)
	protected.DELETE("/records/:kind/:id", h.deleteRecord)
}

func (h *Handler) listProjects(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	summaries, err := h.workflow.ListProjects(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": toProjectSummaries(summaries)})
}

func (h *Handler) getProject(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	project, err := h.workflow.GetProject(c.Request.Context(), principal, projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

func (h *Handler) initializeWorkflow(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	project, err := h.workflow.Initialize(c.Request.Context(), principal, projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

func (h *Handler) projectChecklist(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	labels, err := h.workflow.Checklist(c.Request.Context(), principal, projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": labels})
}

func (h *Handler) selectStep(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step index"})
		return
	}
	project, err := h.workflow.GetProject(c.Request.Context(), principal, projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	step, err := h.workflow.SelectStep(project, index)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStepResponse(step))
}

type requestApprovalRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) requestApproval(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stepID, err := parseID(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	var req requestApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, err := h.workflow.RequestApproval(c.Request.Context(), principal, stepID, req.Notes)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

func (h *Handler) approveStep(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stepID, err := parseID(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	project, err := h.workflow.ApproveStep(c.Request.Context(), principal, stepID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

func (h *Handler) rejectStep(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stepID, err := parseID(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	project, err := h.workflow.RejectStep(c.Request.Context(), principal, stepID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

type toggleChecklistRequest struct {
	Item string `json:"item" binding:"required"`
}

func (h *Handler) toggleChecklistItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stepID, err := parseID(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	var req toggleChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	step, err := h.workflow.ToggleChecklistItem(c.Request.Context(), principal, stepID, req.Item)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStepResponse(step))
}

type saveNotesRequest struct {
	Notes string `json:"notes"`
	Flush bool   `json:"flush"`
}

// saveNotes is the autosave flush target. With flush set the payload is
// written immediately; otherwise it is buffered behind the engine's
// debounce.
func (h *Handler) saveNotes(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stepID, err := parseID(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	var req saveNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Flush {
		if err := h.workflow.SaveNotes(c.Request.Context(), principal, stepID, req.Notes); err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": true})
		return
	}
	if err := h.workflow.BufferNotes(c.Request.Context(), principal, stepID, req.Notes); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"buffered": true})
}

type documentNumberRequest struct {
	DocumentNumber string `json:"document_number"`
}

func (h *Handler) setDocumentNumber(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stepID, err := parseID(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	var req documentNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.workflow.SetDocumentNumber(c.Request.Context(), principal, stepID, req.DocumentNumber); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (h *Handler) stepDocument(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stepID, err := parseID(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	result, err := h.workflow.RenderStepDocument(c.Request.Context(), principal, stepID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrStepLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotInitialized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(raw string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(raw))
}

type stepResponse struct {
	ID             string  `json:"id"`
	Position       int     `json:"position"`
	Kind           string  `json:"kind"`
	Label          string  `json:"label"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes"`
	HasDocument    bool    `json:"has_document"`
	DocumentNumber *string `json:"document_number,omitempty"`
}

type projectResponse struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	ServiceName      string         `json:"service_name"`
	ClientName       string         `json:"client_name"`
	CurrentStepIndex int            `json:"current_step_index"`
	Deadline         *string        `json:"deadline,omitempty"`
	Progress         int            `json:"progress"`
	Steps            []stepResponse `json:"steps"`
}

type projectSummaryResponse struct {
	projectResponse
	Urgency string `json:"urgency"`
}

func toStepResponse(step *model.Step) stepResponse {
	return stepResponse{
		ID:             step.ID.String(),
		Position:       step.Position,
		Kind:           string(step.Kind),
		Label:          step.Label,
		Status:         string(step.Status),
		Notes:          step.Notes,
		HasDocument:    step.HasDocument,
		DocumentNumber: step.DocumentNumber,
	}
}

func toProjectResponse(project *model.Project) projectResponse {
	steps := make([]stepResponse, 0, len(project.Steps))
	for i := range project.Steps {
		steps = append(steps, toStepResponse(&project.Steps[i]))
	}
	resp := projectResponse{
		ID:               project.ID.String(),
		Title:            project.Title,
		ServiceName:      project.ServiceName,
		ClientName:       project.ClientName,
		CurrentStepIndex: project.CurrentStepIndex,
		Progress:         service.Progress(project),
		Steps:            steps,
	}
	if project.Deadline != nil {
		deadline := project.Deadline.Format("2006-01-02")
		resp.Deadline = &deadline
	}
	return resp
}

func toProjectSummaries(summaries []service.ProjectSummary) []projectSummaryResponse {
	result := make([]projectSummaryResponse, 0, len(summaries))
	for i := range summaries {
		result = append(result, projectSummaryResponse{
			projectResponse: toProjectResponse(&summaries[i].Project),
			Urgency:         string(summaries[i].Urgency),
		})
	}
	return result
}
