package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pipeline"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// documentsHandler covers the stage-enumeration and stage-run endpoints of
// spec.md §6.
type documentsHandler struct {
	store    store.DocumentStore
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func newDocumentsHandler(st store.DocumentStore, pl *pipeline.Pipeline, logger *slog.Logger) *documentsHandler {
	return &documentsHandler{store: st, pipeline: pl, logger: logger}
}

func parseDocumentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return uuid.UUID{}, false
	}
	return id, true
}

// ListStages handles GET /api/v1/documents/:id/stages.
func (h *documentsHandler) ListStages(c *gin.Context) {
	stages := make([]gin.H, 0, len(engine.AllStages()))
	for _, st := range engine.AllStages() {
		stages = append(stages, gin.H{"number": st.Number(), "name": st.Name()})
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

// StageStatus handles GET /api/v1/documents/:id/stages/status.
func (h *documentsHandler) StageStatus(c *gin.Context) {
	id, ok := parseDocumentID(c)
	if !ok {
		return
	}

	result, err := h.pipeline.GetStageStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"found": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id":  id,
		"found":        result.Found,
		"stage_status": result.StageStatus,
	})
}

// ProcessStage handles POST /api/v1/documents/:id/process/stage/:stage_name.
func (h *documentsHandler) ProcessStage(c *gin.Context) {
	id, ok := parseDocumentID(c)
	if !ok {
		return
	}

	stage, err := engine.StageByName(c.Param("stage_name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	result, err := h.pipeline.RunSingleStage(c.Request.Context(), id, stage.Name())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         result.Success,
		"stage":           result.Stage,
		"processing_time": result.ProcessingTimeS,
		"data":            result.Data,
		"error":           emptyToNil(result.Error),
	})
}

type processStagesRequest struct {
	Stages      []string `json:"stages"`
	StopOnError bool     `json:"stop_on_error"`
}

// ProcessStages handles POST /api/v1/documents/:id/process/stages.
func (h *documentsHandler) ProcessStages(c *gin.Context) {
	id, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var req processStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	names := make([]string, 0, len(req.Stages))
	for _, raw := range req.Stages {
		st, err := engine.StageByName(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		names = append(names, st.Name())
	}

	doc, err := h.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	result, err := h.pipeline.RunStages(c.Request.Context(), id, names, req.StopOnError)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_stages":  result.TotalStages,
		"successful":    result.Successful,
		"failed":        result.Failed,
		"success_rate":  result.SuccessRate,
		"stage_results": result.StageResults,
	})
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
