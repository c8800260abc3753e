package sessions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/documents"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/internal/shared/server/middleware"
	"resume-optimizer/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the sessions service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.create)
	rg.GET("/sessions", h.list)
	rg.GET("/sessions/:id", h.state)
	rg.GET("/sessions/:id/progress", h.progress)
	rg.POST("/sessions/:id/steps", h.executeStep)
	rg.POST("/sessions/:id/input", h.recordInput)
	rg.POST("/sessions/:id/rollback", h.rollback)
	rg.GET("/sessions/:id/versions/:version", h.version)
	rg.GET("/sessions/:id/download", h.download)
	rg.DELETE("/sessions/:id", h.remove)
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	state, err := h.Svc.Create(c.Request.Context(), userID, CreateParams{
		DocumentID:   req.DocumentID,
		Text:         req.Text,
		Requirements: req.Requirements,
		TargetRole:   req.TargetRole,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create session", nil)
		}
		return
	}

	respond.Created(c, state)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	respond.JSON(c, http.StatusOK, h.Svc.List(userID))
}

func (h *Handler) state(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	state, err := h.Svc.State(userID, c.Param("id"))
	if err != nil {
		h.respondErr(c, err, "failed to fetch session")
		return
	}
	respond.JSON(c, http.StatusOK, state)
}

func (h *Handler) progress(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	progress, err := h.Svc.Progress(userID, c.Param("id"))
	if err != nil {
		h.respondErr(c, err, "failed to fetch progress")
		return
	}
	respond.JSON(c, http.StatusOK, progress)
}

func (h *Handler) executeStep(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req executeStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	var input *pipeline.StepInput
	if req.Input != nil {
		in, err := req.Input.toStepInput()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		input = &in
	}

	result, err := h.Svc.ExecuteStep(c.Request.Context(), userID, c.Param("id"), req.Stage, input)
	if err != nil {
		h.respondErr(c, err, "failed to execute step")
		return
	}
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) recordInput(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req recordInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	input, err := req.toStepInput()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	state, err := h.Svc.RecordInput(userID, c.Param("id"), req.Stage, input)
	if err != nil {
		h.respondErr(c, err, "failed to record input")
		return
	}
	respond.JSON(c, http.StatusOK, state)
}

func (h *Handler) rollback(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	state, err := h.Svc.Rollback(userID, c.Param("id"))
	if err != nil {
		h.respondErr(c, err, "failed to roll back")
		return
	}
	respond.JSON(c, http.StatusOK, state)
}

func (h *Handler) version(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	n, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "version must be a number", nil)
		return
	}

	version, err := h.Svc.Version(userID, c.Param("id"), n)
	if err != nil {
		h.respondErr(c, err, "failed to fetch version")
		return
	}
	respond.JSON(c, http.StatusOK, version)
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	fileName, data, err := h.Svc.DownloadLatest(userID, c.Param("id"))
	if err != nil {
		h.respondErr(c, err, "failed to render download")
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	if err := h.Svc.Delete(userID, c.Param("id")); err != nil {
		h.respondErr(c, err, "failed to delete session")
		return
	}
	c.Status(http.StatusNoContent)
}

// respondErr maps service and pipeline errors onto the HTTP envelope.
func (h *Handler) respondErr(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
	case errors.Is(err, ErrNoVersions):
		respond.Error(c, http.StatusConflict, "no_versions", "session has no document versions yet", nil)
	case errors.Is(err, pipeline.ErrUnknownStage):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, pipeline.ErrSessionComplete):
		respond.Error(c, http.StatusConflict, "session_complete", "session is already complete", nil)
	case errors.Is(err, pipeline.ErrStepInFlight):
		respond.Error(c, http.StatusConflict, "step_in_flight", "a step is already executing", nil)
	case errors.Is(err, pipeline.ErrNothingToRollback):
		respond.Error(c, http.StatusConflict, "nothing_to_rollback", "no previous step to roll back to", nil)
	case errors.Is(err, pipeline.ErrNoSuchVersion):
		respond.Error(c, http.StatusNotFound, "not_found", "document version not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
