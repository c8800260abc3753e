package optimizations

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/documents"
	"resume-optimizer/internal/shared/server/middleware"
	"resume-optimizer/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the optimizations service.
type Handler struct {
	Svc  *Service
	poll *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, poll: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches optimization routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/optimizations", h.create)
	rg.GET("/optimizations", h.list)
	rg.GET("/optimizations/:id", h.get)
	rg.GET("/optimizations/:id/download", h.download)
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createOptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	opt, err := h.Svc.Create(ctx, userID, CreateParams{
		DocumentID:    req.DocumentID,
		Requirements:  req.Requirements,
		TargetRole:    req.TargetRole,
		SectionInputs: req.SectionInputs,
		ProjectPolicy: req.ProjectPolicy,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start optimization", nil)
		}
		return
	}

	respond.Accepted(c, gin.H{
		"optimizationId": opt.ID,
		"status":         opt.Status,
	})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	optimizationID := c.Param("id")

	if !h.poll.Allow(userID, optimizationID) {
		c.Header("Retry-After", strconv.Itoa(h.poll.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "Polling too frequently; slow down.", nil)
		return
	}

	opt, err := h.Svc.Get(c.Request.Context(), userID, optimizationID)
	if err != nil {
		h.respondErr(c, err, "failed to fetch optimization")
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(opt))
}

func (h *Handler) list(c *gin.Context) {
	if middleware.IsGuestFromContext(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.respondErr(c, err, "failed to list optimizations")
		return
	}

	respond.JSON(c, http.StatusOK, toResponses(runs))
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	optimizationID := c.Param("id")

	opt, body, err := h.Svc.OpenArtifact(c.Request.Context(), userID, optimizationID)
	if err != nil {
		h.respondErr(c, err, "failed to load optimization artifact")
		return
	}
	defer body.Close()

	fileName := path.Base(opt.ResultKey)

	c.Header("Content-Type", docxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}

func (h *Handler) respondErr(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "optimization not found", nil)
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusConflict, "not_ready", "optimization has no downloadable result yet", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
