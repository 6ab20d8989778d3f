package chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/askmeter/internal/logging"
	"github.com/mbd888/askmeter/internal/pagination"
	"github.com/mbd888/askmeter/internal/user"
	"github.com/mbd888/askmeter/internal/validation"
)

// Handler provides HTTP endpoints for asking questions.
type Handler struct {
	service *Service
}

// NewHandler creates a new chat handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the chat routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat/ask", h.Ask)
	r.GET("/chat/history/:userId", h.History)
}

// Ask handles POST /v1/chat/ask.
func (h *Handler) Ask(c *gin.Context) {
	var req struct {
		UserID   string `json:"userId" binding:"required"`
		Question string `json:"question" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "userId and question required"})
		return
	}
	if len(req.Question) > validation.MaxQuestionLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_too_long", "message": "question exceeds maximum length"})
		return
	}

	msg, err := h.service.Ask(c.Request.Context(), req.UserID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "user not found"})
		case errors.Is(err, ErrSubscriptionRequired):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "subscription_required", "message": "free allowance exhausted, purchase a bundle to continue"})
		case errors.Is(err, ErrQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "quota_exceeded", "message": "all bundle quotas exhausted"})
		default:
			logging.L(c.Request.Context()).Error("failed to answer question", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to answer question"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// History handles GET /v1/chat/history/:userId.
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid cursor"})
		return
	}

	page, err := h.service.History(c.Request.Context(), c.Param("userId"), cursor, limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load chat history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load chat history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":   page.Messages,
		"count":      len(page.Messages),
		"nextCursor": page.NextCursor,
		"hasMore":    page.HasMore,
	})
}
