package subscription

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/askmeter/internal/logging"
)

// Handler provides HTTP endpoints for bundle management.
type Handler struct {
	service *Service
}

// NewHandler creates a new subscription handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the subscription routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/subscriptions", h.CreateBundle)
	r.GET("/subscriptions/:id", h.GetBundle)
	r.GET("/subscriptions/user/:userId", h.ListBundles)
	r.GET("/subscriptions/user/:userId/active", h.ListActiveBundles)
	r.GET("/subscriptions/user/:userId/history", h.ListHistory)
	r.PATCH("/subscriptions/:id/auto-renew", h.ToggleAutoRenew)
	r.DELETE("/subscriptions/:id", h.CancelBundle)
}

// CreateBundle handles POST /v1/subscriptions.
func (h *Handler) CreateBundle(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "userId, bundleType and billingCycle required"})
		return
	}

	b, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidBundleType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_bundle_type", "message": "bundleType must be Basic, Pro, or Enterprise"})
		case errors.Is(err, ErrInvalidBillingCycle):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_billing_cycle", "message": "billingCycle must be monthly or yearly"})
		default:
			logging.L(c.Request.Context()).Error("failed to create bundle", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create bundle"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bundle": b})
}

// GetBundle handles GET /v1/subscriptions/:id.
func (h *Handler) GetBundle(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBundleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "bundle not found"})
			return
		}
		logging.L(c.Request.Context()).Error("failed to load bundle", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load bundle"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundle": b})
}

// ListBundles handles GET /v1/subscriptions/user/:userId.
func (h *Handler) ListBundles(c *gin.Context) {
	bundles, err := h.service.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list bundles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list bundles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundles": bundles, "count": len(bundles)})
}

// ListActiveBundles handles GET /v1/subscriptions/user/:userId/active.
func (h *Handler) ListActiveBundles(c *gin.Context) {
	bundles, err := h.service.ListActiveByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list active bundles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list bundles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundles": bundles, "count": len(bundles)})
}

// ListHistory handles GET /v1/subscriptions/user/:userId/history.
func (h *Handler) ListHistory(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context(), c.Param("userId"))
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list usage history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list usage history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

// ToggleAutoRenew handles PATCH /v1/subscriptions/:id/auto-renew.
func (h *Handler) ToggleAutoRenew(c *gin.Context) {
	var req struct {
		AutoRenew *bool `json:"autoRenew" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AutoRenew == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "autoRenew boolean required"})
		return
	}

	b, err := h.service.ToggleAutoRenew(c.Request.Context(), c.Param("id"), *req.AutoRenew)
	if err != nil {
		h.bundleError(c, err, "failed to update auto-renew")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundle": b})
}

// CancelBundle handles DELETE /v1/subscriptions/:id.
func (h *Handler) CancelBundle(c *gin.Context) {
	b, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.bundleError(c, err, "failed to cancel bundle")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundle": b})
}

func (h *Handler) bundleError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrBundleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "bundle not found"})
	case errors.Is(err, ErrInactiveBundle):
		c.JSON(http.StatusForbidden, gin.H{"error": "inactive_bundle", "message": "bundle is no longer active"})
	default:
		logging.L(c.Request.Context()).Error(logMsg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": logMsg})
	}
}
