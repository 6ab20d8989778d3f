package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/askmeter/internal/idgen"
	"github.com/mbd888/askmeter/internal/logging"
	"github.com/mbd888/askmeter/internal/validation"
)

// Handler provides HTTP endpoints for account management.
type Handler struct {
	store Store
}

// NewHandler creates a new user handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up the user routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUser)
	r.GET("/users", h.GetUserByEmail)
}

// CreateUser handles POST /v1/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Name  string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and name required"})
		return
	}

	if !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "a valid email address is required"})
		return
	}

	now := time.Now()
	u := &User{
		ID:            idgen.WithPrefix("usr_"),
		Email:         req.Email,
		Name:          validation.SanitizeString(req.Name, validation.MaxNameLength),
		FreeResetDate: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.Create(c.Request.Context(), u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "email already registered"})
			return
		}
		logging.L(c.Request.Context()).Error("failed to create user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// GetUser handles GET /v1/users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "user not found"})
			return
		}
		logging.L(c.Request.Context()).Error("failed to load user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// GetUserByEmail handles GET /v1/users?email=.
func (h *Handler) GetUserByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email query parameter required"})
		return
	}

	u, err := h.store.GetByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "user not found"})
			return
		}
		logging.L(c.Request.Context()).Error("failed to load user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
