package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Login(ctx context.Context, username, password string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	RedeemPasswordReset(ctx context.Context, token, newPassword string) error
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required,max=100"`
}

// POST /api/auth/login/
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	accessToken, err := h.authUsecase.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": accessToken})
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /api/auth/password/reset/
// Always returns 200 to avoid revealing whether the email exists.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if _, err := h.authUsecase.RequestPasswordReset(c.Request.Context(), req.Email); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		h.logger.ErrorContext(c.Request.Context(), "request password reset", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "If an account exists for this email, a reset link has been sent"})
}

type passwordVerifyRequest struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required,max=100"`
}

// POST /api/auth/password/verify/
func (h *AuthHandler) VerifyPasswordReset(c *gin.Context) {
	var req passwordVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authUsecase.RedeemPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, h.logger, "redeem password reset", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}
