package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/reqctx"
	"github.com/gin-gonic/gin"
)

type accountUsecaser interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ChangePassword(ctx context.Context, id int64, current, newPassword string) error
	RequestEmailChange(ctx context.Context, id int64, currentPassword, newEmail string) (string, error)
	VerifyEmailChange(ctx context.Context, token string) (*domain.User, error)
	DeleteAccount(ctx context.Context, id int64, password string) error
}

type AccountHandler struct {
	account accountUsecaser
	logger  *slog.Logger
}

func NewAccountHandler(account accountUsecaser, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		account: account,
		logger:  logger.With("component", "account_handler"),
	}
}

// userID reads the id set by the auth middleware.
func userID(c *gin.Context) (int64, bool) {
	id, ok := reqctx.UserID(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	}
	return id, ok
}

// GET /api/auth/user/
func (h *AccountHandler) GetUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	user, err := h.account.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

type settingsRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,max=100"`
	NewPassword     string `json:"new_password"     binding:"omitempty,max=100"`
	Email           string `json:"email"            binding:"omitempty,email,max=254"`
}

// PATCH /api/auth/user/settings/
// A new email only takes effect after the link sent to it is followed.
func (h *AccountHandler) UpdateSettings(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.NewPassword == "" && req.Email == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidRequest})
		return
	}

	ctx := c.Request.Context()
	if req.NewPassword != "" {
		if err := h.account.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
			respondError(c, h.logger, "change password", err)
			return
		}
		req.CurrentPassword = req.NewPassword
	}
	if req.Email != "" {
		if _, err := h.account.RequestEmailChange(ctx, id, req.CurrentPassword, req.Email); err != nil {
			respondError(c, h.logger, "request email change", err)
			return
		}
	}

	user, err := h.account.GetUser(ctx, id)
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type deleteAccountRequest struct {
	Password string `json:"password" binding:"required,max=100"`
}

// POST /api/auth/user/delete/
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.account.DeleteAccount(c.Request.Context(), id, req.Password); err != nil {
		respondError(c, h.logger, "delete account", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

// POST /api/auth/email/verify/
func (h *AccountHandler) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.account.VerifyEmailChange(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.logger, "verify email change", err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
