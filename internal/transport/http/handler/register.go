package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/usecase"
	"github.com/gin-gonic/gin"
)

type registrationUsecaser interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*domain.User, error)
	VerifyRegistrationToken(ctx context.Context, token string) (*domain.UserInvite, error)
	UsernameAvailable(ctx context.Context, username string) error
	EmailAvailable(ctx context.Context, email string) error
}

type RegisterHandler struct {
	registration registrationUsecaser
	avatars      *AvatarStore
	logger       *slog.Logger
}

func NewRegisterHandler(registration registrationUsecaser, avatars *AvatarStore, logger *slog.Logger) *RegisterHandler {
	return &RegisterHandler{
		registration: registration,
		avatars:      avatars,
		logger:       logger.With("component", "register_handler"),
	}
}

type registerRequest struct {
	Token                 string                `json:"token"                   form:"token"                   binding:"required"`
	Username              string                `json:"username"                form:"username"                binding:"max=30"`
	Email                 string                `json:"email"                   form:"email"                   binding:"required,email,max=254"`
	Password              string                `json:"password"                form:"password"                binding:"required,max=100"`
	Name                  string                `json:"name"                    form:"name"                    binding:"required,max=192"`
	IsOfLegalAge          bool                  `json:"is_of_legal_age"         form:"is_of_legal_age"`
	AreGuidelinesAccepted bool                  `json:"are_guidelines_accepted" form:"are_guidelines_accepted"`
	Avatar                *multipart.FileHeader `json:"-"                       form:"avatar"`
}

// POST /api/auth/register/
// Accepts JSON or multipart form data; the avatar is only read from multipart.
func (h *RegisterHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var avatarPath *string
	if req.Avatar != nil {
		rel, err := h.avatars.Save(c, req.Avatar)
		switch {
		case errors.Is(err, errAvatarRejectedSize):
			c.JSON(http.StatusBadRequest, errorResponse{Error: errAvatarTooLarge, Fields: map[string]string{"avatar": errAvatarTooLarge}})
			return
		case errors.Is(err, errAvatarRejectedType):
			c.JSON(http.StatusBadRequest, errorResponse{Error: errAvatarType, Fields: map[string]string{"avatar": errAvatarType}})
			return
		case err != nil:
			respondError(c, h.logger, "save avatar", err)
			return
		}
		avatarPath = &rel
	}

	user, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Token:                 req.Token,
		Username:              req.Username,
		Email:                 req.Email,
		Password:              req.Password,
		Name:                  req.Name,
		IsOfLegalAge:          req.IsOfLegalAge,
		AreGuidelinesAccepted: req.AreGuidelinesAccepted,
		AvatarPath:            avatarPath,
	})
	if err != nil {
		if avatarPath != nil {
			if rmErr := h.avatars.Remove(*avatarPath); rmErr != nil {
				h.logger.WarnContext(c.Request.Context(), "remove orphaned avatar", "path", *avatarPath, "error", rmErr)
			}
		}
		respondError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// POST /api/auth/register/verify-token/
// Returns the invite's prefill data so the client can populate the form.
func (h *RegisterHandler) VerifyToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	inv, err := h.registration.VerifyRegistrationToken(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.logger, "verify registration token", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"email":    inv.Email,
		"name":     inv.Name,
		"username": inv.Username,
	})
}

type usernameCheckRequest struct {
	Username string `json:"username" binding:"required,max=30"`
}

// POST /api/auth/username-check/
func (h *RegisterHandler) UsernameCheck(c *gin.Context) {
	var req usernameCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.registration.UsernameAvailable(c.Request.Context(), req.Username); err != nil {
		respondError(c, h.logger, "username check", err)
		return
	}

	c.Status(http.StatusAccepted)
}

type emailCheckRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /api/auth/email-check/
func (h *RegisterHandler) EmailCheck(c *gin.Context) {
	var req emailCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.registration.EmailAvailable(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "email check", err)
		return
	}

	c.Status(http.StatusAccepted)
}
