package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/usecase"
	"github.com/gin-gonic/gin"
)

type inviteUsecaser interface {
	CreateInvite(ctx context.Context, in usecase.CreateInviteInput) (*domain.UserInvite, error)
	SendInviteEmail(ctx context.Context, inv *domain.UserInvite) error
}

type InviteHandler struct {
	invites inviteUsecaser
	logger  *slog.Logger
}

func NewInviteHandler(invites inviteUsecaser, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{
		invites: invites,
		logger:  logger.With("component", "invite_handler"),
	}
}

type createInviteRequest struct {
	Email    string `json:"email"    binding:"required,email,max=254"`
	Name     string `json:"name"     binding:"max=192"`
	Nickname string `json:"nickname" binding:"max=192"`
	Username string `json:"username" binding:"max=30"`
}

// POST /api/auth/invites/
// The invite is created even if the email cannot be sent; the mailer retries.
func (h *InviteHandler) Create(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	inv, err := h.invites.CreateInvite(ctx, usecase.CreateInviteInput{
		Email:     req.Email,
		Name:      req.Name,
		Nickname:  req.Nickname,
		Username:  req.Username,
		InvitedBy: &id,
	})
	if err != nil {
		respondError(c, h.logger, "create invite", err)
		return
	}

	if err := h.invites.SendInviteEmail(ctx, inv); err != nil {
		h.logger.WarnContext(ctx, "invite email deferred to mailer", "invite_id", inv.ID, "error", err)
	}

	c.JSON(http.StatusCreated, toInviteResponse(inv))
}
