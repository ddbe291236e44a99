package handler

import (
	"time"

	"github.com/ErlanBelekov/quicksand/internal/domain"
)

type profileResponse struct {
	Name         string  `json:"name"`
	Avatar       *string `json:"avatar"`
	Cover        *string `json:"cover"`
	IsOfLegalAge bool    `json:"is_of_legal_age"`
}

type userResponse struct {
	ID                    int64            `json:"id"`
	UUID                  string           `json:"uuid"`
	Username              string           `json:"username"`
	Email                 string           `json:"email"`
	IsEmailVerified       bool             `json:"is_email_verified"`
	AreGuidelinesAccepted bool             `json:"are_guidelines_accepted"`
	DateJoined            time.Time        `json:"date_joined"`
	Profile               *profileResponse `json:"profile,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:                    u.ID,
		UUID:                  u.UUID.String(),
		Username:              u.Username,
		Email:                 u.Email,
		IsEmailVerified:       u.IsEmailVerified,
		AreGuidelinesAccepted: u.AreGuidelinesAccepted,
		DateJoined:            u.DateJoined,
	}
	if u.Profile != nil {
		resp.Profile = &profileResponse{
			Name:         u.Profile.Name,
			Avatar:       u.Profile.Avatar,
			Cover:        u.Profile.Cover,
			IsOfLegalAge: u.Profile.IsOfLegalAge,
		}
	}
	return resp
}

type inviteResponse struct {
	ID                int64     `json:"id"`
	Email             *string   `json:"email"`
	Name              *string   `json:"name"`
	Nickname          *string   `json:"nickname"`
	Username          *string   `json:"username"`
	IsInviteEmailSent bool      `json:"is_invite_email_sent"`
	CreatedAt         time.Time `json:"created_at"`
}

func toInviteResponse(inv *domain.UserInvite) inviteResponse {
	return inviteResponse{
		ID:                inv.ID,
		Email:             inv.Email,
		Name:              inv.Name,
		Nickname:          inv.Nickname,
		Username:          inv.Username,
		IsInviteEmailSent: inv.IsInviteEmailSent,
		CreatedAt:         inv.CreatedAt,
	}
}
