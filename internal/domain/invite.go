package domain

import "time"

type UserInvite struct {
	ID                int64
	InvitedBy         *int64
	CreatedUserID     *int64 // set once the invite has been redeemed
	Name              *string
	Nickname          *string
	Email             *string
	Username          *string
	Token             string
	IsInviteEmailSent bool
	CreatedAt         time.Time
}

func (i *UserInvite) IsRedeemed() bool {
	return i.CreatedUserID != nil
}

// TokenPurpose is the type claim carried by every signed token.
type TokenPurpose string

const (
	PurposeEmailChange   TokenPurpose = "CE"
	PurposePasswordReset TokenPurpose = "PR"
	PurposeInvite        TokenPurpose = "UI"
	PurposeAccess        TokenPurpose = "AT"
)

func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeEmailChange, PurposePasswordReset, PurposeInvite, PurposeAccess:
		return true
	}
	return false
}
