package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	UsernameMaxLength    = 30
	ProfileNameMaxLength = 192
	PasswordMinLength    = 10
	PasswordMaxLength    = 100
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{1,30}$`)

// UserState replaces hard deletes: a deleted user keeps its row, username
// and email but can no longer authenticate.
type UserState string

const (
	UserStateActive  UserState = "active"
	UserStateDeleted UserState = "deleted"
)

type User struct {
	ID                    int64
	UUID                  uuid.UUID
	Username              string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	AreGuidelinesAccepted bool
	State                 UserState
	DateJoined            time.Time
	UpdatedAt             time.Time

	Profile *UserProfile
}

func (u *User) IsActive() bool {
	return u.State == UserStateActive
}

type UserProfile struct {
	ID           int64
	UserID       int64
	Name         string
	Avatar       *string
	Cover        *string
	IsOfLegalAge bool
}

// NormalizeUsername lower-cases and trims a username before lookups and inserts.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername expects a normalized username.
func ValidateUsername(s string) error {
	if !usernamePattern.MatchString(s) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateName enforces the profile name rules.
func ValidateName(s string) error {
	if s == "" || len([]rune(s)) > ProfileNameMaxLength {
		return ErrInvalidName
	}
	if strings.ContainsAny(s, "<>") {
		return ErrInvalidName
	}
	return nil
}
