package domain

import (
	"errors"
	"fmt"
)

// Error classes. Handlers map these to status codes; the specific errors
// below wrap exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrTokenInvalid = errors.New("token is invalid or expired")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrWeakPassword    = fmt.Errorf("%w: password does not meet requirements", ErrValidation)
	ErrInvalidUsername = fmt.Errorf("%w: username may only contain letters, digits and _", ErrValidation)
	ErrInvalidName     = fmt.Errorf("%w: names can't contain < or >", ErrValidation)

	ErrUsernameTaken   = fmt.Errorf("%w: a user with that username already exists", ErrConflict)
	ErrEmailTaken      = fmt.Errorf("%w: an account for the email already exists", ErrConflict)
	ErrDuplicateInvite = fmt.Errorf("%w: an invite for this email or nickname already exists", ErrConflict)

	ErrUserNotFound   = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrInviteNotFound = fmt.Errorf("%w: no invite exists for given token", ErrNotFound)

	ErrInvalidToken     = fmt.Errorf("%w: the token is invalid", ErrTokenInvalid)
	ErrAlreadyRedeemed  = fmt.Errorf("%w: this invite has already been used", ErrTokenInvalid)
	ErrResetTokenUsed   = fmt.Errorf("%w: reset token has already been used", ErrTokenInvalid)
	ErrInvalidSignature = fmt.Errorf("%w: invalid token signature", ErrTokenInvalid)
	ErrTokenExpired     = fmt.Errorf("%w: token expired", ErrTokenInvalid)
	ErrTokenMalformed   = fmt.Errorf("%w: failed to decode token", ErrTokenInvalid)
	ErrPurposeMismatch  = fmt.Errorf("%w: token type does not match", ErrTokenInvalid)

	ErrConsentRequired    = fmt.Errorf("%w: legal age and guidelines must be accepted", ErrForbidden)
	ErrWrongPassword      = fmt.Errorf("%w: wrong password", ErrForbidden)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrForbidden)
)
