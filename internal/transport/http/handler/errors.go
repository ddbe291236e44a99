package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	errInternalServer     = "Internal server error"
	errInvalidRequest     = "Invalid request"
	errInvalidCredentials = "Invalid username or password"
	errWrongPassword      = "Wrong password"
	errTokenInvalid       = "Token is invalid or expired"
	errTokenExpired       = "Token has expired"
	errAlreadyRedeemed    = "This invite has already been used"
	errResetTokenUsed     = "This reset link has already been used"
	errUsernameTaken      = "A user with that username already exists"
	errEmailTaken         = "An account for the email already exists"
	errDuplicateInvite    = "An invite for this email or nickname already exists"
	errInvalidUsername    = "Username may only contain letters, digits and _"
	errInvalidName        = "Names can't contain < or >"
	errWeakPassword       = "Password must be 10 to 100 characters, not too common and not too similar to your username or email"
	errConsentRequired    = "You must be of legal age and accept the guidelines"
	errUserNotFound       = "User not found"
	errAvatarTooLarge     = "Avatar is too large"
	errAvatarType         = "Avatar must be a JPEG, PNG, GIF or WebP image"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// knownErrors is checked in order; more specific errors come first.
var knownErrors = []struct {
	err     error
	status  int
	field   string
	message string
}{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "", errInvalidCredentials},
	{domain.ErrWrongPassword, http.StatusUnauthorized, "password", errWrongPassword},
	{domain.ErrConsentRequired, http.StatusBadRequest, "is_of_legal_age", errConsentRequired},

	{domain.ErrAlreadyRedeemed, http.StatusBadRequest, "token", errAlreadyRedeemed},
	{domain.ErrResetTokenUsed, http.StatusBadRequest, "token", errResetTokenUsed},
	{domain.ErrInviteNotFound, http.StatusBadRequest, "token", errTokenInvalid},
	{domain.ErrTokenInvalid, http.StatusBadRequest, "token", errTokenInvalid},

	{domain.ErrUsernameTaken, http.StatusBadRequest, "username", errUsernameTaken},
	{domain.ErrEmailTaken, http.StatusBadRequest, "email", errEmailTaken},
	{domain.ErrDuplicateInvite, http.StatusBadRequest, "email", errDuplicateInvite},

	{domain.ErrInvalidUsername, http.StatusBadRequest, "username", errInvalidUsername},
	{domain.ErrInvalidName, http.StatusBadRequest, "name", errInvalidName},
	{domain.ErrWeakPassword, http.StatusBadRequest, "password", errWeakPassword},

	{domain.ErrUserNotFound, http.StatusBadRequest, "", errUserNotFound},
}

// respondError writes the JSON error body for err. Unrecognised errors are
// logged and become 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidRequest, Fields: fieldErrors(verrs)})
		return
	}

	// The client can recover from these by asking for a new token.
	if token.Retryable(err) {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  errTokenExpired,
			Fields: map[string]string{"token": errTokenExpired},
		})
		return
	}

	for _, k := range knownErrors {
		if !errors.Is(err, k.err) {
			continue
		}
		resp := errorResponse{Error: k.message}
		if k.field != "" {
			resp.Fields = map[string]string{k.field: k.message}
		}
		c.JSON(k.status, resp)
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: errInternalServer})
	}
}

// respondBindError handles request decoding failures.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidRequest, Fields: fieldErrors(verrs)})
		return
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidRequest})
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters"
	case "min":
		return "Ensure this field has at least " + fe.Param() + " characters"
	default:
		return "Invalid value"
	}
}

// UseJSONFieldNames makes validation errors report the json (or form) name
// of a field instead of the Go name.
func UseJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}
