package password

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ErlanBelekov/quicksand/internal/domain"
)

var common = map[string]struct{}{
	"password123": {}, "password1234": {}, "1234567890": {}, "qwertyuiop": {},
	"iloveyou123": {}, "letmein123": {}, "welcome123": {}, "passw0rd123": {},
	"administrator": {}, "qwerty12345": {}, "1q2w3e4r5t": {}, "sunshine123": {},
	"football123": {}, "baseball123": {}, "superman123": {}, "princess123": {},
	"trustno1234": {}, "0987654321": {}, "1111111111": {}, "abcdefghij": {},
}

// Validate applies the password policy. attrs are user attributes (username,
// email) the password must not resemble.
func Validate(pw string, attrs ...string) error {
	n := len([]rune(pw))
	if n < domain.PasswordMinLength {
		return fmt.Errorf("%w: must contain at least %d characters", domain.ErrWeakPassword, domain.PasswordMinLength)
	}
	if n > domain.PasswordMaxLength {
		return fmt.Errorf("%w: must contain at most %d characters", domain.ErrWeakPassword, domain.PasswordMaxLength)
	}
	if isNumeric(pw) {
		return fmt.Errorf("%w: entirely numeric", domain.ErrWeakPassword)
	}
	lower := strings.ToLower(pw)
	if _, ok := common[lower]; ok {
		return fmt.Errorf("%w: too common", domain.ErrWeakPassword)
	}
	for _, a := range attrs {
		a = strings.ToLower(a)
		if i := strings.IndexByte(a, '@'); i > 0 {
			a = a[:i]
		}
		if len(a) >= 3 && (strings.Contains(lower, a) || strings.Contains(a, lower)) {
			return fmt.Errorf("%w: too similar to account details", domain.ErrWeakPassword)
		}
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
