package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// PasswordPolicy rejects weak passwords.
type PasswordPolicy struct {
	MinLength int
	// MinScore is the minimum zxcvbn score (0-4); zero disables the check.
	MinScore int
}

// Validate returns a validation DomainError describing the first violated
// rule. userInputs (username, email) are penalized when they appear in the
// password.
func (p PasswordPolicy) Validate(password string, userInputs ...string) error {
	if strings.TrimSpace(password) == "" {
		return apperrors.NewValidationError("password is required", map[string]any{"field": "new_password"})
	}
	if p.MinLength > 0 && utf8.RuneCountInString(password) < p.MinLength {
		return apperrors.NewValidationError("password is too short", map[string]any{
			"field":      "new_password",
			"min_length": p.MinLength,
		})
	}
	if isAllDigits(password) {
		return apperrors.NewValidationError("password cannot be entirely numeric", map[string]any{"field": "new_password"})
	}

	if p.MinScore > 0 {
		minScore := p.MinScore
		if minScore > 4 {
			minScore = 4
		}
		inputs := make([]string, 0, len(userInputs))
		for _, in := range userInputs {
			if in != "" {
				inputs = append(inputs, in)
			}
		}
		if zxcvbn.PasswordStrength(password, inputs).Score < minScore {
			return apperrors.NewValidationError("password is too weak; choose a more complex value", map[string]any{"field": "new_password"})
		}
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
