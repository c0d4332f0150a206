package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgeline/keel/httperr"
)

// MinPasswordLen is the password policy floor.
const MinPasswordLen = 8

// HashPassword hashes a plaintext password with bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword reports whether the plaintext matches the stored hash.
func ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordIssues validates the plaintext against the password policy and
// returns one issue per violated rule, empty when the password passes.
func PasswordIssues(field, password string) []httperr.FieldIssue {
	var issues []httperr.FieldIssue
	if len(password) < MinPasswordLen {
		issues = append(issues, httperr.FieldIssue{
			Field: field, Message: fmt.Sprintf("must be at least %d characters", MinPasswordLen)})
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		issues = append(issues, httperr.FieldIssue{Field: field, Message: "must contain an uppercase letter"})
	}
	if !hasLower {
		issues = append(issues, httperr.FieldIssue{Field: field, Message: "must contain a lowercase letter"})
	}
	if !hasDigit {
		issues = append(issues, httperr.FieldIssue{Field: field, Message: "must contain a digit"})
	}
	return issues
}
