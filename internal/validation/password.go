package validation

import "errors"

const (
	MinPasswordLength = 6
	// bcrypt only looks at the first 72 bytes.
	MaxPasswordLength = 72
)

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("Password must be at least 6 characters")
	}
	if len(password) > MaxPasswordLength {
		return errors.New("Password must not exceed 72 bytes")
	}
	return nil
}
