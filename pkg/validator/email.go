package validator

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	// ErrEmptyEmail indicates the email is empty
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates the email is not a bare address
	ErrInvalidEmail = errors.New("email must be a valid address such as name@example.com")

	// ErrEmailTooLong indicates the email exceeds the processor's 512 character limit
	ErrEmailTooLong = errors.New("email must be at most 512 characters")
)

const maxEmailLength = 512

// EmailValidator handles customer email validation
type EmailValidator struct{}

// NewEmailValidator creates a new email validator instance
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{}
}

// Validate checks a customer email and returns it trimmed.
// Display names ("Ada <ada@example.com>") are rejected; case is preserved
// because the processor's email filter is case sensitive.
func (v *EmailValidator) Validate(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmptyEmail
	}
	if len(email) > maxEmailLength {
		return "", ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return "", ErrInvalidEmail
	}

	return email, nil
}

// IsValid checks if an email is valid without returning the sanitized version
func (v *EmailValidator) IsValid(email string) bool {
	_, err := v.Validate(email)
	return err == nil
}
