package httpapi

import (
	"fmt"
	"net/mail"
	"unicode/utf8"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 30
	passwordMinLength = 8
	// bcrypt rejects input longer than 72 bytes.
	passwordMaxBytes = 72
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(r.Username); n < usernameMinLength || n > usernameMaxLength {
		return fmt.Errorf("username must be between %d and %d characters", usernameMinLength, usernameMaxLength)
	}
	if utf8.RuneCountInString(r.Password) < passwordMinLength {
		return fmt.Errorf("password must be at least %d characters", passwordMinLength)
	}
	if len(r.Password) > passwordMaxBytes {
		return fmt.Errorf("password must be at most %d bytes", passwordMaxBytes)
	}
	return nil
}

func (r loginRequest) validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// validateEmail accepts a bare address only; "Name <a@x.com>" is rejected.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("email must be a valid email address")
	}
	return nil
}
