package auth

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

// RegisterForm is the sign-up form.
type RegisterForm struct {
	Username string
	Email    string
	Password string
}

func (f *RegisterForm) normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

// Validate checks the form fields. Email is optional.
func (f RegisterForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username,
			validation.Required.Error("username is required"),
			validation.RuneLength(3, 32).Error("username must be 3 to 32 characters"),
			validation.Match(usernameRegex).Error("username may contain letters, digits, '.', '_' and '-'"),
		),
		validation.Field(&f.Email,
			is.Email.Error("email address is not valid"),
		),
		validation.Field(&f.Password,
			validation.Required.Error("password is required"),
			validation.RuneLength(8, 0).Error("password must be at least 8 characters"),
			validation.By(passwordBytes),
		),
	)
}

func passwordBytes(value interface{}) error {
	s, _ := value.(string)
	if len(s) > maxPasswordBytes {
		return validation.NewError("password_too_long", "password must be at most 72 bytes")
	}
	return nil
}
