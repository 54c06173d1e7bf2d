package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Email reports whether the text is a single deliverable-looking address
func Email(email string) bool {
	email = strings.TrimSpace(email)
	return validate.Var(email, "required,email,max=254") == nil
}

// UserID reports whether the text is a telegram user id
func UserID(text string) bool {
	return validate.Var(strings.TrimSpace(text), "required,number,min=1,max=20") == nil
}
