package server

import (
	"fmt"

	"innkeeper/internal/models"

	"github.com/go-playground/validator/v10"
)

// Validator checks client-supplied input on the server side. Clients are
// expected to pre-validate, but nothing about that is trusted here.
type Validator struct {
	validate *validator.Validate
	year     int
}

func NewValidator(year int) *Validator {
	v := validator.New()

	_ = v.RegisterValidation("resdate", func(fl validator.FieldLevel) bool {
		return models.ValidDate(fl.Field().String(), year)
	})

	return &Validator{validate: v, year: year}
}

// Username enforces the account naming rules: lowercase alphanumeric,
// bounded length.
func (v *Validator) Username(username string) error {
	tag := fmt.Sprintf("required,min=%d,max=%d,alphanum,lowercase",
		models.UsernameMinLength, models.UsernameMaxLength)
	if err := v.validate.Var(username, tag); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}
	return nil
}

// Password enforces length bounds only; content is the user's business.
func (v *Validator) Password(password string) error {
	tag := fmt.Sprintf("required,min=%d,max=%d",
		models.PasswordMinLength, models.PasswordMaxLength)
	if err := v.validate.Var(password, tag); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}
	return nil
}

// Date checks the dd/mm form against the configured year's calendar.
func (v *Validator) Date(date string) error {
	if err := v.validate.Var(date, "required,resdate"); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	return nil
}
