package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// ErrInvalidCommand wraps every validation failure.
var ErrInvalidCommand = errors.New("invalid command")

// NewValidator returns a validator with the calendar rules registered:
// notblank rejects whitespace-only strings and strategy accepts any
// ConflictStrategy spelling.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseConflictStrategy(fl.Field().String())
		return err == nil
	})
	return v
}

func validate(v *validator.Validate, cmd any) error {
	if v == nil {
		v = NewValidator()
	}
	if err := v.Struct(cmd); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidCommand, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return nil
}
