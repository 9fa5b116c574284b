package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidScheduleTime = errors.New("scheduled date must be in the future")
	ErrNoTargetsSpecified  = errors.New("at least one target platform is required")
	ErrUnknownPlatform     = errors.New("unknown platform")
	ErrEmptyPost           = errors.New("post needs content or media")
	ErrOwnerRequired       = errors.New("owner id is required")
	ErrInvalidInput        = errors.New("invalid input")

	ErrPostNotFound   = errors.New("post not found")
	ErrTooLate        = errors.New("post is already publishing or published")
	ErrNotCancellable = errors.New("only scheduled posts can be cancelled")
	ErrNotEditable    = errors.New("post cannot be changed in its current status")
	ErrNotPublished   = errors.New("post is not published")
)

// ValidationError is a rejected request. It never reaches the job processor.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

var validate = validator.New()

// validateStruct runs the struct tags and reports the first failing field.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid(fe.Namespace(), fmt.Errorf("%w: failed on %q", ErrInvalidInput, fe.Tag()))
	}
	return invalid("", fmt.Errorf("%w: %s", ErrInvalidInput, err.Error()))
}
