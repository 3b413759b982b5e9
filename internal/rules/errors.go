package rules

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrPrecondition = errors.New("precondition failed")
)
