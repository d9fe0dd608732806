package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup that matched no ledger record.
	ErrNotFound = errors.New("not found")
)
