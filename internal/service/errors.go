package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds surfaced to the transport layer. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// storeErr maps store failures onto error kinds. Anything unrecognised keeps its
// original chain and ends up as an internal error.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
