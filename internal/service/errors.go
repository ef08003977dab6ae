package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Domain error kinds. Services wrap them with context; handlers map them to
// HTTP statuses with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("unavailable")
	ErrUnauthorized = errors.New("invalid credentials")
)

// notFound converts gorm's missing-record error into ErrNotFound and leaves
// other errors alone.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidInput)
}
