package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vsinha/cims/pkg/domain/repositories"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// Error carries a message fit for API clients and the sentinel that classifies it
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func notFound(what string) error {
	return newError(repositories.ErrNotFound, "%s not found", what)
}

// loadError turns a repository miss into a client-facing not found error
func loadError(err error, what string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound(what)
	}
	return fmt.Errorf("failed to load %s: %w", strings.ToLower(what), err)
}

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrNotFound)
}
