package service

import (
	"github.com/pkg/errors"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

// Error kinds returned by the engine. Match them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrReference         = errors.New("reference error")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid transition")
)

// KindOf returns a stable code for err, "internal" when it carries no engine kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrReference):
		return "reference"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	return "internal"
}

func validationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// translate maps storage sentinels onto engine kinds.
func translate(err error, what, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return errors.Wrapf(ErrNotFound, "%s %s", what, id)
	case errors.Is(err, storage.ErrAlreadyExists):
		return errors.Wrapf(ErrConflict, "%s %s already exists", what, id)
	}
	return err
}
