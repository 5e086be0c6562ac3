package repository

import (
	"errors"

	"github.com/okian/coachd/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound          = model.ErrNotFound
	ErrMissingScope      = errors.New("coach or client scope is required")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrEmptyPatch        = errors.New("update patch is empty")
	ErrColumnMismatch    = errors.New("rows in one insert must share columns")
)
