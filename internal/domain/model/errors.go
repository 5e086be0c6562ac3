package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidBlob = errors.New("invalid json blob")
)
