package assistant

import "errors"

// Sentinel kinds for assistant errors.
var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrDuplicateTool   = errors.New("tool already registered")
	ErrInvalidInput    = errors.New("invalid tool input")
	ErrCompanyNotFound = errors.New("company not found")
)
