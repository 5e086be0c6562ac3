package llm

import "errors"

// Sentinel kinds for provider errors.
var (
	ErrMissingAPIKey   = errors.New("llm api key is required")
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrEmptyChoices    = errors.New("completion returned no choices")
)
