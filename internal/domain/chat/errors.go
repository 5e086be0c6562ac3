package chat

import "errors"

// Sentinel kinds for chat errors.
var (
	ErrEmptyResponse = errors.New("empty model response")
)
