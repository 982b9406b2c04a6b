package types

import "errors"

var (
	// ErrInvalidIntent is returned when an intent fails stateless validation.
	ErrInvalidIntent = errors.New("invalid intent")
)
