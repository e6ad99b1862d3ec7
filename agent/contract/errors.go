package contract

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("model upstream unavailable")
	ErrUpstreamProtocol    = errors.New("model response violates protocol")
	ErrPromptMissing       = errors.New("required prompt is missing")
	ErrSessionTerminal     = errors.New("session is in a terminal stage")
)
