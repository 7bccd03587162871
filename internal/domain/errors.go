package domain

import "errors"

// Sentinel errors shared across the gateway. Callers match with errors.Is
// and handlers map them to HTTP statuses.
var (
	// ErrValidation marks bad or missing input; no network call was attempted.
	ErrValidation = errors.New("validation error")
	// ErrConfig marks absent or malformed credentials/keys. The process keeps
	// running, but dispatch on the affected path fails until configured.
	ErrConfig = errors.New("configuration error")
	// ErrAuth marks a failed assertion signing or token exchange.
	ErrAuth = errors.New("auth error")
)
