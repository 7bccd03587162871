package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mottorpay/push-gateway/internal/domain"
)

// ProviderError is a classified delivery failure. Kind is always one of the
// closed domain.ErrorKind set.
type ProviderError struct {
	StatusCode int
	Kind       domain.ErrorKind
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf extracts the classification from any error. Non-provider errors,
// including transport failures, classify as unknown.
func KindOf(err error) domain.ErrorKind {
	if err == nil {
		return domain.KindUnknown
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Kind.IsValid() {
		return providerErr.Kind
	}

	return domain.KindUnknown
}

// transportError wraps a network-level failure that produced no provider
// response.
func transportError(message string, cause error) *ProviderError {
	return &ProviderError{
		Kind:    domain.KindUnknown,
		Message: message,
		Cause:   cause,
	}
}
