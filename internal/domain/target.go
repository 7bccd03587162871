package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// SubscriptionKeys are the per-recipient encryption keys minted by the
// recipient's browser push service.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// WebPushSubscription identifies one Web Push recipient: a unique endpoint
// URL plus the keys the payload must be encrypted under.
type WebPushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

func (s *WebPushSubscription) Validate() error {
	endpoint := strings.TrimSpace(s.Endpoint)
	if endpoint == "" {
		return fmt.Errorf("%w: subscription endpoint is required", ErrValidation)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return fmt.Errorf("%w: invalid subscription endpoint: %v", ErrValidation, err)
	}
	if strings.TrimSpace(s.Keys.P256dh) == "" {
		return fmt.Errorf("%w: subscription p256dh key is required", ErrValidation)
	}
	if strings.TrimSpace(s.Keys.Auth) == "" {
		return fmt.Errorf("%w: subscription auth secret is required", ErrValidation)
	}
	return nil
}

// truncatedTargetLen is how much of a target identifier may appear in logs
// and responses.
const truncatedTargetLen = 20

// TruncateTarget shortens a device token or endpoint for any externalized
// form so full identifiers never leave the process.
func TruncateTarget(target string) string {
	target = strings.TrimSpace(target)
	if len(target) <= truncatedTargetLen {
		return target
	}
	return target[:truncatedTargetLen] + "..."
}
