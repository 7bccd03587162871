package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/mottorpay/push-gateway/internal/auth"
	"github.com/mottorpay/push-gateway/internal/domain"
)

// Heads-up alerts are useless late: discard immediately when the push
// service cannot deliver right now, and ask for high urgency.
const webPushTTL = 0

const maxWebPushResponseBytes = 4096

// WebPushClient encrypts the payload under the subscription keys, signs the
// request with the VAPID pair and POSTs to the subscription endpoint.
type WebPushClient struct {
	keys       *auth.VAPIDKeys
	httpClient *http.Client
}

func NewWebPushClient(keys *auth.VAPIDKeys) (*WebPushClient, error) {
	return NewWebPushClientWithHTTPClient(keys, &http.Client{Timeout: defaultSendTimeout})
}

func NewWebPushClientWithHTTPClient(keys *auth.VAPIDKeys, httpClient *http.Client) (*WebPushClient, error) {
	if keys == nil {
		return nil, fmt.Errorf("vapid keys are required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultSendTimeout
	}

	return &WebPushClient{
		keys:       keys,
		httpClient: httpClient,
	}, nil
}

// Send delivers one encrypted payload to one subscription. Success is any
// 2xx (push services typically answer 201). Exactly one outbound call.
func (c *WebPushClient) Send(ctx context.Context, sub domain.WebPushSubscription, payload []byte) (*Response, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("web push client is not initialized")
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	response, err := webpush.SendNotificationWithContext(ctx, payload, target, &webpush.Options{
		HTTPClient:      c.httpClient,
		Subscriber:      c.keys.Subscriber,
		VAPIDPublicKey:  c.keys.PublicKey,
		VAPIDPrivateKey: c.keys.PrivateKey,
		TTL:             webPushTTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return nil, transportError("web push request failed", err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(response.Body, maxWebPushResponseBytes))
	responseBody := strings.TrimSpace(string(body))
	statusCode := response.StatusCode

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Kind:       ClassifyWebPush(statusCode),
		Message:    webPushErrorMessage(statusCode, responseBody),
	}
}

func webPushErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("push service returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
