package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mottorpay/push-gateway/internal/message"
)

const (
	defaultSendTimeout = 10 * time.Second

	// FCMEndpointTemplate is the v1 send endpoint; %s is the project id.
	FCMEndpointTemplate = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
)

// TokenSource supplies a bearer token valid for at least the safety margin.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type fcmSuccessResponse struct {
	Name string `json:"name"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FCMClient delivers one envelope per call to the FCM v1 send endpoint.
// No internal retries; retry policy is the caller's concern.
type FCMClient struct {
	client   *resty.Client
	endpoint string
	tokens   TokenSource
}

func NewFCMClient(projectID string, tokens TokenSource) (*FCMClient, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	endpoint := fmt.Sprintf(FCMEndpointTemplate, strings.TrimSpace(projectID))
	return NewFCMClientWithClient(endpoint, tokens, client)
}

func NewFCMClientWithClient(endpoint string, tokens TokenSource, client *resty.Client) (*FCMClient, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("fcm endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid fcm endpoint: %w", err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &FCMClient{
		client:   client,
		endpoint: trimmedEndpoint,
		tokens:   tokens,
	}, nil
}

// Send performs the authenticated POST for one envelope and maps the
// response to a normalized outcome. Exactly one outbound call.
func (c *FCMClient) Send(ctx context.Context, envelope *message.FCMEnvelope) (*Response, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("fcm client is not initialized")
	}
	if envelope == nil {
		return nil, fmt.Errorf("envelope is required")
	}

	accessToken, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var success fcmSuccessResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(accessToken).
		SetBody(envelope).
		SetResult(&success).
		SetError(&fcmErrorResponse{}).
		Post(c.endpoint)
	if err != nil {
		return nil, transportError("fcm request failed", err)
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if response.IsSuccess() {
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  success.Name,
		}, nil
	}

	providerMessage := fcmErrorMessage(response, statusCode)
	return nil, &ProviderError{
		StatusCode: statusCode,
		Kind:       ClassifyFCM(statusCode, providerMessage),
		Message:    providerMessage,
	}
}

func fcmErrorMessage(response *resty.Response, statusCode int) string {
	if parsed, ok := response.Error().(*fcmErrorResponse); ok {
		if msg := strings.TrimSpace(parsed.Error.Message); msg != "" {
			return msg
		}
	}
	if body := strings.TrimSpace(response.String()); body != "" {
		return body
	}
	return fmt.Sprintf("fcm returned status %d", statusCode)
}
