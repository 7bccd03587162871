package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mottorpay/push-gateway/internal/domain"
	"github.com/mottorpay/push-gateway/internal/observability"
	"golang.org/x/sync/singleflight"
)

const (
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// refreshMargin keeps a token from being handed out close to expiry;
	// a delivery started just before the boundary must still be accepted.
	refreshMargin = 60 * time.Second

	// defaultTokenLifetime applies when the exchange response omits expires_in.
	defaultTokenLifetime = 3600 * time.Second

	defaultExchangeTimeout = 10 * time.Second
)

// AccessToken is an opaque bearer credential with its expiry instant.
// Replaced wholesale on refresh, never mutated.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

func (t *AccessToken) valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt.Add(-refreshMargin))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenBroker owns the cached access token for the FCM path. Concurrent
// callers hitting an expired cache coalesce into a single exchange via
// singleflight; everyone observes the refreshed token.
type TokenBroker struct {
	signer   *AssertionSigner
	tokenURL string
	client   *resty.Client
	metrics  *observability.Metrics
	now      func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	cached *AccessToken
}

func NewTokenBroker(signer *AssertionSigner, tokenURL string) (*TokenBroker, error) {
	client := resty.New()
	client.SetTimeout(defaultExchangeTimeout)
	client.SetRetryCount(0)

	return NewTokenBrokerWithClient(signer, tokenURL, client)
}

func NewTokenBrokerWithClient(signer *AssertionSigner, tokenURL string, client *resty.Client) (*TokenBroker, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: assertion signer is required", domain.ErrConfig)
	}
	if strings.TrimSpace(tokenURL) == "" {
		return nil, fmt.Errorf("%w: token endpoint is required", domain.ErrConfig)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: resty client is required", domain.ErrConfig)
	}

	return &TokenBroker{
		signer:   signer,
		tokenURL: strings.TrimSpace(tokenURL),
		client:   client,
		now:      time.Now,
	}, nil
}

func (b *TokenBroker) SetMetrics(metrics *observability.Metrics) {
	if b == nil {
		return
	}
	b.metrics = metrics
}

// Token returns a bearer token with at least refreshMargin of validity left,
// exchanging a fresh assertion when the cached one is absent or imminent.
func (b *TokenBroker) Token(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	cached := b.cached
	b.mu.RUnlock()

	if cached.valid(b.now()) {
		return cached.Value, nil
	}

	// One in-flight exchange shared by all waiters.
	value, err, _ := b.group.Do("token", func() (interface{}, error) {
		b.mu.RLock()
		current := b.cached
		b.mu.RUnlock()
		if current.valid(b.now()) {
			return current.Value, nil
		}

		refreshed, err := b.exchange(ctx)
		if err != nil {
			b.metrics.IncTokenRefresh("failure")
			return "", err
		}
		b.metrics.IncTokenRefresh("success")

		b.mu.Lock()
		b.cached = refreshed
		b.mu.Unlock()

		return refreshed.Value, nil
	})
	if err != nil {
		return "", err
	}

	return value.(string), nil
}

func (b *TokenBroker) exchange(ctx context.Context) (*AccessToken, error) {
	now := b.now()

	assertion, err := b.signer.Sign(now)
	if err != nil {
		return nil, err
	}

	var parsed tokenResponse
	response, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type": jwtBearerGrantType,
			"assertion":  assertion,
		}).
		SetResult(&parsed).
		Post(b.tokenURL)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange request failed: %v", domain.ErrAuth, err)
	}

	if response.IsError() {
		return nil, fmt.Errorf("%w: token endpoint returned status %d: %s",
			domain.ErrAuth, response.StatusCode(), strings.TrimSpace(response.String()))
	}

	if strings.TrimSpace(parsed.AccessToken) == "" {
		return nil, fmt.Errorf("%w: token response lacks access_token", domain.ErrAuth)
	}

	lifetime := defaultTokenLifetime
	if parsed.ExpiresIn > 0 {
		lifetime = time.Duration(parsed.ExpiresIn) * time.Second
	}

	return &AccessToken{
		Value:     parsed.AccessToken,
		ExpiresAt: now.Add(lifetime),
	}, nil
}
