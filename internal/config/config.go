package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

// Config holds the gateway's environment surface. Both delivery paths are
// optional: the FCM path activates when FIREBASE_SERVICE_ACCOUNT is set, the
// Web Push path when the VAPID key pair is set. A gateway with neither still
// boots and serves health endpoints, but rejects sends with 503.
type Config struct {
	FirebaseServiceAccount string `env:"FIREBASE_SERVICE_ACCOUNT"`
	VAPIDPublicKey         string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey        string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber        string `env:"VAPID_SUBSCRIBER,default=mailto:admin@mottorpay.app"`
	FCMEndpoint            string `env:"FCM_ENDPOINT"`
	OAuthTokenURL          string `env:"OAUTH_TOKEN_URL"`
	RedisURL               string `env:"REDIS_URL"`
	RateLimitPerSec        int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	DispatchConcurrency    int    `env:"DISPATCH_CONCURRENCY,default=8"`
	SendTimeoutSeconds     int    `env:"SEND_TIMEOUT_SECONDS,default=10"`
	APIPort                int    `env:"API_PORT,default=8080"`
	LogLevel               string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c *Config) FCMEnabled() bool {
	return c.FirebaseServiceAccount != ""
}

func (c *Config) WebPushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}
