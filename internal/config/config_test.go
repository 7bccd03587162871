package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 100 {
		t.Errorf("RateLimitPerSec = %d, want 100", cfg.RateLimitPerSec)
	}
	if cfg.DispatchConcurrency != 8 {
		t.Errorf("DispatchConcurrency = %d, want 8", cfg.DispatchConcurrency)
	}
	if cfg.SendTimeout() != 10*time.Second {
		t.Errorf("SendTimeout() = %v, want 10s", cfg.SendTimeout())
	}
	if cfg.VAPIDSubscriber == "" {
		t.Error("VAPIDSubscriber should have a default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_SEC", "250")
	t.Setenv("DISPATCH_CONCURRENCY", "32")
	t.Setenv("SEND_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 250 {
		t.Errorf("RateLimitPerSec = %d, want 250", cfg.RateLimitPerSec)
	}
	if cfg.DispatchConcurrency != 32 {
		t.Errorf("DispatchConcurrency = %d, want 32", cfg.DispatchConcurrency)
	}
	if cfg.SendTimeout() != 5*time.Second {
		t.Errorf("SendTimeout() = %v, want 5s", cfg.SendTimeout())
	}
}

func TestConfig_PathToggles(t *testing.T) {
	var cfg Config
	if cfg.FCMEnabled() {
		t.Error("FCMEnabled() = true without credentials")
	}
	if cfg.WebPushEnabled() {
		t.Error("WebPushEnabled() = true without VAPID keys")
	}

	cfg.FirebaseServiceAccount = `{"project_id":"x"}`
	if !cfg.FCMEnabled() {
		t.Error("FCMEnabled() = false with credentials set")
	}

	cfg.VAPIDPublicKey = "BPub"
	if cfg.WebPushEnabled() {
		t.Error("WebPushEnabled() = true with only a public key")
	}
	cfg.VAPIDPrivateKey = "priv"
	if !cfg.WebPushEnabled() {
		t.Error("WebPushEnabled() = false with the full key pair")
	}
}
