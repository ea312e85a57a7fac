package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the process-wide configuration. It is loaded once at startup and
// shared read-only by concurrent webhook handlers; nothing mutates it after
// loadConfig returns.
type Config struct {
	AppID         string `koanf:"github_app_id"`
	PrivateKeyPEM string `koanf:"github_private_key"`
	WebhookSecret string `koanf:"github_webhook_secret"`
	APIBaseURL    string `koanf:"github_api_url"`
	AMQPURL       string `koanf:"amqp_url"`
	Port          int    `koanf:"port"`

	appID      int64           // AppID parsed, used as the JWT issuer claim
	privateKey *rsa.PrivateKey // PrivateKeyPEM parsed and validated
}

// loadConfig reads configuration from the environment and validates everything
// that must not fail per-request: a missing secret or an unparseable private
// key aborts startup instead of breaking every delivery later.
func loadConfig() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("config: failed to read environment: %w", err)
	}

	// Default values
	if !k.Exists("port") {
		k.Set("port", 3000)
	}
	if !k.Exists("github_api_url") {
		k.Set("github_api_url", defaultAPIBaseURL)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal environment: %w", err)
	}

	if cfg.AppID == "" {
		return nil, fmt.Errorf("config: GITHUB_APP_ID is not set")
	}
	appID, err := strconv.ParseInt(cfg.AppID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("config: GITHUB_APP_ID must be numeric: %w", err)
	}
	cfg.appID = appID

	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("config: GITHUB_WEBHOOK_SECRET is not set")
	}
	if cfg.PrivateKeyPEM == "" {
		return nil, fmt.Errorf("config: GITHUB_PRIVATE_KEY is not set")
	}

	key, err := parsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	cfg.privateKey = key

	return &cfg, nil
}

// parsePrivateKey decodes the app's RSA signing key from PEM. Keys pasted into
// environment variables usually arrive with literal \n sequences instead of
// newlines, so those are converted first.
func parsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	pemText = strings.ReplaceAll(pemText, `\n`, "\n")

	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("config: failed to parse private key PEM block")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse private key: %w", err)
	}
	return key, nil
}
