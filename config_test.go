package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GITHUB_APP_ID", "1234")
	t.Setenv("GITHUB_PRIVATE_KEY", testKeyPEM(t))
	t.Setenv("GITHUB_WEBHOOK_SECRET", "s3cret")
	t.Setenv("PORT", "4000")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(1234), cfg.appID)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, defaultAPIBaseURL, cfg.APIBaseURL)
	assert.NotNil(t, cfg.privateKey)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	t.Setenv("GITHUB_APP_ID", "")
	t.Setenv("GITHUB_PRIVATE_KEY", "")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "")

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestLoadConfigNonNumericAppID(t *testing.T) {
	t.Setenv("GITHUB_APP_ID", "not-a-number")
	t.Setenv("GITHUB_PRIVATE_KEY", testKeyPEM(t))
	t.Setenv("GITHUB_WEBHOOK_SECRET", "s3cret")

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestParsePrivateKeyEscapedNewlines(t *testing.T) {
	// Keys pasted into env vars often arrive with literal \n sequences.
	escaped := strings.ReplaceAll(testKeyPEM(t), "\n", `\n`)

	key, err := parsePrivateKey(escaped)
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestParsePrivateKeyGarbage(t *testing.T) {
	_, err := parsePrivateKey("not a key")
	assert.Error(t, err)
}
