package main

import (
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GitHub rejects app JWTs that live longer than 10 minutes. Nine minutes
// keeps a safety margin for clock skew between us and GitHub.
const (
	appJWTLifetime     = 9 * time.Minute
	appJWTRefreshSlack = time.Minute
)

// appAuthenticator mints and caches the signed assertion that proves control
// of the app's private key. The cache is shared by concurrent webhook
// handlers, so reads and refreshes happen under the mutex. Serving an expired
// assertion is the only failure mode that matters; a redundant re-sign after a
// lost race would merely waste a signature.
type appAuthenticator struct {
	appID      int64
	privateKey *rsa.PrivateKey

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newAppAuthenticator(appID int64, key *rsa.PrivateKey) *appAuthenticator {
	return &appAuthenticator{appID: appID, privateKey: key}
}

// appJWT returns a valid signed assertion, minting a fresh one when the
// cached token is within appJWTRefreshSlack of its expiry.
func (a *appAuthenticator) appJWT() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Add(appJWTRefreshSlack).Before(a.expiresAt) {
		return a.token, nil
	}

	// GitHub requires: iss = app ID (int), iat = now, exp = now + max 10 min
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(appJWTLifetime).Unix(),
		"iss": a.appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign app JWT: %w", err)
	}

	a.token = signed
	a.expiresAt = now.Add(appJWTLifetime)
	return signed, nil
}

// authenticateInstallation exchanges the app assertion for an access token
// scoped to one installation and returns a client authenticated with it. The
// token is requested fresh per delivery and never persisted; GitHub expires it
// server-side.
func (app *App) authenticateInstallation(installationID int64) (GitHubAPI, error) {
	appJWT, err := app.auth.appJWT()
	if err != nil {
		return nil, err
	}

	token, err := newAppClient(app.cfg.APIBaseURL, appJWT).CreateAppInstallationAccessToken(installationID)
	if err != nil {
		return nil, fmt.Errorf("auth: installation %d authentication failed: %w", installationID, err)
	}

	return newInstallationClient(app.cfg.APIBaseURL, token), nil
}
