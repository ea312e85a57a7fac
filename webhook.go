package main

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// App wires the webhook pipeline together: configuration, app authentication,
// the audit publisher, and the factory producing installation-scoped clients.
type App struct {
	cfg   *Config
	auth  *appAuthenticator
	audit *AuditPublisher

	// clientFor runs the two-stage credential exchange and returns a client
	// scoped to the delivery's installation. Swapped out in tests for a
	// recording fake.
	clientFor func(installationID int64) (GitHubAPI, error)

	// propagationDelay is waited on the singular path before the default
	// branch is protected (see branchPropagationDelay).
	propagationDelay time.Duration
}

func newApp(cfg *Config) *App {
	app := &App{
		cfg:              cfg,
		auth:             newAppAuthenticator(cfg.appID, cfg.privateKey),
		propagationDelay: branchPropagationDelay,
	}
	app.clientFor = app.authenticateInstallation
	return app
}

// WebhookHandler runs the pipeline for one delivery: verify signature →
// authenticate app → authenticate installation → route → apply protection.
//
// Only a signature failure changes the response status. Every failure after
// authentication is logged and absorbed with a 200: GitHub would otherwise
// keep redelivering an event the app cannot act on anyway.
func (app *App) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusInternalServerError)
		return
	}

	if !verifyWebhookSignature(body, app.cfg.WebhookSecret, signatureHeader(r.Header)) {
		log.Println("[Webhook] Invalid signature, rejecting delivery")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	payload, err := parseWebhookPayload(body)
	if err != nil {
		log.Println("[Webhook] Error: malformed payload:", err)
		http.Error(w, "invalid payload format", http.StatusBadRequest)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if deliveryID == "" {
		// Local replays (curl, smee) often omit the delivery header.
		deliveryID = uuid.New().String()
	}
	log.Printf("[Webhook] Received event=%q action=%q delivery=%s\n", eventType, payload.Action, deliveryID)

	installationID, err := payload.installationID()
	if err != nil {
		log.Println("[Webhook] Error:", err)
		acknowledge(w)
		return
	}

	client, err := app.clientFor(installationID)
	if err != nil {
		log.Println("[Webhook] Error: installation authentication failed:", err)
		acknowledge(w)
		return
	}

	if shouldProtect(eventType, payload.Action) {
		app.applyBranchProtection(client, payload)
	}

	acknowledge(w)
}

// acknowledge tells GitHub the delivery was received. Sent for every
// authenticated request regardless of whether a policy action occurred.
func acknowledge(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("received"))
}
