package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Repository describes one repository affected by an event. Installation
// events list repositories without a default branch or owner details, so only
// FullName and Private are guaranteed to be set on the bulk path.
type Repository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// Sender identifies the user whose action triggered the event.
type Sender struct {
	Login string `json:"login"`
}

// Installation carries the installation the event belongs to. Its ID is what
// the app exchanges for an installation access token.
type Installation struct {
	ID int64 `json:"id"`
}

// WebhookPayload is the subset of the GitHub webhook JSON this app reads.
// Repository is set on repository and pull_request events; Repositories on
// installation events.
type WebhookPayload struct {
	Action       string        `json:"action"`
	Repository   *Repository   `json:"repository"`
	Repositories []Repository  `json:"repositories"`
	Sender       Sender        `json:"sender"`
	Installation *Installation `json:"installation"`
}

var errMissingInstallation = errors.New("payload carries no installation id")

// parseWebhookPayload decodes the raw request body into the typed payload.
// A body that is not well-formed JSON fails here, before any credential work.
func parseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("payload: invalid JSON: %w", err)
	}
	return &p, nil
}

// installationID returns the installation the event belongs to. Every event a
// GitHub App receives should carry one; its absence is a malformed event.
func (p *WebhookPayload) installationID() (int64, error) {
	if p.Installation == nil || p.Installation.ID == 0 {
		return 0, errMissingInstallation
	}
	return p.Installation.ID, nil
}
