package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func postWebhook(t *testing.T, app *App, event string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-Hub-Signature-256", signBody(t, "sha256", body, app.cfg.WebhookSecret))

	rec := httptest.NewRecorder()
	app.WebhookHandler(rec, req)
	return rec
}

const pullRequestOpenedBody = `{
	"action": "opened",
	"repository": {"full_name": "octo/widgets", "default_branch": "main", "private": false},
	"sender": {"login": "octocat"},
	"installation": {"id": 42}
}`

func TestWebhookInvalidSignature(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)
	authCalls := 0
	app.clientFor = func(int64) (GitHubAPI, error) {
		authCalls++
		return gh, nil
	}

	body := []byte(pullRequestOpenedBody)
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	rec := httptest.NewRecorder()
	app.WebhookHandler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, authCalls, "credential issuance must not run for unsigned requests")
	assert.Empty(t, gh.readCalls)
	assert.Empty(t, gh.writeCalls)
}

func TestWebhookMissingSignatureHeader(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader([]byte(pullRequestOpenedBody)))
	req.Header.Set("X-GitHub-Event", "pull_request")

	rec := httptest.NewRecorder()
	app.WebhookHandler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, gh.writeCalls)
}

func TestWebhookMalformedBody(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)

	rec := postWebhook(t, app, "pull_request", []byte("{not json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, gh.readCalls)
}

func TestWebhookPullRequestOpened(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)

	rec := postWebhook(t, app, "pull_request", []byte(pullRequestOpenedBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"octo/widgets@main"}, gh.readCalls)
	assert.Equal(t, []string{"octo/widgets@main"}, gh.writeCalls)
	assert.Equal(t, []string{"octo/widgets"}, gh.issues)
}

func TestWebhookSHA1SignatureAccepted(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)

	body := []byte(pullRequestOpenedBody)
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature", signBody(t, "sha1", body, app.cfg.WebhookSecret))

	rec := httptest.NewRecorder()
	app.WebhookHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gh.writeCalls, 1)
}

func TestWebhookUnroutedEventStillAcknowledged(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)

	body := []byte(`{
		"action": "deleted",
		"repository": {"full_name": "octo/widgets", "default_branch": "main", "private": false},
		"sender": {"login": "octocat"},
		"installation": {"id": 42}
	}`)
	rec := postWebhook(t, app, "repository", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gh.readCalls)
	assert.Empty(t, gh.writeCalls)
	assert.Empty(t, gh.issues)
}

func TestWebhookMissingInstallationAcknowledged(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)

	body := []byte(`{
		"action": "opened",
		"repository": {"full_name": "octo/widgets", "default_branch": "main", "private": false},
		"sender": {"login": "octocat"}
	}`)
	rec := postWebhook(t, app, "pull_request", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gh.writeCalls)
}

func TestWebhookCredentialFailureAcknowledged(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)
	app.clientFor = func(int64) (GitHubAPI, error) {
		return nil, errors.New("installation revoked")
	}

	rec := postWebhook(t, app, "pull_request", []byte(pullRequestOpenedBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gh.writeCalls)
	assert.Empty(t, gh.issues)
}

func TestWebhookPrivateRepositoryNoCalls(t *testing.T) {
	gh := newFakeGitHub()
	app := newTestApp(gh)

	body := []byte(`{
		"action": "created",
		"repository": {"full_name": "octo/secret", "default_branch": "main", "private": true},
		"sender": {"login": "octocat"},
		"installation": {"id": 42}
	}`)
	rec := postWebhook(t, app, "repository", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gh.readCalls)
	assert.Empty(t, gh.writeCalls)
	assert.Empty(t, gh.issues)
}
