package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAPIBaseURL = "https://api.github.com"
	acceptV3          = "application/vnd.github.v3+json"
)

// GitHubAPI is the platform surface the protection pipeline depends on. The
// orchestrator and notifier only ever see this interface; tests substitute a
// recording fake.
type GitHubAPI interface {
	// GetBranchProtection reports whether the branch already has a
	// protection rule.
	GetBranchProtection(repo, branch string) (bool, error)

	// SetBranchProtection writes the protection rule for the branch.
	SetBranchProtection(repo, branch string, policy ProtectionPolicy) error

	// CreateIssue opens an issue in the repository.
	CreateIssue(repo, title, body string) error
}

// githubClient is a thin bearer-authenticated HTTP client for the GitHub REST
// API. The same type serves both authentication stages: app-level calls carry
// the signed JWT, installation-level calls the access token.
type githubClient struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

func newAppClient(baseURL, appJWT string) *githubClient {
	return &githubClient{
		baseURL:    baseURL,
		authHeader: "Bearer " + appJWT,
		httpClient: defaultHTTPClient(),
	}
}

func newInstallationClient(baseURL, token string) *githubClient {
	return &githubClient{
		baseURL:    baseURL,
		authHeader: "token " + token,
		httpClient: defaultHTTPClient(),
	}
}

// defaultHTTPClient bounds every API call so a stalled request fails the
// delivery instead of hanging the handler goroutine.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// do performs one authenticated API request and returns the status code and
// response body.
func (c *githubClient) do(method, path, accept string, body interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("github: failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "branch-protector")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// InstallationToken is the GitHub App installation token response.
type InstallationToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// CreateAppInstallationAccessToken exchanges the app assertion for a
// short-lived token scoped to one installation.
func (c *githubClient) CreateAppInstallationAccessToken(installationID int64) (string, error) {
	path := fmt.Sprintf("/app/installations/%d/access_tokens", installationID)

	status, body, err := c.do("POST", path, acceptV3, nil)
	if err != nil {
		return "", fmt.Errorf("github: installation token request failed: %w", err)
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("github: installation token request returned %d: %s", status, body)
	}

	var tok InstallationToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("github: failed to parse token response: %w", err)
	}
	return tok.Token, nil
}

func (c *githubClient) GetBranchProtection(repo, branch string) (bool, error) {
	path := fmt.Sprintf("/repos/%s/branches/%s/protection", repo, branch)

	status, body, err := c.do("GET", path, defaultProtectionPolicy.AcceptHeader, nil)
	if err != nil {
		return false, fmt.Errorf("github: branch protection read failed: %w", err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		// "Branch not protected" — the rule is absent, not an error.
		return false, nil
	default:
		return false, fmt.Errorf("github: branch protection read returned %d: %s", status, body)
	}
}

// branchProtectionRequest is the update-branch-protection API body. The API
// requires the status-checks and restrictions keys to be present even when
// null.
type branchProtectionRequest struct {
	RequiredPullRequestReviews requiredReviews `json:"required_pull_request_reviews"`
	EnforceAdmins              bool            `json:"enforce_admins"`
	RequiredStatusChecks       interface{}     `json:"required_status_checks"`
	Restrictions               interface{}     `json:"restrictions"`
}

type requiredReviews struct {
	RequiredApprovingReviewCount int `json:"required_approving_review_count"`
}

func (c *githubClient) SetBranchProtection(repo, branch string, policy ProtectionPolicy) error {
	path := fmt.Sprintf("/repos/%s/branches/%s/protection", repo, branch)
	reqBody := branchProtectionRequest{
		RequiredPullRequestReviews: requiredReviews{
			RequiredApprovingReviewCount: policy.RequiredApprovingReviewCount,
		},
		EnforceAdmins: policy.EnforceAdmins,
	}

	status, body, err := c.do("PUT", path, policy.AcceptHeader, reqBody)
	if err != nil {
		return fmt.Errorf("github: branch protection write failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("github: branch protection write returned %d: %s", status, body)
	}
	return nil
}

type issueRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (c *githubClient) CreateIssue(repo, title, body string) error {
	path := fmt.Sprintf("/repos/%s/issues", repo)

	status, respBody, err := c.do("POST", path, acceptV3, issueRequest{Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("github: issue creation failed: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("github: issue creation returned %d: %s", status, respBody)
	}
	return nil
}
