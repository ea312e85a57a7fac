package main

import (
	"log"
	"time"
)

// ProtectionPolicy is the rule set written to every protected branch.
type ProtectionPolicy struct {
	RequiredApprovingReviewCount int
	EnforceAdmins                bool
	AcceptHeader                 string
}

// defaultProtectionPolicy is the one policy this app applies. Process-wide
// constant, never mutated at runtime.
var defaultProtectionPolicy = ProtectionPolicy{
	// Require at least one approving review with no pending change requests
	// before a pull request can be merged.
	RequiredApprovingReviewCount: 1,
	// Enforce all configured restrictions for administrators too.
	EnforceAdmins: true,
	// Opt-in header for the branch-protection API.
	// See https://developer.github.com/v3/repos/branches/#update-branch-protection
	AcceptHeader: "application/vnd.github.luke-cage-preview+json",
}

// branchPropagationDelay is how long the singular path waits before touching a
// freshly created repository: the default branch may not have materialized on
// GitHub's side yet. Kept as a named constant so it can be swapped for a
// poll-with-backoff strategy without touching the orchestration.
const branchPropagationDelay = 500 * time.Millisecond

// bulkDefaultBranch is the branch protected for repositories listed in an
// installation event, whose payload omits the default branch name.
const bulkDefaultBranch = "master"

// applyBranchProtection applies the policy to every repository the event
// affects and opens an advisory issue for each branch actually protected.
//
// Installation events carry an explicit repository list (bulk path); repository
// and pull_request events carry a single repository and its default branch
// (singular path).
func (app *App) applyBranchProtection(client GitHubAPI, p *WebhookPayload) {
	if len(p.Repositories) > 0 {
		// Bulk path: the app was just installed on an account. Protect every
		// listed repository immediately; each iteration is independent, so one
		// failure never aborts its siblings.
		for _, repo := range p.Repositories {
			app.protectAndNotify(client, repo.FullName, bulkDefaultBranch, repo.Private, p.Sender.Login)
		}
		return
	}

	if p.Repository == nil {
		log.Println("[Protect] Event carries no repository, nothing to do")
		return
	}

	// Singular path: a single new repository or pull request. Give GitHub a
	// moment in case default branch creation is delayed.
	time.Sleep(app.propagationDelay)
	app.protectAndNotify(client, p.Repository.FullName, p.Repository.DefaultBranch, p.Repository.Private, p.Sender.Login)
}

// protectAndNotify protects one branch and files the advisory issue when a
// rule was written. Failures are logged only: the webhook response is already
// decided, and GitHub's own redelivery covers transient trouble.
func (app *App) protectAndNotify(client GitHubAPI, repo, branch string, private bool, sender string) {
	if private {
		log.Printf("[Protect] Skipping private repository %s\n", repo)
		app.publishAudit(repo, branch, outcomeSkippedPrivate)
		return
	}

	applied, err := protectBranch(client, repo, branch)
	if err != nil {
		log.Printf("[Protect] Warning: could not protect %s@%s: %v\n", repo, branch, err)
		app.publishAudit(repo, branch, outcomeFailed)
		return
	}
	if !applied {
		log.Printf("[Protect] %s@%s is already protected, leaving the rule untouched\n", repo, branch)
		app.publishAudit(repo, branch, outcomeAlreadyProtected)
		return
	}

	log.Printf("[Protect] Enabled branch protection for %s@%s\n", repo, branch)
	app.publishAudit(repo, branch, outcomeProtected)

	if err := notifyUser(client, repo, sender); err != nil {
		log.Printf("[Protect] Warning: could not open advisory issue in %s: %v\n", repo, err)
	}
}

// protectBranch writes the policy only when the branch has no protection rule
// yet, so duplicate deliveries and rules applied by a human operator are left
// alone. Returns whether a rule was written.
func protectBranch(client GitHubAPI, repo, branch string) (bool, error) {
	protected, err := client.GetBranchProtection(repo, branch)
	if err != nil {
		return false, err
	}
	if protected {
		return false, nil
	}
	if err := client.SetBranchProtection(repo, branch, defaultProtectionPolicy); err != nil {
		return false, err
	}
	return true, nil
}
