package main

import "fmt"

const (
	issueTitle               = "Default Branch Protected 🔐"
	protectedBranchesHelpURL = "https://help.github.com/en/articles/about-protected-branches"
)

// notifyUser opens an advisory issue telling the triggering user which rules
// now apply to the default branch. Pure side effect against the platform; the
// caller decides what a failure means.
func notifyUser(client GitHubAPI, repo, username string) error {
	body := fmt.Sprintf(`@%s: branch protection rules have been added to the default branch.
- Collaborators cannot force push to the protected branch or delete the branch
- All commits must be made to a non-protected branch and submitted via a pull request
- There must be at least %d approving review and no changes requested before a PR can be merged

**Note:** All configured restrictions are enforced for administrators.

You can learn more about protected branches here: [About protected branches - GitHub Help](%s)`,
		username,
		defaultProtectionPolicy.RequiredApprovingReviewCount,
		protectedBranchesHelpURL,
	)

	return client.CreateIssue(repo, issueTitle, body)
}
