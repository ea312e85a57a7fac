package main

// protectedEventActions lists the event/action combinations that trigger the
// protection workflow. Action matching is exact: "reopened" contains "opened"
// but must not fire the pull_request rule.
var protectedEventActions = map[string]string{
	"pull_request": "opened",
	"repository":   "created",
	"installation": "created",
}

// shouldProtect reports whether this event/action combination triggers the
// protection workflow. Any other combination is acknowledged without action;
// delivery itself still succeeded.
func shouldProtect(eventType, action string) bool {
	want, ok := protectedEventActions[eventType]
	return ok && action == want
}
