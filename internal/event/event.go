package event

import (
	"strings"

	"github.com/gantryci/gantry/internal/provider"
)

// Kind identifies the class of event that started a pipeline run.
type Kind string

const (
	// KindPush is a branch push.
	KindPush Kind = "push"
	// KindPullRequest is a pull request open or update.
	KindPullRequest Kind = "pull_request"
)

// Event is the immutable input that starts a run.
type Event struct {
	Kind   Kind   `json:"kind"`
	Branch string `json:"branch"`
}

// Ref returns the fully qualified ref for the event branch, the form
// workflow conditions compare against.
func (e Event) Ref() string {
	if e.Branch == "" {
		return ""
	}
	return "refs/heads/" + e.Branch
}

// Matches reports whether the event satisfies the workflow trigger.
// Evaluation fails closed: an unrecognized event kind never matches, so the
// workflow is skipped rather than the run aborted.
func Matches(e Event, trigger provider.Trigger) bool {
	switch e.Kind {
	case KindPush:
		if trigger.Push == nil {
			return false
		}
		return matchBranches(e.Branch, trigger.Push.Branches)
	case KindPullRequest:
		if trigger.PullRequest == nil {
			return false
		}
		return matchBranches(e.Branch, trigger.PullRequest.Branches)
	default:
		return false
	}
}

// matchBranches applies a branch filter list. An empty filter matches every
// branch. A trailing "*" matches a prefix, which covers the release/* style
// patterns these files use.
func matchBranches(branch string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, filter := range filters {
		if matchBranch(branch, filter) {
			return true
		}
	}
	return false
}

func matchBranch(branch, filter string) bool {
	if strings.HasSuffix(filter, "*") {
		return strings.HasPrefix(branch, strings.TrimSuffix(filter, "*"))
	}
	return branch == filter
}
