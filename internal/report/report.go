// Package report renders the outcome of a finished requirements tree
// into a human-readable verdict: a Markdown/HTML summary, an optional
// QR code pointing at it, and an optional GitHub commit status.
package report

import (
	"time"
)

// Outcome describes how a single top-level requirement concluded.
type Outcome int

const (
	// OutcomeSatisfied means the requirement reached satisfied=true
	// before the manager finished.
	OutcomeSatisfied Outcome = iota
	// OutcomeTimedOut means the manager finished (max_timeout or a
	// descendant's StopSimulation) while the requirement was still
	// unsatisfied.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	if o == OutcomeSatisfied {
		return "satisfied"
	}
	return "unsatisfied"
}

// Requirement is one top-level result line in a Verdict.
type Requirement struct {
	Name    string
	Outcome Outcome
}

// Verdict is the full result of one simulation run, assembled by the
// CLI from a finished Manager and its named top-level children.
type Verdict struct {
	RunName      string
	StartedAt    time.Time
	FinishedAt   time.Time
	Requirements []Requirement
}

// Passed reports whether every top-level requirement was satisfied.
func (v Verdict) Passed() bool {
	for _, r := range v.Requirements {
		if r.Outcome != OutcomeSatisfied {
			return false
		}
	}
	return true
}

// Duration is how long the run took, start to finish.
func (v Verdict) Duration() time.Duration {
	return v.FinishedAt.Sub(v.StartedAt)
}
