package report

import (
	"strings"
	"testing"
	"time"
)

func TestVerdictPassed(t *testing.T) {
	v := Verdict{
		RunName: "smoke",
		Requirements: []Requirement{
			{Name: "a", Outcome: OutcomeSatisfied},
			{Name: "b", Outcome: OutcomeSatisfied},
		},
	}
	if !v.Passed() {
		t.Errorf("expected Passed() true when all requirements satisfied")
	}
}

func TestVerdictFailedOnAnyTimeout(t *testing.T) {
	v := Verdict{
		RunName: "smoke",
		Requirements: []Requirement{
			{Name: "a", Outcome: OutcomeSatisfied},
			{Name: "b", Outcome: OutcomeTimedOut},
		},
	}
	if v.Passed() {
		t.Errorf("expected Passed() false when any requirement timed out")
	}
}

func TestMarkdownReportsEachRequirement(t *testing.T) {
	v := Verdict{
		RunName:    "nav-smoke",
		StartedAt:  time.Unix(0, 0),
		FinishedAt: time.Unix(12, 0),
		Requirements: []Requirement{
			{Name: "reaches-goal", Outcome: OutcomeSatisfied},
			{Name: "avoids-obstacle", Outcome: OutcomeTimedOut},
		},
	}

	md := Markdown(v)
	if !strings.Contains(md, "FAILED") {
		t.Errorf("expected overall FAILED verdict in markdown: %s", md)
	}
	if !strings.Contains(md, "reaches-goal") || !strings.Contains(md, "avoids-obstacle") {
		t.Errorf("expected both requirement names in markdown: %s", md)
	}
}

func TestHTMLWrapsMarkdownConversion(t *testing.T) {
	v := Verdict{
		RunName: "nav-smoke",
		Requirements: []Requirement{
			{Name: "reaches-goal", Outcome: OutcomeSatisfied},
		},
	}

	html, err := HTML(v)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<html>") || !strings.Contains(html, "reaches-goal") {
		t.Errorf("expected an HTML document containing the requirement name, got: %s", html)
	}
}
