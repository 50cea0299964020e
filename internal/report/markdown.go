package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// Markdown renders v as a Markdown document: a heading naming the run
// and its overall verdict, followed by one line per top-level
// requirement.
func Markdown(v Verdict) string {
	var b strings.Builder

	overall := "PASSED"
	if !v.Passed() {
		overall = "FAILED"
	}

	fmt.Fprintf(&b, "# Simulation run: %s\n\n", v.RunName)
	fmt.Fprintf(&b, "**Result:** %s\n\n", overall)
	fmt.Fprintf(&b, "**Duration:** %s\n\n", v.Duration())
	b.WriteString("## Requirements\n\n")

	for _, r := range v.Requirements {
		mark := "✅"
		if r.Outcome != OutcomeSatisfied {
			mark = "❌"
		}
		fmt.Fprintf(&b, "- %s **%s** — %s\n", mark, r.Name, r.Outcome)
	}

	return b.String()
}

// HTML renders v's Markdown report through goldmark into a minimal,
// self-contained HTML document, mirroring the markdown-to-email-body
// rendering this codebase already does elsewhere.
func HTML(v Verdict) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(v)), &buf); err != nil {
		return "", fmt.Errorf("report: render markdown: %w", err)
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>`, v.RunName, buf.String())

	return html, nil
}
