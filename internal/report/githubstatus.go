package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v69/github"
)

// rateLimitWarningThreshold: log a warning once the remaining API
// quota drops below this value.
const rateLimitWarningThreshold = 100

// GitHubStatusReporter posts a run's verdict as a commit status,
// adapted from internal/forge/github.go's client construction and
// scoped down to the one operation this domain needs.
type GitHubStatusReporter struct {
	client *github.Client
	logger *slog.Logger
}

// NewGitHubStatusReporter constructs a reporter. baseURL is the GitHub
// Enterprise API URL; leave empty for github.com.
func NewGitHubStatusReporter(httpClient *http.Client, token, baseURL string, logger *slog.Logger) (*GitHubStatusReporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := github.NewClient(httpClient).WithAuthToken(token)

	if baseURL != "" && baseURL != "https://api.github.com" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("report: configure enterprise url: %w", err)
		}
	}

	return &GitHubStatusReporter{client: client, logger: logger}, nil
}

// PostStatus sets a commit status on sha for repo ("owner/repo"),
// mapping v.Passed() to the "success"/"failure" GitHub status states.
func (r *GitHubStatusReporter) PostStatus(ctx context.Context, repo, sha string, v Verdict) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	state := "success"
	if !v.Passed() {
		state = "failure"
	}

	statusContext := "simreq"
	description := fmt.Sprintf("%s (%s)", v.RunName, v.Duration())

	_, resp, err := r.client.Repositories.CreateStatus(ctx, owner, name, sha, &github.RepoStatus{
		State:       &state,
		Context:     &statusContext,
		Description: &description,
	})
	if err != nil {
		return fmt.Errorf("report: post commit status: %w", err)
	}
	r.checkRate(resp)
	return nil
}

func (r *GitHubStatusReporter) checkRate(resp *github.Response) {
	if resp == nil {
		return
	}
	remaining := resp.Rate.Remaining
	if remaining > 0 && remaining < rateLimitWarningThreshold {
		r.logger.Warn("github rate limit low",
			"remaining", remaining,
			"limit", resp.Rate.Limit,
			"reset", resp.Rate.Reset.Format(time.RFC3339),
		)
	}
}

// splitRepo splits "owner/repo" into its components.
func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("report: invalid repo format %q, expected owner/repo", repo)
	}
	return parts[0], parts[1], nil
}
