package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
	"RepoSentinel/pkg/retry"
)

// Client implements ports.UpstreamClient against the GitHub REST API.
// It owns auth headers, retry with backoff, rate-limit detection, and
// window filtering; beyond outbound calls it has no side effects.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

var _ ports.UpstreamClient = (*Client)(nil)

// NewClient builds a client from configuration. The token is injected,
// never read from the environment here.
func NewClient(cfg config.GitHubConfig, log *slog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	policy := retry.DefaultPolicy()
	if cfg.Retries > 0 {
		policy.MaxAttempts = cfg.Retries
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.APIURL, "/"),
		token:      cfg.Token,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
		logger:     log,
	}
}

type ghRepo struct {
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	HTMLURL     string    `json:"html_url"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	OpenIssues  int       `json:"open_issues_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ghRelease struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	HTMLURL     string     `json:"html_url"`
	Prerelease  bool       `json:"prerelease"`
	PublishedAt *time.Time `json:"published_at"`
}

type ghUser struct {
	Login string `json:"login"`
}

type ghPull struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	HTMLURL   string     `json:"html_url"`
	User      ghUser     `json:"user"`
	UpdatedAt time.Time  `json:"updated_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

type ghIssue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	User      ghUser    `json:"user"`
	Comments  int       `json:"comments"`
	UpdatedAt time.Time `json:"updated_at"`
	// Present only when the issue is a pull request in disguise.
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

// RepoInfo fetches repository metadata; an upstream 404 maps to
// domain.ErrRepoNotFound.
func (c *Client) RepoInfo(ctx context.Context, repo string) (domain.RepoInfo, error) {
	var wire ghRepo
	if err := c.get(ctx, repo, "/repos/"+repo, nil, &wire); err != nil {
		return domain.RepoInfo{}, err
	}
	return domain.RepoInfo{
		FullName:    wire.FullName,
		Description: wire.Description,
		HTMLURL:     wire.HTMLURL,
		Language:    wire.Language,
		Stars:       wire.Stars,
		Forks:       wire.Forks,
		OpenIssues:  wire.OpenIssues,
		UpdatedAt:   wire.UpdatedAt.UTC(),
	}, nil
}

// Releases lists releases whose publish time falls within [start, end],
// both bounds inclusive.
func (c *Client) Releases(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.Release, error) {
	var out []domain.Release
	err := c.paginate(ctx, repo, "/repos/"+repo+"/releases", nil, func(raw json.RawMessage) (bool, error) {
		var page []ghRelease
		if err := json.Unmarshal(raw, &page); err != nil {
			return false, fmt.Errorf("parse releases: %w", err)
		}
		for _, rel := range page {
			if rel.PublishedAt == nil {
				continue
			}
			ts := rel.PublishedAt.UTC()
			if !within(ts, start, end) {
				continue
			}
			out = append(out, domain.Release{
				TagName:     rel.TagName,
				Name:        rel.Name,
				Body:        rel.Body,
				HTMLURL:     rel.HTMLURL,
				Prerelease:  rel.Prerelease,
				PublishedAt: ts,
			})
			if limit > 0 && len(out) >= limit {
				return false, nil
			}
		}
		return len(page) == c.pageSize, nil
	})
	return out, err
}

// PullRequests lists pull requests updated within [start, end] inclusive.
func (c *Client) PullRequests(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.PullRequest, error) {
	params := url.Values{}
	params.Set("state", "all")
	params.Set("sort", "updated")
	params.Set("direction", "desc")

	var out []domain.PullRequest
	err := c.paginate(ctx, repo, "/repos/"+repo+"/pulls", params, func(raw json.RawMessage) (bool, error) {
		var page []ghPull
		if err := json.Unmarshal(raw, &page); err != nil {
			return false, fmt.Errorf("parse pulls: %w", err)
		}
		for _, pr := range page {
			ts := pr.UpdatedAt.UTC()
			if ts.Before(start) {
				// Sorted by update time descending; everything after
				// this is older than the window.
				return false, nil
			}
			if !within(ts, start, end) {
				continue
			}
			var merged *time.Time
			if pr.MergedAt != nil {
				m := pr.MergedAt.UTC()
				merged = &m
			}
			out = append(out, domain.PullRequest{
				Number:    pr.Number,
				Title:     pr.Title,
				State:     pr.State,
				HTMLURL:   pr.HTMLURL,
				User:      pr.User.Login,
				UpdatedAt: ts,
				MergedAt:  merged,
			})
			if limit > 0 && len(out) >= limit {
				return false, nil
			}
		}
		return len(page) == c.pageSize, nil
	})
	return out, err
}

// Issues lists true issues updated within [start, end] inclusive; pull
// requests surfaced by the issues endpoint are dropped.
func (c *Client) Issues(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.Issue, error) {
	params := url.Values{}
	params.Set("state", "all")
	params.Set("since", start.UTC().Format(time.RFC3339))

	var out []domain.Issue
	err := c.paginate(ctx, repo, "/repos/"+repo+"/issues", params, func(raw json.RawMessage) (bool, error) {
		var page []ghIssue
		if err := json.Unmarshal(raw, &page); err != nil {
			return false, fmt.Errorf("parse issues: %w", err)
		}
		for _, is := range page {
			if is.PullRequest != nil {
				continue
			}
			ts := is.UpdatedAt.UTC()
			if !within(ts, start, end) {
				continue
			}
			out = append(out, domain.Issue{
				Number:    is.Number,
				Title:     is.Title,
				State:     is.State,
				HTMLURL:   is.HTMLURL,
				User:      is.User.Login,
				Comments:  is.Comments,
				UpdatedAt: ts,
			})
			if limit > 0 && len(out) >= limit {
				return false, nil
			}
		}
		return len(page) == c.pageSize, nil
	})
	return out, err
}

// paginate walks list pages until handle reports it is done or a short
// page signals the end of the collection.
func (c *Client) paginate(ctx context.Context, repo, endpoint string, params url.Values, handle func(json.RawMessage) (bool, error)) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("per_page", strconv.Itoa(c.pageSize))

	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))

		var raw json.RawMessage
		if err := c.get(ctx, repo, endpoint, params, &raw); err != nil {
			return err
		}

		more, err := handle(raw)
		if err != nil {
			return &domain.FetchError{Repository: repo, Endpoint: endpoint, Err: err}
		}
		if !more {
			return nil
		}
	}
}

// get performs one API call under the retry policy and decodes the body
// into out. Rate-limit and 4xx responses abort retries immediately.
func (c *Client) get(ctx context.Context, repo, endpoint string, params url.Values, out any) error {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return &retry.Abort{Err: fmt.Errorf("new request: %w", err)}
		}
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if c.token != "" {
			req.Header.Set("Authorization", "token "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			if err := json.Unmarshal(body, out); err != nil {
				return &retry.Abort{Err: fmt.Errorf("decode %s: %w", endpoint, err)}
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return &retry.Abort{Err: domain.ErrRepoNotFound}
		case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
			return &retry.Abort{Err: &domain.RateLimitError{ResetAt: parseReset(resp.Header.Get("X-RateLimit-Reset"))}}
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("github returned %s", resp.Status)
		default:
			return &retry.Abort{Err: fmt.Errorf("github returned %s", resp.Status)}
		}
	})
	if err == nil {
		return nil
	}

	var rateLimited *domain.RateLimitError
	if errors.As(err, &rateLimited) || errors.Is(err, domain.ErrRepoNotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	if c.logger != nil {
		c.logger.Warn("upstream fetch failed", "repo", repo, "endpoint", endpoint, "error", err)
	}
	return &domain.FetchError{Repository: repo, Endpoint: endpoint, Err: err}
}

func within(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}

func parseReset(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
