package domain

import "time"

// RepoInfo is the upstream repository metadata captured with each snapshot.
type RepoInfo struct {
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	HTMLURL     string    `json:"html_url"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	OpenIssues  int       `json:"open_issues_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Release is a published upstream release.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// PullRequest is an upstream pull request, keyed by its update time.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	HTMLURL   string     `json:"html_url"`
	User      string     `json:"user"`
	UpdatedAt time.Time  `json:"updated_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
}

// Issue is an upstream issue, keyed by its update time. Pull requests
// returned by the upstream issues endpoint are filtered out before this
// type is produced.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	User      string    `json:"user"`
	Comments  int       `json:"comments"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActivityBundle is everything fetched for one repository and one window.
type ActivityBundle struct {
	Repo         RepoInfo      `json:"repo"`
	Releases     []Release     `json:"releases"`
	PullRequests []PullRequest `json:"pull_requests"`
	Issues       []Issue       `json:"issues"`
}

// Snapshot is the immutable per-(subscription, day) capture written to disk.
type Snapshot struct {
	SubscriptionID int            `json:"subscription_id"`
	Repository     string         `json:"repository"`
	WindowStart    time.Time      `json:"window_start"`
	WindowEnd      time.Time      `json:"window_end"`
	Activity       ActivityBundle `json:"activity"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// Story is a trending item scraped from Hacker News.
type Story struct {
	Rank   int    `json:"rank"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Points int    `json:"points"`
}
