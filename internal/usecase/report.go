package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

// ReportDeps wires the adapters consumed by digest generation.
type ReportDeps struct {
	Snaps      ports.SnapshotStore
	Summarizer ports.Summarizer
	Notifier   ports.Notifier
	Trending   ports.TrendingSource
	ReportsDir string
	Logger     *slog.Logger
}

// ReportGenerator reads snapshot files, merges them into a Markdown
// digest, optionally asks the summarizer for prose, and hands the result
// to the notifier. It never mutates subscriptions or snapshots.
type ReportGenerator struct {
	snaps      ports.SnapshotStore
	summarizer ports.Summarizer
	notifier   ports.Notifier
	trending   ports.TrendingSource
	reportsDir string
	log        *slog.Logger
}

// NewReportGenerator constructs the digest component.
func NewReportGenerator(deps ReportDeps) *ReportGenerator {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ReportGenerator{
		snaps:      deps.Snaps,
		summarizer: deps.Summarizer,
		notifier:   deps.Notifier,
		trending:   deps.Trending,
		reportsDir: deps.ReportsDir,
		log:        log,
	}
}

// Generate builds the digest for one subscription over [from, to] days,
// writes it under the reports directory, and returns the file path.
func (g *ReportGenerator) Generate(ctx context.Context, sub domain.Subscription, from, to time.Time) (string, error) {
	subID := sub.ID
	entries, err := g.snaps.List(ports.SnapshotFilter{SubscriptionID: &subID, From: &from, To: &to})
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no snapshots for subscription %d between %s and %s",
			sub.ID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	// Entries arrive newest first; merge in chronological order so the
	// digest reads as a timeline.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Day.Before(entries[j].Day) })

	var merged domain.ActivityBundle
	var windowStart, windowEnd time.Time
	for i, entry := range entries {
		snap, err := g.snaps.Read(entry.Path)
		if err != nil {
			return "", fmt.Errorf("read snapshot: %w", err)
		}
		if i == 0 {
			windowStart = snap.WindowStart
		}
		windowEnd = snap.WindowEnd
		merged.Repo = snap.Activity.Repo
		merged.Releases = append(merged.Releases, snap.Activity.Releases...)
		merged.PullRequests = append(merged.PullRequests, snap.Activity.PullRequests...)
		merged.Issues = append(merged.Issues, snap.Activity.Issues...)
	}

	var summary string
	if g.summarizer != nil {
		summary, err = g.summarizer.SummarizeActivity(ctx, sub.Repository, merged)
		if err != nil {
			// The digest still ships without prose.
			g.log.Warn("summarization failed", "id", sub.ID, "repo", sub.Repository, "error", err)
			summary = ""
		}
	}

	var stories []domain.Story
	if g.trending != nil {
		stories, err = g.trending.TopStories(ctx, 10)
		if err != nil {
			g.log.Warn("trending fetch failed", "error", err)
			stories = nil
		}
	}

	content := formatDigest(sub, merged, summary, stories, windowStart, windowEnd)

	if err := os.MkdirAll(g.reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", g.reportsDir, err)
	}
	name := fmt.Sprintf("%s_sub%d_%s_ai_report.md",
		entries[len(entries)-1].Day.Format("20060102"), sub.ID, sub.SafeRepoName())
	path := filepath.Join(g.reportsDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	g.log.Info("report generated", "id", sub.ID, "repo", sub.Repository, "path", path)
	return path, nil
}

// Deliver sends a generated report to the subscription's recipients.
func (g *ReportGenerator) Deliver(ctx context.Context, sub domain.Subscription, reportPath string) error {
	if g.notifier == nil {
		return nil
	}
	content, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	subject := fmt.Sprintf("%s activity digest", sub.Repository)
	return g.notifier.Send(ctx, sub.Subscribers, subject, string(content))
}

// GenerateAndDeliver runs Generate then Deliver for every given
// subscription; failures are logged per subscription and never abort the
// batch. It returns the paths of successfully generated reports.
func (g *ReportGenerator) GenerateAndDeliver(ctx context.Context, subs []domain.Subscription, from, to time.Time) []string {
	var paths []string
	for _, sub := range subs {
		if !sub.Enabled {
			continue
		}
		path, err := g.Generate(ctx, sub, from, to)
		if err != nil {
			g.log.Warn("report generation failed", "id", sub.ID, "repo", sub.Repository, "error", err)
			continue
		}
		paths = append(paths, path)
		if err := g.Deliver(ctx, sub, path); err != nil {
			g.log.Warn("report delivery failed", "id", sub.ID, "repo", sub.Repository, "error", err)
		}
	}
	return paths
}

func formatDigest(sub domain.Subscription, activity domain.ActivityBundle, summary string, stories []domain.Story, from, to time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s activity digest\n\n", sub.Repository)
	fmt.Fprintf(&b, "Window: %s to %s (UTC)\n\n", from.Format("2006-01-02 15:04"), to.Format("2006-01-02 15:04"))

	repo := activity.Repo
	if repo.FullName != "" {
		fmt.Fprintf(&b, "## Repository\n\n")
		if repo.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", repo.Description)
		}
		fmt.Fprintf(&b, "- Stars: %d\n- Forks: %d\n- Open issues: %d\n", repo.Stars, repo.Forks, repo.OpenIssues)
		if repo.Language != "" {
			fmt.Fprintf(&b, "- Language: %s\n", repo.Language)
		}
		b.WriteString("\n")
	}

	if summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", strings.TrimSpace(summary))
	}

	fmt.Fprintf(&b, "## Releases (%d)\n\n", len(activity.Releases))
	if len(activity.Releases) == 0 {
		b.WriteString("No releases in this window.\n\n")
	}
	for _, rel := range activity.Releases {
		title := rel.Name
		if title == "" {
			title = rel.TagName
		}
		fmt.Fprintf(&b, "- **%s** (%s) %s\n", title, rel.PublishedAt.Format("2006-01-02"), rel.HTMLURL)
	}
	if len(activity.Releases) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Pull requests (%d)\n\n", len(activity.PullRequests))
	if len(activity.PullRequests) == 0 {
		b.WriteString("No pull request activity in this window.\n\n")
	}
	for _, pr := range activity.PullRequests {
		state := pr.State
		if pr.MergedAt != nil {
			state = "merged"
		}
		fmt.Fprintf(&b, "- #%d [%s] %s (@%s)\n", pr.Number, state, pr.Title, pr.User)
	}
	if len(activity.PullRequests) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Issues (%d)\n\n", len(activity.Issues))
	if len(activity.Issues) == 0 {
		b.WriteString("No issue activity in this window.\n\n")
	}
	for _, is := range activity.Issues {
		fmt.Fprintf(&b, "- #%d [%s] %s (@%s, %d comments)\n", is.Number, is.State, is.Title, is.User, is.Comments)
	}
	if len(activity.Issues) > 0 {
		b.WriteString("\n")
	}

	if len(stories) > 0 {
		fmt.Fprintf(&b, "## Trending on Hacker News\n\n")
		for _, story := range stories {
			fmt.Fprintf(&b, "%d. [%s](%s) - %d points\n", story.Rank, story.Title, story.URL, story.Points)
		}
		b.WriteString("\n")
	}

	return b.String()
}
