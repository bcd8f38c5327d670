package hackernews

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

// Crawler scrapes the Hacker News front page for trending stories.
type Crawler struct {
	baseURL      string
	defaultLimit int
	client       *http.Client
}

var _ ports.TrendingSource = (*Crawler)(nil)

// NewCrawler wires an HTTP client against the configured base URL.
func NewCrawler(cfg config.HackerNewsConfig) *Crawler {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	return &Crawler{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultLimit: limit,
		client:       &http.Client{Timeout: 20 * time.Second},
	}
}

// TopStories returns the first limit front-page stories in rank order.
func (c *Crawler) TopStories(ctx context.Context, limit int) ([]domain.Story, error) {
	if limit <= 0 {
		limit = c.defaultLimit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "RepoSentinel/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request front page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hacker news returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return c.extractStories(doc, limit), nil
}

func (c *Crawler) extractStories(doc *goquery.Document, limit int) []domain.Story {
	stories := make([]domain.Story, 0, limit)

	doc.Find("tr.athing").EachWithBreak(func(i int, row *goquery.Selection) bool {
		title := row.Find("span.titleline > a").First()
		if title.Length() == 0 {
			return true
		}

		story := domain.Story{
			Rank:  i + 1,
			Title: strings.TrimSpace(title.Text()),
		}
		if rank := strings.TrimSuffix(strings.TrimSpace(row.Find("span.rank").Text()), "."); rank != "" {
			if n, err := strconv.Atoi(rank); err == nil {
				story.Rank = n
			}
		}
		if href, ok := title.Attr("href"); ok {
			story.URL = c.absoluteURL(href)
		}

		// The score lives in the subtext row right below the story row.
		score := row.Next().Find("span.score").Text()
		if fields := strings.Fields(score); len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				story.Points = n
			}
		}

		stories = append(stories, story)
		return len(stories) < limit
	})

	return stories
}

func (c *Crawler) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return c.baseURL + "/" + strings.TrimPrefix(href, "/")
}
