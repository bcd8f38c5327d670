package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

const systemPrompt = "You are a release-notes editor. Given raw GitHub repository " +
	"activity, write a concise Markdown summary of what happened: notable releases, " +
	"merged pull requests, and active issues. Keep it factual and under 300 words."

// DeepSeekClient implements ports.Summarizer against the DeepSeek
// OpenAI-compatible chat completions API.
type DeepSeekClient struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	temp       float64
	httpClient *http.Client
}

var _ ports.Summarizer = (*DeepSeekClient)(nil)

// NewDeepSeekClient builds a client from configuration.
func NewDeepSeekClient(cfg config.DeepSeekConfig) *DeepSeekClient {
	return &DeepSeekClient{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		temp:      cfg.Temp,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SummarizeActivity posts the raw activity as a user message and returns
// the model's Markdown prose.
func (c *DeepSeekClient) SummarizeActivity(ctx context.Context, repo string, activity domain.ActivityBundle) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("deepseek client misconfigured")
	}

	raw, err := json.Marshal(activity)
	if err != nil {
		return "", fmt.Errorf("marshal activity: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Repository: %s\n\n%s", repo, raw)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal deepseek payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("deepseek error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode deepseek response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
