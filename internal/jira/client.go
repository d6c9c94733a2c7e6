package jira

import (
	"context"
	"encoding/base64"
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

	"github.com/cenkalti/backoff/v4"
)

// DefaultPageSize is the number of issues requested per search page.
const DefaultPageSize = 100

const retryMaxElapsed = 30 * time.Second

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// PageSize is the maxResults of each search request.
	PageSize int

	// MaxElapsed bounds the total time spent retrying one request.
	MaxElapsed time.Duration
}

// NewClient creates a new Jira client.
func NewClient(url, username, apiToken string) *Client {
	return &Client{
		URL:      strings.TrimSuffix(url, "/"),
		Username: username,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Logger:     slog.Default(),
		PageSize:   DefaultPageSize,
		MaxElapsed: retryMaxElapsed,
	}
}

func (c *Client) newBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.MaxElapsed
	return bo
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// SearchIssues queries Jira using JQL and returns all matching issues,
// handling pagination. Rendered (HTML) fields are requested alongside the
// raw ones.
func (c *Client) SearchIssues(ctx context.Context, jql string, fields []string) ([]Issue, error) {
	var allIssues []Issue
	startAt := 0
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	for {
		params := url.Values{
			"jql":        {jql},
			"fields":     {strings.Join(fields, ",")},
			"expand":     {"renderedFields"},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(pageSize)},
		}

		apiURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.URL, params.Encode())

		body, err := c.Get(ctx, apiURL, "application/json")
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result SearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		allIssues = append(allIssues, result.Issues...)
		c.logger().Debug("jira search page", "start", startAt, "received", len(result.Issues), "total", result.Total)

		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			break
		}
		startAt += len(result.Issues)
	}

	return allIssues, nil
}

// Get fetches apiURL with authentication, retrying transient failures, and
// returns the response body.
func (c *Client) Get(ctx context.Context, apiURL, accept string) ([]byte, error) {
	var body []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		b, err := c.doRequest(ctx, http.MethodGet, apiURL, accept)
		if err == nil {
			body = b
			return nil
		}
		if isRetryable(ctx, err) {
			c.logger().Warn("jira request failed, retrying", "attempt", attempt, "error", err)
			return err // Retryable - backoff will retry
		}
		return backoff.Permanent(err) // Non-retryable - stop immediately
	}, backoff.WithContext(c.newBackoff(), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// isRetryable returns true for network failures and 429/5xx responses.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// doRequest executes an authenticated HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, apiURL, accept string) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "irsreport/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	return respBody, nil
}

// setAuth sets the appropriate authentication header on the request.
// Without any credentials the request is sent anonymously.
func (c *Client) setAuth(req *http.Request) {
	switch {
	case c.Username != "":
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	case c.APIToken != "":
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DescriptionToPlainText extracts text from a description field that is
// either a plain JSON string or an ADF (Atlassian Document Format) document.
func DescriptionToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var doc struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		return string(raw)
	}

	// Extract text from ADF nodes
	var parts []string
	for _, block := range doc.Content {
		var line []string
		for _, inline := range block.Content {
			if inline.Text != "" {
				line = append(line, inline.Text)
			}
		}
		if len(line) > 0 {
			parts = append(parts, strings.Join(line, ""))
		}
	}

	return strings.Join(parts, "\n")
}
