package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irsreport/irsreport/internal/tracker/testutil"
)

func mockIssues(n int) []testutil.JiraIssue {
	out := make([]testutil.JiraIssue, n)
	for i := range out {
		out[i] = testutil.JiraIssue{
			Key:      fmt.Sprintf("IRS-%d", i+1),
			Type:     "User Story",
			Summary:  fmt.Sprintf("Story %d", i+1),
			Status:   "Open",
			Priority: "Major",
		}
	}
	return out
}

func testClient(srv *testutil.JiraMockServer) *Client {
	c := NewClient(srv.URL(), "alice", "secret")
	c.MaxElapsed = 5 * time.Second
	return c
}

func TestSearchIssuesPagination(t *testing.T) {
	srv := testutil.NewJiraMockServer(mockIssues(7)...)
	defer srv.Close()

	c := testClient(srv)
	c.PageSize = 3

	issues, err := c.SearchIssues(context.Background(), "project = IRS", []string{"summary", "priority"})
	require.NoError(t, err)
	require.Len(t, issues, 7)
	for i, is := range issues {
		assert.Equal(t, fmt.Sprintf("IRS-%d", i+1), is.Key)
	}

	reqs := srv.GetRequests()
	require.Len(t, reqs, 3)
	for i, req := range reqs {
		q, err := url.ParseQuery(req.RawQuery)
		require.NoError(t, err)
		assert.Equal(t, "project = IRS", q.Get("jql"))
		assert.Equal(t, "summary,priority", q.Get("fields"))
		assert.Equal(t, "renderedFields", q.Get("expand"))
		assert.Equal(t, fmt.Sprint(i*3), q.Get("startAt"))
		assert.Equal(t, "3", q.Get("maxResults"))
	}
}

func TestSearchIssuesEmpty(t *testing.T) {
	srv := testutil.NewJiraMockServer()
	defer srv.Close()

	issues, err := testClient(srv).SearchIssues(context.Background(), "project = NONE", nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 1, srv.GetRequestCount())
}

func TestClientAuth(t *testing.T) {
	tests := []struct {
		name     string
		username string
		token    string
		want     string
	}{
		{"basic", "alice", "secret", "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:secret"))},
		{"bearer", "", "pat-123", "Bearer pat-123"},
		{"anonymous", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewJiraMockServer(mockIssues(1)...)
			defer srv.Close()

			c := NewClient(srv.URL(), tt.username, tt.token)
			_, err := c.SearchIssues(context.Background(), "x", nil)
			require.NoError(t, err)

			reqs := srv.GetRequests()
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.want, reqs[0].Headers.Get("Authorization"))
			assert.Equal(t, "application/json", reqs[0].Headers.Get("Accept"))
		})
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := testutil.NewJiraMockServer(mockIssues(2)...)
			defer srv.Close()
			srv.FailNext(2, status)

			issues, err := testClient(srv).SearchIssues(context.Background(), "x", nil)
			require.NoError(t, err)
			assert.Len(t, issues, 2)
			assert.Equal(t, 3, srv.GetRequestCount())
		})
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	srv := testutil.NewJiraMockServer(mockIssues(1)...)
	defer srv.Close()
	srv.SetAuthError(true)

	_, err := testClient(srv).SearchIssues(context.Background(), "x", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, 1, srv.GetRequestCount())
}

func TestClientCancelledContext(t *testing.T) {
	srv := testutil.NewJiraMockServer(mockIssues(1)...)
	defer srv.Close()
	srv.FailNext(100, http.StatusServiceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv).SearchIssues(ctx, "x", nil)
	require.Error(t, err)
}

func TestClientRequiresURL(t *testing.T) {
	c := NewClient("", "", "")
	_, err := c.Get(context.Background(), "/rest/api/2/search", "application/json")
	assert.ErrorContains(t, err, "URL not configured")
}

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{400, false},
		{401, false},
		{404, false},
		{429, true},
		{500, true},
		{502, true},
	}
	for _, tt := range tests {
		e := &APIError{StatusCode: tt.status}
		assert.Equal(t, tt.want, e.Retryable(), "status %d", tt.status)
	}
}

func TestDescriptionToPlainText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"null", `null`, ""},
		{"empty", ``, ""},
		{"string", `"plain text"`, "plain text"},
		{
			"adf",
			`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello "},{"type":"text","text":"world"}]},{"type":"paragraph","content":[{"type":"text","text":"Second"}]}]}`,
			"Hello world\nSecond",
		},
		{"unknown object", `{"foo":1}`, `{"foo":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescriptionToPlainText(json.RawMessage(tt.raw)))
		})
	}
}
