// Package jira reads issues from a Jira instance, either through the REST
// search API or through the XML search-request issue view.
package jira

import (
	"encoding/json"
	"fmt"
)

// Issue represents a Jira issue from the REST API. Fields are kept raw so
// that custom fields (epic link, effort) can be read by id.
type Issue struct {
	ID             string                     `json:"id"`
	Key            string                     `json:"key"`
	Self           string                     `json:"self"`
	Fields         map[string]json.RawMessage `json:"fields"`
	RenderedFields map[string]json.RawMessage `json:"renderedFields,omitempty"`
}

// NamedField is the common {id, name} shape of status, priority, issue type
// and component fields.
type NamedField struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// LinkType describes a Jira issue link type and its two directions.
type LinkType struct {
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// LinkedIssue is the far end of an issue link.
type LinkedIssue struct {
	Key string `json:"key"`
}

// IssueLink is one entry of the issuelinks field. Exactly one of
// InwardIssue and OutwardIssue is set.
type IssueLink struct {
	Type         LinkType     `json:"type"`
	InwardIssue  *LinkedIssue `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssue `json:"outwardIssue,omitempty"`
}

// TimeTracking is the timetracking field.
type TimeTracking struct {
	OriginalEstimate        string `json:"originalEstimate,omitempty"`
	OriginalEstimateSeconds int    `json:"originalEstimateSeconds,omitempty"`
}

// SearchResult represents a Jira JQL search response.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
