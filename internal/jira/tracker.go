package jira

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/irsreport/irsreport/internal/debug"
	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/types"
)

func init() {
	tracker.Register("jira", func() tracker.Source {
		return &Tracker{}
	})
	tracker.Register("jira-xml", func() tracker.Source {
		return &XMLTracker{}
	})
}

// Source config keys beyond tracker.CommonConfig.
const (
	ConfigEpicField   = "epic_field"
	ConfigEffortField = "effort_field"
	ConfigPageSize    = "page_size"
	ConfigTimeout     = "timeout"
	ConfigShowURI     = "show_uri"
	ConfigShowXML     = "show_xml"
)

// settings is what both Jira sources read from their config.
type settings struct {
	cfg      *tracker.Config
	jiraURL  string
	username string
	secret   string
	query    string
	fields   []string
	mapping  Mapping
	timeout  time.Duration
}

func (s *settings) init(cfg *tracker.Config) error {
	s.cfg = cfg

	jiraURL, err := cfg.GetRequired(tracker.CommonConfig.URL)
	if err != nil {
		return err
	}
	s.jiraURL = jiraURL

	query, err := cfg.GetRequired(tracker.CommonConfig.Query)
	if err != nil {
		return err
	}
	s.query = query

	s.username = cfg.Get(tracker.CommonConfig.Username)
	s.secret = cfg.Get(tracker.CommonConfig.APIToken)
	if s.secret == "" {
		s.secret = cfg.Get(tracker.CommonConfig.Password)
	}

	s.fields = cfg.List(tracker.CommonConfig.Fields)
	if len(s.fields) == 0 {
		s.fields = types.DefaultFields()
	}
	s.mapping = Mapping{
		BaseURL:     jiraURL,
		EpicField:   cfg.Get(ConfigEpicField),
		EffortField: cfg.Get(ConfigEffortField),
	}
	s.timeout = time.Duration(cfg.Int(ConfigTimeout, 30)) * time.Second
	return nil
}

func (s *settings) newClient() *Client {
	c := NewClient(s.jiraURL, s.username, s.secret)
	c.HTTPClient.Timeout = s.timeout
	c.PageSize = s.cfg.Int(ConfigPageSize, DefaultPageSize)
	c.Logger = debug.Logger()
	return c
}

// Tracker reads issues through the Jira REST search API.
type Tracker struct {
	settings
	client *Client
}

func (t *Tracker) Name() string         { return "jira" }
func (t *Tracker) DisplayName() string  { return "Jira" }
func (t *Tracker) ConfigPrefix() string { return "jira" }

func (t *Tracker) Init(cfg *tracker.Config) error {
	if err := t.settings.init(cfg); err != nil {
		return err
	}
	t.client = t.settings.newClient()
	return nil
}

func (t *Tracker) Validate() error {
	if t.client == nil {
		return fmt.Errorf("Jira source not initialized")
	}
	return nil
}

func (t *Tracker) Close() error { return nil }

// Fetch runs the configured JQL query and converts every result.
func (t *Tracker) Fetch(ctx context.Context) ([]types.RawIssue, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	issues, err := t.client.SearchIssues(ctx, t.query, RESTFields(t.fields, t.mapping))
	if err != nil {
		return nil, err
	}

	out := make([]types.RawIssue, 0, len(issues))
	for i := range issues {
		out = append(out, ToRawIssue(&issues[i], t.fields, t.mapping))
	}
	return out, nil
}

// XMLTracker reads issues from the XML search-request issue view.
type XMLTracker struct {
	settings
	client  *Client
	showURI bool
	showXML bool
}

func (t *XMLTracker) Name() string         { return "jira-xml" }
func (t *XMLTracker) DisplayName() string  { return "Jira (XML view)" }
func (t *XMLTracker) ConfigPrefix() string { return "jira" }

func (t *XMLTracker) Init(cfg *tracker.Config) error {
	if err := t.settings.init(cfg); err != nil {
		return err
	}
	t.client = t.settings.newClient()
	// Credentials travel in the query string for this view.
	t.client.Username, t.client.APIToken = "", ""
	t.showURI = cfg.Bool(ConfigShowURI)
	t.showXML = cfg.Bool(ConfigShowXML)
	return nil
}

func (t *XMLTracker) Validate() error {
	if t.client == nil {
		return fmt.Errorf("Jira XML source not initialized")
	}
	return nil
}

func (t *XMLTracker) Close() error { return nil }

// URI returns the request URI for the configured query.
func (t *XMLTracker) URI() string {
	return SearchRequestURI(t.jiraURL, t.query, t.username, t.secret, t.fields)
}

// Fetch requests the XML view and parses it. With show_uri or show_xml set
// it prints the URI or the raw response instead and returns
// tracker.ErrStopped.
func (t *XMLTracker) Fetch(ctx context.Context) ([]types.RawIssue, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	uri := t.URI()
	if t.showURI {
		fmt.Fprintln(t.cfg.Writer(), uri)
		return nil, tracker.ErrStopped
	}

	body, err := t.client.Get(ctx, uri, "application/xml")
	if err != nil {
		return nil, fmt.Errorf("fetch search request XML: %w", err)
	}
	if t.showXML {
		_, _ = t.cfg.Writer().Write(body)
		return nil, tracker.ErrStopped
	}
	return ParseSearchRequest(bytes.NewReader(body), t.fields, t.mapping)
}
