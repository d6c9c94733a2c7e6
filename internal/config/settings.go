package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/irsreport/irsreport/internal/jira"
	"github.com/irsreport/irsreport/internal/links"
	"github.com/irsreport/irsreport/internal/reconcile"
	"github.com/irsreport/irsreport/internal/render"
	"github.com/irsreport/irsreport/internal/snapshot"
	"github.com/irsreport/irsreport/internal/timeparsing"
	"github.com/irsreport/irsreport/internal/tracker"
)

// Config is the resolved configuration for one report run. It is a plain
// value: once loaded nothing changes it.
type Config struct {
	Name   string
	Source string

	BaseURI     string
	Username    string
	Password    string
	APIToken    string
	Query       string
	Fields      []string
	EpicField   string
	EffortField string
	PageSize    int
	Timeout     int

	SnapshotPath string

	Policy           reconcile.Policy
	UnknownRelations links.UnknownPolicy

	OutputDir   string
	Formats     []render.Format
	TemplateDir string
	Prefix      string
	NoEpicName  string

	// ReportDate is the day the report describes, at midnight local time.
	ReportDate time.Time

	// File is the config file the values came from ("" if none).
	File string
}

// Load snapshots the current settings into a Config. Relative report dates
// are resolved against now.
func Load(now time.Time) (Config, error) {
	var errs []error

	cfg := Config{
		Name:         GetString("report.name"),
		Source:       GetString("report.source"),
		BaseURI:      strings.TrimRight(GetString("jira.url"), "/"),
		Username:     GetString("jira.username"),
		Password:     GetString("jira.password"),
		APIToken:     GetString("jira.api_token"),
		Query:        GetString("jira.query"),
		Fields:       GetStringSlice("jira.fields"),
		EpicField:    GetString("jira.epic_field"),
		EffortField:  GetString("jira.effort_field"),
		PageSize:     GetInt("jira.page_size"),
		Timeout:      GetInt("jira.timeout"),
		SnapshotPath: GetString("snapshot.path"),
		Policy: reconcile.Policy{
			ModifyFeatures: GetBool("reconcile.modify_features"),
			ModifyPolicies: GetBool("reconcile.modify_policies"),
			ModifyStories:  GetBool("reconcile.modify_stories"),
		},
		OutputDir:   GetString("report.output_dir"),
		TemplateDir: GetString("report.templates"),
		Prefix:      GetString("report.prefix"),
		NoEpicName:  GetString("report.no_epic_name"),
		File:        ConfigFileUsed(),
	}

	unknown, err := links.ParseUnknownPolicy(GetString("links.unknown"))
	if err != nil {
		errs = append(errs, fmt.Errorf("links.unknown: %w", err))
	}
	cfg.UnknownRelations = unknown

	for _, name := range GetStringSlice("report.formats") {
		f, err := render.ParseFormat(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("report.formats: %w", err))
			continue
		}
		cfg.Formats = append(cfg.Formats, f)
	}

	date, err := timeparsing.ParseReportDate(GetString("report.date"), now)
	if err != nil {
		errs = append(errs, fmt.Errorf("report.date: %w", err))
	}
	cfg.ReportDate = date

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected source has what it needs.
func (c Config) Validate() error {
	if !tracker.IsRegistered(c.Source) {
		return fmt.Errorf("unknown source %q (available: %s)", c.Source, strings.Join(tracker.List(), ", "))
	}
	if len(c.Formats) == 0 {
		return fmt.Errorf("no output formats configured")
	}
	switch c.Source {
	case "snapshot":
		if c.SnapshotPath == "" {
			return fmt.Errorf("snapshot.path not configured")
		}
	default:
		if c.BaseURI == "" {
			return fmt.Errorf("jira.url not configured")
		}
		if strings.TrimSpace(c.Query) == "" {
			return fmt.Errorf("jira.query not configured")
		}
	}
	return nil
}

// SourceConfig builds the settings handed to the named source's Init.
func (c Config) SourceConfig(prefix string) *tracker.Config {
	values := map[string]string{}
	switch prefix {
	case "snapshot":
		values[snapshot.ConfigPath] = c.SnapshotPath
	case "jira":
		values[tracker.CommonConfig.URL] = c.BaseURI
		values[tracker.CommonConfig.Username] = c.Username
		values[tracker.CommonConfig.Password] = c.Password
		values[tracker.CommonConfig.APIToken] = c.APIToken
		values[tracker.CommonConfig.Query] = c.Query
		values[tracker.CommonConfig.Fields] = strings.Join(c.Fields, ",")
		values[jira.ConfigEpicField] = c.EpicField
		values[jira.ConfigEffortField] = c.EffortField
		if c.PageSize > 0 {
			values[jira.ConfigPageSize] = strconv.Itoa(c.PageSize)
		}
		if c.Timeout > 0 {
			values[jira.ConfigTimeout] = strconv.Itoa(c.Timeout)
		}
	}
	return tracker.NewConfig(prefix, values)
}
