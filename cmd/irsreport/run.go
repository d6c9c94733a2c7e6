package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/irsreport/irsreport/internal/config"
	"github.com/irsreport/irsreport/internal/graph"
	"github.com/irsreport/irsreport/internal/links"
	"github.com/irsreport/irsreport/internal/reconcile"
	"github.com/irsreport/irsreport/internal/snapshot"
	"github.com/irsreport/irsreport/internal/telemetry"
	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/types"
)

// flagKeys maps run flags to the config keys they override.
var flagKeys = map[string]string{
	"source":           "report.source",
	"name":             "report.name",
	"query":            "jira.query",
	"snapshot":         "snapshot.path",
	"unknown-relation": "links.unknown",
	"report-date":      "report.date",
	"modify-stories":   "reconcile.modify_stories",
	"output":           "report.output_dir",
	"format":           "report.formats",
	"templates":        "report.templates",
	"prefix":           "report.prefix",
}

// addSourceFlags registers the flags shared by commands that run the pipeline.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "Issue source: jira, jira-xml or snapshot (config: report.source)")
	cmd.Flags().String("name", "", "Report name (config: report.name)")
	cmd.Flags().String("query", "", "JQL query selecting the issues (config: jira.query)")
	cmd.Flags().String("snapshot", "", "Read issues from a YAML snapshot instead of Jira")
	cmd.Flags().String("unknown-relation", "", "Unrecognized link types: error, warn or drop (config: links.unknown)")
	cmd.Flags().String("report-date", "", "Report date: 2015-09-30, -1d or \"last friday\" (default: today)")
	cmd.Flags().Bool("modify-stories", false, "Also lower user story priorities that exceed what they rely on")
}

// applyFlagOverrides copies explicitly set flags into the config layer.
// Priority: flags > env vars > config file > defaults.
func applyFlagOverrides(cmd *cobra.Command) {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		switch flag.Value.Type() {
		case "bool":
			b, _ := cmd.Flags().GetBool(name)
			config.Set(key, b)
		case "stringSlice":
			list, _ := cmd.Flags().GetStringSlice(name)
			config.Set(key, list)
		default:
			config.Set(key, flag.Value.String())
		}
	}
	if cmd.Flags().Changed("snapshot") && !cmd.Flags().Changed("source") {
		config.Set("report.source", "snapshot")
	}
}

// loadConfig resolves and validates the configuration for a run.
func loadConfig(cmd *cobra.Command) config.Config {
	applyFlagOverrides(cmd)
	cfg, err := config.Load(time.Now())
	if err != nil {
		FatalError("invalid configuration:\n%v", err)
	}
	if err := cfg.Validate(); err != nil {
		FatalErrorWithHint(err.Error(), "Set it in .irsreport/config.toml (irsreport init) or pass it as a flag")
	}
	return cfg
}

// openSource creates and initializes the configured source. extra adds
// source settings that only come from flags (show_uri, show_xml).
func openSource(cfg config.Config, extra map[string]string) tracker.Source {
	src, err := tracker.NewSource(cfg.Source)
	if err != nil {
		FatalError("%v", err)
	}
	scfg := cfg.SourceConfig(src.ConfigPrefix())
	for k, v := range extra {
		scfg.Values[k] = v
	}
	if err := src.Init(scfg); err != nil {
		FatalError("%s: %v", src.DisplayName(), err)
	}
	return telemetry.WrapSource(src)
}

// startTelemetry installs the OTel providers and returns their shutdown.
func startTelemetry(ctx context.Context) func() {
	if err := telemetry.Init(ctx, os.Stderr, "irsreport", Version); err != nil {
		WarnError("telemetry disabled: %v", err)
	}
	return func() { telemetry.Shutdown(context.Background()) }
}

// savingSource writes every successful fetch to a snapshot file.
type savingSource struct {
	tracker.Source
	path  string
	query string
}

func (s *savingSource) Fetch(ctx context.Context) ([]types.RawIssue, error) {
	records, err := s.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	f := &snapshot.File{
		Version: snapshot.Version,
		Source:  s.Source.Name(),
		Query:   s.query,
		Fetched: time.Now().UTC(),
		Issues:  records,
	}
	if err := snapshot.Save(s.path, f); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return records, nil
}

// errorCode classifies pipeline errors for --json output.
func errorCode(err error) string {
	var (
		typeErr     *graph.UnknownIssueTypeError
		summaryErr  *graph.MalformedSummaryError
		priorityErr *graph.MissingPriorityError
		danglingErr *reconcile.DanglingReferenceError
	)
	switch {
	case errors.As(err, &typeErr):
		return "unknown_issue_type"
	case errors.As(err, &summaryErr):
		return "malformed_summary"
	case errors.As(err, &priorityErr):
		return "missing_priority"
	case errors.As(err, &danglingErr):
		return "dangling_reference"
	case errors.Is(err, links.ErrUnrecognizedRelation):
		return "unrecognized_relation"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return ""
}

// flushBeforeExit closes src and flushes telemetry. Deferred cleanups do not
// run once FatalError exits the process.
func flushBeforeExit(src tracker.Source) {
	if src != nil {
		_ = src.Close()
	}
	telemetry.Shutdown(context.Background())
}

// failRun reports a pipeline error, flushes src and telemetry, and exits.
func failRun(src tracker.Source, err error) {
	flushBeforeExit(src)
	if jsonOutput {
		outputJSONError(err, errorCode(err))
	}
	var danglingErr *reconcile.DanglingReferenceError
	if errors.As(err, &danglingErr) {
		FatalErrorWithHint(err.Error(),
			fmt.Sprintf("Add %s to the query so every relied-on issue is part of the report", danglingErr.Target))
	}
	FatalError("%v", err)
}
