package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irsreport/irsreport/internal/config"
	"github.com/irsreport/irsreport/internal/graph"
	"github.com/irsreport/irsreport/internal/links"
	"github.com/irsreport/irsreport/internal/reconcile"
	"github.com/irsreport/irsreport/internal/snapshot"
	"github.com/irsreport/irsreport/internal/telemetry"
	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/types"
)

// isolate keeps config discovery away from the developer's machine.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("IRS_OTEL_ENABLED", "")
	config.ResetForTesting()
	t.Cleanup(config.ResetForTesting)
	return dir
}

func sampleSnapshot(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "issues.yaml")
	require.NoError(t, snapshot.Save(path, &snapshot.File{
		Version: snapshot.Version,
		Source:  "jira",
		Query:   "project = IRS",
		Issues: []types.RawIssue{
			{Key: "IRS-1", Type: "Epic", Summary: "Submission"},
			{Key: "IRS-10", Type: "New Feature", Summary: "Feature: Upload PDF", Priority: "Low", Effort: "2d",
				Links: []types.RawLink{{Description: "is relied upon by", Targets: []string{"IRS-30"}}}},
			{Key: "IRS-30", Type: "User Story", Summary: "Upload a paper", Priority: "Critical", EpicLink: "IRS-1",
				Links: []types.RawLink{{Description: "relies on", Targets: []string{"IRS-10"}}}},
		},
	}))
	return path
}

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		reportCmd.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	})
}

func TestReportFromSnapshot(t *testing.T) {
	dir := isolate(t)
	snap := sampleSnapshot(t, dir)
	out := filepath.Join(dir, "build")
	resetFlags(t)
	quietFlag = true
	t.Cleanup(func() { quietFlag = false })
	applyVerbosityFlags()

	require.NoError(t, config.Initialize(""))
	require.NoError(t, reportCmd.Flags().Set("snapshot", snap))
	require.NoError(t, reportCmd.Flags().Set("output", out))
	require.NoError(t, reportCmd.Flags().Set("format", "tex,markdown"))
	require.NoError(t, reportCmd.Flags().Set("report-date", "2015-09-30"))

	runReport(reportCmd)

	tex, err := os.ReadFile(filepath.Join(out, "irs_report.tex"))
	require.NoError(t, err)
	assert.Contains(t, string(tex), "Upload PDF")
	md, err := os.ReadFile(filepath.Join(out, "irs_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "Upload a paper")
}

func TestApplyFlagOverrides(t *testing.T) {
	isolate(t)
	resetFlags(t)
	require.NoError(t, config.Initialize(""))

	require.NoError(t, reportCmd.Flags().Set("snapshot", "q3.yaml"))
	require.NoError(t, reportCmd.Flags().Set("unknown-relation", "drop"))
	require.NoError(t, reportCmd.Flags().Set("modify-stories", "true"))
	require.NoError(t, reportCmd.Flags().Set("format", "markdown"))
	applyFlagOverrides(reportCmd)

	cfg, err := config.Load(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "snapshot", cfg.Source)
	assert.Equal(t, "q3.yaml", cfg.SnapshotPath)
	assert.Equal(t, links.UnknownDrop, cfg.UnknownRelations)
	assert.True(t, cfg.Policy.ModifyStories)
	assert.Len(t, cfg.Formats, 1)
	assert.NoError(t, cfg.Validate())
}

type fixedSource struct {
	tracker.Source
	records []types.RawIssue
}

func (s *fixedSource) Name() string { return "jira" }
func (s *fixedSource) Fetch(ctx context.Context) ([]types.RawIssue, error) {
	return s.records, nil
}

type closingSource struct {
	fixedSource
	closed bool
}

func (s *closingSource) Close() error {
	s.closed = true
	return nil
}

func TestFlushBeforeExit(t *testing.T) {
	t.Setenv("IRS_OTEL_ENABLED", "true")
	var buf bytes.Buffer
	require.NoError(t, telemetry.Init(context.Background(), &buf, "irsreport", "test"))
	t.Cleanup(func() { telemetry.Shutdown(context.Background()) })

	counter, err := telemetry.Meter("irsreport/test").Int64Counter("irsreport.test.failures")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	require.NotContains(t, buf.String(), "irsreport.test.failures")

	src := &closingSource{}
	flushBeforeExit(src)
	assert.True(t, src.closed)
	assert.Contains(t, buf.String(), "irsreport.test.failures")

	flushBeforeExit(nil)
}

func TestSavingSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "out.yaml")
	src := &savingSource{
		Source: &fixedSource{records: []types.RawIssue{{Key: "IRS-1", Type: "Epic", Summary: "E"}}},
		path:   path,
		query:  "project = IRS",
	}

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)

	f, err := snapshot.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "jira", f.Source)
	assert.Equal(t, "project = IRS", f.Query)
	assert.Equal(t, got, f.Issues)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("assemble: %w", &graph.UnknownIssueTypeError{Key: "IRS-1", Type: "Bug"}), "unknown_issue_type"},
		{&graph.MalformedSummaryError{Key: "IRS-2"}, "malformed_summary"},
		{&graph.MissingPriorityError{Key: "IRS-3"}, "missing_priority"},
		{fmt.Errorf("reconcile: %w", &reconcile.DanglingReferenceError{From: "IRS-4", Target: "IRS-5"}), "dangling_reference"},
		{fmt.Errorf("assemble: %w", &links.UnrecognizedError{Description: "blocks"}), "unrecognized_relation"},
		{context.Canceled, "cancelled"},
		{errors.New("boom"), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://jira.example.com"))
	assert.NoError(t, validateURL(" http://localhost:8080/jira "))
	assert.Error(t, validateURL("jira.example.com"))
	assert.Error(t, validateURL("ftp://jira.example.com"))
	assert.Error(t, validateURL(""))
}
