package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irsreport/irsreport/internal/links"
	"github.com/irsreport/irsreport/internal/reconcile"
	"github.com/irsreport/irsreport/internal/render"
)

var now = time.Date(2015, 9, 30, 15, 4, 5, 0, time.Local)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, Dir, FileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	require.NoError(t, Initialize(""))
	t.Cleanup(ResetForTesting)

	cfg, err := Load(now)
	require.NoError(t, err)

	assert.Equal(t, "Report", cfg.Name)
	assert.Equal(t, "jira", cfg.Source)
	assert.Equal(t, []render.Format{render.FormatTeX}, cfg.Formats)
	assert.Equal(t, "irs_", cfg.Prefix)
	assert.Equal(t, "No epic", cfg.NoEpicName)
	assert.Equal(t, "customfield_10730", cfg.EpicField)
	assert.Equal(t, links.UnknownWarn, cfg.UnknownRelations)
	assert.Equal(t, reconcile.DefaultPolicy(), cfg.Policy)
	assert.Equal(t, time.Date(2015, 9, 30, 0, 0, 0, 0, time.Local), cfg.ReportDate)
	assert.Empty(t, cfg.File)
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar string
		value  string
		check  func(t *testing.T, cfg Config)
	}{
		{"IRS_REPORT_NAME", "Sprint 12", func(t *testing.T, cfg Config) { assert.Equal(t, "Sprint 12", cfg.Name) }},
		{"IRS_JIRA_QUERY", "project = IRS", func(t *testing.T, cfg Config) { assert.Equal(t, "project = IRS", cfg.Query) }},
		{"JIRA_URL", "https://jira.example.com/", func(t *testing.T, cfg Config) { assert.Equal(t, "https://jira.example.com", cfg.BaseURI) }},
		{"JIRA_USERNAME", "alice", func(t *testing.T, cfg Config) { assert.Equal(t, "alice", cfg.Username) }},
		{"IRS_LINKS_UNKNOWN", "drop", func(t *testing.T, cfg Config) { assert.Equal(t, links.UnknownDrop, cfg.UnknownRelations) }},
		{"IRS_RECONCILE_MODIFY_STORIES", "true", func(t *testing.T, cfg Config) { assert.True(t, cfg.Policy.ModifyStories) }},
		{"IRS_REPORT_FORMATS", "tex,markdown", func(t *testing.T, cfg Config) {
			assert.Equal(t, []render.Format{render.FormatTeX, render.FormatMarkdown}, cfg.Formats)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			require.NoError(t, Initialize(""))
			t.Cleanup(ResetForTesting)

			cfg, err := Load(now)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfigFileFoundFromSubdirectory(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, `
[report]
name = "Quarterly"
source = "jira-xml"

[jira]
url = "https://jira.example.com"
query = "project = IRS"
`)
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)

	require.NoError(t, Initialize(""))
	t.Cleanup(ResetForTesting)

	cfg, err := Load(now)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "Quarterly", cfg.Name)
	assert.Equal(t, "jira-xml", cfg.Source)
	assert.Equal(t, SourceConfigFile, GetValueSource("report.name"))
	assert.Equal(t, SourceDefault, GetValueSource("report.prefix"))
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[report]\nname = \"From file\"\n")
	t.Setenv("IRS_REPORT_NAME", "From env")

	require.NoError(t, Initialize(path))
	t.Cleanup(ResetForTesting)

	assert.Equal(t, "From env", GetString("report.name"))
	assert.Equal(t, SourceEnvVar, GetValueSource("report.name"))
}

func TestFlagOverride(t *testing.T) {
	require.NoError(t, Initialize(""))
	t.Cleanup(ResetForTesting)

	Set("links.unknown", "error")
	cfg, err := Load(now)
	require.NoError(t, err)
	assert.Equal(t, links.UnknownError, cfg.UnknownRelations)
}

func TestUnknownKeysAreWarnings(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[report]
name = "R"
colour = "blue"

[extras]
x = 1
`)
	require.NoError(t, Initialize(path))
	t.Cleanup(ResetForTesting)

	all := strings.Join(Warnings(), "\n")
	assert.Contains(t, all, `"report.colour"`)
	assert.Contains(t, all, `"extras.x"`)
	assert.NotContains(t, all, `"report.name"`)
	assert.Equal(t, "R", GetString("report.name"))
}

func TestInitializeErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		assert.Error(t, Initialize(filepath.Join(t.TempDir(), "nope.toml")))
	})
	t.Run("invalid toml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "[report\nname=")
		assert.ErrorContains(t, Initialize(path), "parse config file")
	})
	ResetForTesting()
}

func TestLoadCollectsErrors(t *testing.T) {
	require.NoError(t, Initialize(""))
	t.Cleanup(ResetForTesting)

	Set("links.unknown", "shout")
	Set("report.formats", []string{"pdf"})
	Set("report.date", "qwerty")

	_, err := Load(now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "links.unknown")
	assert.Contains(t, err.Error(), "report.formats")
	assert.Contains(t, err.Error(), "report.date")
}

func TestLoadReportDate(t *testing.T) {
	require.NoError(t, Initialize(""))
	t.Cleanup(ResetForTesting)

	Set("report.date", "-1d")
	cfg, err := Load(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 9, 29, 0, 0, 0, 0, time.Local), cfg.ReportDate)
}

func TestValidate(t *testing.T) {
	base := Config{
		Source:  "jira",
		BaseURI: "https://jira.example.com",
		Query:   "project = IRS",
		Formats: []render.Format{render.FormatTeX},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown source", func(c *Config) { c.Source = "github" }, "unknown source"},
		{"no formats", func(c *Config) { c.Formats = nil }, "no output formats"},
		{"missing url", func(c *Config) { c.BaseURI = "" }, "jira.url"},
		{"blank query", func(c *Config) { c.Query = "  " }, "jira.query"},
		{"snapshot without path", func(c *Config) { c.Source = "snapshot" }, "snapshot.path"},
		{"snapshot", func(c *Config) { c.Source, c.SnapshotPath, c.Query = "snapshot", "s.yaml", "" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSourceConfig(t *testing.T) {
	cfg := Config{
		BaseURI:      "https://jira.example.com",
		Username:     "alice",
		APIToken:     "secret",
		Query:        "project = IRS",
		Fields:       []string{"key", "summary"},
		EpicField:    "customfield_10730",
		PageSize:     25,
		SnapshotPath: "snap.yaml",
	}

	jc := cfg.SourceConfig("jira")
	assert.Equal(t, "https://jira.example.com", jc.Get("url"))
	assert.Equal(t, "secret", jc.Get("api_token"))
	assert.Equal(t, []string{"key", "summary"}, jc.List("fields"))
	assert.Equal(t, 25, jc.Int("page_size", 50))
	assert.Equal(t, 30, jc.Int("timeout", 30))

	sc := cfg.SourceConfig("snapshot")
	assert.Equal(t, "snap.yaml", sc.Get("path"))
}

func TestWriteFileRoundTrip(t *testing.T) {
	f := DefaultFile()
	f.Report.Name = "Release 2"
	f.Jira.URL = "https://jira.example.com"
	f.Jira.Query = `project = IRS AND fixVersion = "2.0"`

	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, WriteFile(path, f))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, Initialize(path))
	t.Cleanup(ResetForTesting)
	assert.Empty(t, Warnings())

	cfg, err := Load(now)
	require.NoError(t, err)
	assert.Equal(t, "Release 2", cfg.Name)
	assert.Equal(t, `project = IRS AND fixVersion = "2.0"`, cfg.Query)
	assert.Equal(t, reconcile.DefaultPolicy(), cfg.Policy)
	assert.NoError(t, cfg.Validate())
}
