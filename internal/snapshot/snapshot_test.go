package snapshot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/types"
)

func sampleFile() *File {
	return &File{
		Source:  "jira",
		Query:   "project = IRS",
		Fetched: time.Date(2015, 9, 30, 12, 0, 0, 0, time.UTC),
		Issues: []types.RawIssue{
			{
				Key: "IRS-1", Type: "User Story", Summary: "Pay online", Priority: "Major",
				EpicLink: "IRS-50",
				Links:    []types.RawLink{{Description: "relies on", Targets: []string{"IRS-2"}}},
			},
			{
				Key: "IRS-2", Type: "New Feature", Summary: "Feature: Payments", Priority: "Low",
				Effort: "1.5", Missing: []string{types.FieldComponent},
			},
		},
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snap.yaml")
	want := sampleFile()

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, want.Query, got.Query)
	assert.True(t, want.Fetched.Equal(got.Fetched))
	assert.Equal(t, want.Issues, got.Issues)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be renamed away")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantN   int
		wantErr string
	}{
		{name: "empty", input: "", wantN: 0},
		{name: "no version", input: "issues:\n  - key: IRS-1\n    type: Epic\n    summary: E\n", wantN: 1},
		{name: "unknown field", input: "issues: []\nbogus: 1\n", wantErr: "failed to parse snapshot"},
		{name: "future version", input: "version: 99\nissues: []\n", wantErr: "newer than supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Version, f.Version)
			assert.Len(t, f.Issues, tt.wantN)
		})
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &File{Issues: []types.RawIssue{{Key: "IRS-1", Type: "Epic", Summary: "E"}}}))

	out := buf.String()
	assert.Contains(t, out, "version: 1")
	assert.NotContains(t, out, "fetched")
	assert.NotContains(t, out, "priority")
}

func TestSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.yaml")
	require.NoError(t, Save(path, sampleFile()))

	src, err := tracker.NewSource("snapshot")
	require.NoError(t, err)
	require.NoError(t, src.Init(tracker.NewConfig("snapshot", map[string]string{ConfigPath: path})))
	defer src.Close()

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "IRS-1", got[0].Key)
	assert.Equal(t, "IRS-2", got[1].Key)
}

func TestSourceRequiresPath(t *testing.T) {
	t.Setenv("SNAPSHOT_PATH", "")
	err := (&Source{}).Init(tracker.NewConfig("snapshot", nil))
	assert.ErrorContains(t, err, "snapshot.path not configured")
	assert.Error(t, (&Source{}).Validate())
}

func TestSourceMissingFile(t *testing.T) {
	src := &Source{}
	require.NoError(t, src.Init(tracker.NewConfig("snapshot", map[string]string{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})))
	_, err := src.Fetch(context.Background())
	assert.ErrorContains(t, err, "failed to open snapshot")
}
