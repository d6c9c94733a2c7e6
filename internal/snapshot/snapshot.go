// Package snapshot reads and writes raw issue records as YAML files so a
// report can be rebuilt offline from a saved fetch.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/irsreport/irsreport/internal/tracker"
	"github.com/irsreport/irsreport/internal/types"
)

// Version is the snapshot file format version.
const Version = 1

// ConfigPath is the snapshot source's config key for the file to read.
const ConfigPath = "path"

// File is the on-disk layout of a snapshot.
type File struct {
	Version int              `yaml:"version"`
	Source  string           `yaml:"source,omitempty"`
	Query   string           `yaml:"query,omitempty"`
	Fetched time.Time        `yaml:"fetched,omitempty"`
	Issues  []types.RawIssue `yaml:"issues"`
}

// Decode reads a snapshot from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &File{Version: Version}, nil
		}
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if f.Version == 0 {
		f.Version = Version
	}
	if f.Version > Version {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", f.Version, Version)
	}
	return &f, nil
}

// Encode writes f to w.
func Encode(w io.Writer, f *File) error {
	if f.Version == 0 {
		f.Version = Version
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return enc.Close()
}

// Load reads the snapshot at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path) // #nosec G304 - snapshot path from config or flag
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = fh.Close() }()
	return Decode(fh)
}

// Save writes f to path, creating parent directories. The file is written
// to a temporary name first and renamed into place.
func Save(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Encode(tmp, f); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func init() {
	tracker.Register("snapshot", func() tracker.Source {
		return &Source{}
	})
}

// Source replays a saved snapshot.
type Source struct {
	path string
}

func (s *Source) Name() string         { return "snapshot" }
func (s *Source) DisplayName() string  { return "YAML snapshot" }
func (s *Source) ConfigPrefix() string { return "snapshot" }

func (s *Source) Init(cfg *tracker.Config) error {
	path, err := cfg.GetRequired(ConfigPath)
	if err != nil {
		return err
	}
	s.path = path
	return nil
}

func (s *Source) Validate() error {
	if s.path == "" {
		return fmt.Errorf("snapshot source not initialized")
	}
	return nil
}

func (s *Source) Close() error { return nil }

// Fetch returns the records of the snapshot in file order.
func (s *Source) Fetch(ctx context.Context) ([]types.RawIssue, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	return f.Issues, nil
}
