package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// File mirrors the layout of config.toml. It is used to detect unknown keys
// when reading and to write a fresh file from `irsreport init`.
type File struct {
	Report    ReportSection    `toml:"report"`
	Jira      JiraSection      `toml:"jira"`
	Snapshot  SnapshotSection  `toml:"snapshot,omitempty"`
	Links     LinksSection     `toml:"links"`
	Reconcile ReconcileSection `toml:"reconcile"`
}

type ReportSection struct {
	Name       string   `toml:"name"`
	Source     string   `toml:"source"`
	OutputDir  string   `toml:"output_dir,omitempty"`
	Formats    []string `toml:"formats,omitempty"`
	Prefix     string   `toml:"prefix,omitempty"`
	Templates  string   `toml:"templates,omitempty"`
	NoEpicName string   `toml:"no_epic_name,omitempty"`
	Date       string   `toml:"date,omitempty"`
}

type JiraSection struct {
	URL         string   `toml:"url"`
	Username    string   `toml:"username,omitempty"`
	Password    string   `toml:"password,omitempty"`
	APIToken    string   `toml:"api_token,omitempty"`
	Query       string   `toml:"query"`
	Fields      []string `toml:"fields,omitempty"`
	EpicField   string   `toml:"epic_field,omitempty"`
	EffortField string   `toml:"effort_field,omitempty"`
	PageSize    int      `toml:"page_size,omitempty"`
	Timeout     int      `toml:"timeout,omitempty"`
}

type SnapshotSection struct {
	Path string `toml:"path,omitempty"`
}

type LinksSection struct {
	Unknown string `toml:"unknown"`
}

type ReconcileSection struct {
	ModifyFeatures bool `toml:"modify_features"`
	ModifyPolicies bool `toml:"modify_policies"`
	ModifyStories  bool `toml:"modify_stories"`
}

// ReadFile decodes a TOML config file. It returns the settings as a nested
// map ready for viper, plus the dotted names of keys irsreport does not know.
func ReadFile(path string) (map[string]interface{}, []string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - config path chosen by the user
	if err != nil {
		return nil, nil, fmt.Errorf("read config file: %w", err)
	}

	var known File
	md, err := toml.Decode(string(data), &known)
	if err != nil {
		return nil, nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	var undecoded []string
	for _, key := range md.Undecoded() {
		undecoded = append(undecoded, key.String())
	}

	settings := make(map[string]interface{})
	if _, err := toml.Decode(string(data), &settings); err != nil {
		return nil, nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return settings, undecoded, nil
}

// DefaultFile returns a File holding the built-in defaults.
func DefaultFile() File {
	return File{
		Report: ReportSection{
			Name:    "Report",
			Source:  "jira",
			Formats: []string{"tex"},
		},
		Jira: JiraSection{
			EpicField: "customfield_10730",
		},
		Links: LinksSection{Unknown: "warn"},
		Reconcile: ReconcileSection{
			ModifyFeatures: true,
			ModifyPolicies: true,
		},
	}
}

// Encode renders f as TOML.
func Encode(f File) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes f to path, creating parent directories. The file may
// hold credentials, so it is only readable by the owner.
func WriteFile(path string, f File) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
