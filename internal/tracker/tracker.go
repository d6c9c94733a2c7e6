// Package tracker defines the interface issue sources implement and the
// registry the CLI uses to select one by name.
package tracker

import (
	"context"
	"errors"

	"github.com/irsreport/irsreport/internal/types"
)

// ErrStopped is returned by Fetch when the source has printed what was
// asked of it (a query URI, a raw response) and the run should end
// without a report.
var ErrStopped = errors.New("source stopped after showing request details")

// Source is the plugin interface every ingestion backend implements.
// A source delivers one complete snapshot of raw issue records per Fetch,
// or fails outright.
type Source interface {
	// Name returns the lowercase identifier (e.g., "jira", "snapshot").
	Name() string

	// DisplayName returns the human-readable name.
	DisplayName() string

	// ConfigPrefix returns the config section this source reads (e.g., "jira").
	ConfigPrefix() string

	// Init reads settings from cfg. Called once before Fetch.
	Init(cfg *Config) error

	// Validate checks that the source is configured well enough to fetch.
	Validate() error

	// Fetch retrieves every issue matching the configured query, in the
	// order the source delivers them.
	Fetch(ctx context.Context) ([]types.RawIssue, error)

	// Close releases any resources held by the source.
	Close() error
}
