package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// SyncPolicy is the operational policy of the engine, loaded from a TOML
// file. Every field has a default, so a missing file or an empty section
// yields a working configuration.
type SyncPolicy struct {
	Sync   SyncSection   `toml:"sync"`
	Search SearchSection `toml:"search"`
}

// SyncSection tunes the sync passes and the delete behavior
type SyncSection struct {
	ExportLimit       int    `toml:"export_limit"`
	ImportLimit       int    `toml:"import_limit"`
	TombstoneOnDelete *bool  `toml:"tombstone_on_delete"`
	WorkerInterval    string `toml:"worker_interval"`
}

// SearchSection tunes the search surface
type SearchSection struct {
	DefaultLimit int `toml:"default_limit"`
}

// DefaultSyncPolicy returns the policy used when no file is given
func DefaultSyncPolicy() *SyncPolicy {
	tombstone := true
	return &SyncPolicy{
		Sync: SyncSection{
			ExportLimit:       usecase.DefaultExportLimit,
			ImportLimit:       usecase.DefaultImportLimit,
			TombstoneOnDelete: &tombstone,
			WorkerInterval:    "1m",
		},
		Search: SearchSection{
			DefaultLimit: model.DefaultSearchLimit,
		},
	}
}

// Validate checks the policy for values the engine cannot run with
func (p *SyncPolicy) Validate() error {
	if p.Sync.ExportLimit <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "sync.export_limit must be positive",
			goerr.V("export_limit", p.Sync.ExportLimit))
	}
	if p.Sync.ImportLimit <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "sync.import_limit must be positive",
			goerr.V("import_limit", p.Sync.ImportLimit))
	}
	if p.Search.DefaultLimit <= 0 || p.Search.DefaultLimit > model.MaxSearchLimit {
		return goerr.Wrap(ErrInvalidConfig, "search.default_limit out of range",
			goerr.V("default_limit", p.Search.DefaultLimit),
			goerr.V("max", model.MaxSearchLimit))
	}
	if _, err := p.workerInterval(); err != nil {
		return err
	}
	return nil
}

func (p *SyncPolicy) workerInterval() (time.Duration, error) {
	if p.Sync.WorkerInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Sync.WorkerInterval)
	if err != nil {
		return 0, goerr.Wrap(ErrInvalidConfig, "sync.worker_interval is not a duration",
			goerr.V("worker_interval", p.Sync.WorkerInterval))
	}
	if d < 0 {
		return 0, goerr.Wrap(ErrInvalidConfig, "sync.worker_interval must not be negative",
			goerr.V("worker_interval", p.Sync.WorkerInterval))
	}
	return d, nil
}

// WorkerInterval returns the parsed worker cadence. Zero disables the
// background worker. Validate must have passed.
func (p *SyncPolicy) WorkerInterval() time.Duration {
	d, _ := p.workerInterval()
	return d
}

// Tombstone reports whether deletes tombstone the warehouse record
func (p *SyncPolicy) Tombstone() bool {
	if p.Sync.TombstoneOnDelete == nil {
		return true
	}
	return *p.Sync.TombstoneOnDelete
}

// UseCaseOptions converts the policy into usecase options
func (p *SyncPolicy) UseCaseOptions() []usecase.Option {
	return []usecase.Option{
		usecase.WithExportLimit(p.Sync.ExportLimit),
		usecase.WithImportLimit(p.Sync.ImportLimit),
		usecase.WithTombstoneOnDelete(p.Tombstone()),
	}
}

// LoadSyncPolicy loads a policy file, overlaying its values onto the
// defaults so a partial file only overrides what it names.
func LoadSyncPolicy(path string) (*SyncPolicy, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(ErrConfigNotFound, "failed to read policy file", goerr.V("path", path))
	}

	policy := DefaultSyncPolicy()
	if err := toml.Unmarshal(data, policy); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML policy", goerr.V("path", path))
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "policy validation failed", goerr.V("path", path))
	}

	return policy, nil
}

// Policy holds the CLI flag selecting the policy file
type Policy struct {
	path string
}

// Flags returns CLI flags for policy configuration
func (x *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path to the TOML policy file (optional)",
			Sources:     cli.EnvVars("MNEMOSYNE_POLICY"),
			Destination: &x.path,
		},
	}
}

// Configure loads the configured policy file, or the defaults when no
// file was given.
func (x *Policy) Configure() (*SyncPolicy, error) {
	if x.path == "" {
		return DefaultSyncPolicy(), nil
	}
	return LoadSyncPolicy(x.path)
}
