package usecase

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/service/notify"
)

const (
	// DefaultExportLimit bounds one export pass
	DefaultExportLimit = 100
	// DefaultImportLimit bounds one import pass
	DefaultImportLimit = 100
)

type UseCases struct {
	vector    interfaces.VectorIndex
	warehouse interfaces.Warehouse
	offsets   interfaces.OffsetStore
	embedder  interfaces.Embedder
	notifier  notify.Service

	now               func() time.Time
	exportLimit       int
	importLimit       int
	tombstoneOnDelete bool
}

type Option func(*UseCases)

// WithNotifier routes sync health alerts to the given service
func WithNotifier(notifier notify.Service) Option {
	return func(uc *UseCases) {
		uc.notifier = notifier
	}
}

// WithNow fixes the clock, used by tests
func WithNow(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

// WithExportLimit caps the page size of one export pass
func WithExportLimit(limit int) Option {
	return func(uc *UseCases) {
		if limit > 0 {
			uc.exportLimit = limit
		}
	}
}

// WithImportLimit caps the page size of one import pass
func WithImportLimit(limit int) Option {
	return func(uc *UseCases) {
		if limit > 0 {
			uc.importLimit = limit
		}
	}
}

// WithTombstoneOnDelete controls whether DeleteMemory tombstones the
// warehouse record. When disabled, deletes only touch the vector index
// and the warehouse keeps the last synced state for analytics.
func WithTombstoneOnDelete(enabled bool) Option {
	return func(uc *UseCases) {
		uc.tombstoneOnDelete = enabled
	}
}

func New(vector interfaces.VectorIndex, warehouse interfaces.Warehouse, offsets interfaces.OffsetStore, embedder interfaces.Embedder, opts ...Option) *UseCases {
	uc := &UseCases{
		vector:            vector,
		warehouse:         warehouse,
		offsets:           offsets,
		embedder:          embedder,
		notifier:          notify.NewDiscard(),
		now:               time.Now,
		exportLimit:       DefaultExportLimit,
		importLimit:       DefaultImportLimit,
		tombstoneOnDelete: true,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
