package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Warehouse defines the interface for the durable analytical store, the
// system of record. BatchPut must be an idempotent upsert keyed by ID so
// at-least-once redelivery from the export pass converges.
type Warehouse interface {
	// BatchPut upserts records in one batch. A failed record does not
	// abort the rest; the result carries per-batch counts.
	BatchPut(ctx context.Context, memories []*model.Memory) (*model.BatchResult, error)

	// ReadSince returns up to limit records with UpdatedAt strictly
	// greater than cursor, ordered by UpdatedAt ascending, plus the max
	// UpdatedAt of the page (zero when empty). Drives the import pass.
	ReadSince(ctx context.Context, cursor time.Time, limit int) ([]*model.Memory, time.Time, error)

	// Get retrieves a record by ID. Returns model.ErrMemoryNotFound when absent.
	Get(ctx context.Context, id types.MemoryID) (*model.Memory, error)

	// MarkDeleted tombstones a record: status becomes deleted and
	// UpdatedAt advances. The row itself is retained.
	MarkDeleted(ctx context.Context, id types.MemoryID, now time.Time) error

	// Ping reports backend reachability
	Ping(ctx context.Context) error
}
