package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// VectorIndex defines the interface for the low-latency search-side store.
// Upsert is overwrite-by-ID; per-key atomicity of the backing index is the
// only serialization the engine relies on for concurrent writes to one ID.
type VectorIndex interface {
	// Upsert writes or overwrites a memory by ID
	Upsert(ctx context.Context, memory *model.Memory) error

	// Get retrieves a memory by ID. Returns model.ErrMemoryNotFound when absent.
	Get(ctx context.Context, id types.MemoryID) (*model.Memory, error)

	// Delete removes a memory by ID. Returns model.ErrMemoryNotFound when absent.
	Delete(ctx context.Context, id types.MemoryID) error

	// Search performs k-NN search over embeddings. Filter fields combine
	// with AND; the status set matches with OR. Results are ordered by
	// score descending, ties broken by UpdatedAt descending.
	Search(ctx context.Context, embedding []float32, limit int, filter *model.SearchFilter) ([]*model.ScoredMemory, error)

	// ListUpdatedSince returns up to limit records with UpdatedAt strictly
	// greater than since, ordered by UpdatedAt ascending. Drives the export pass.
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error)

	// Ping reports backend reachability
	Ping(ctx context.Context) error
}
