package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// OffsetStore persists the per-direction high-water marks. Offset advance
// uses compare-and-set so concurrent passes cannot double-advance or skip
// a cursor; the losing pass observes ok=false and discards its advance.
type OffsetStore interface {
	// Get returns the current offset for a direction. When none is stored
	// yet, it returns the zero-value offset for that direction.
	Get(ctx context.Context, direction types.SyncDirection) (*model.SyncOffset, error)

	// CompareAndSet replaces old with new only if the stored offset still
	// equals old. Returns false when the stored value moved in between.
	CompareAndSet(ctx context.Context, old, new *model.SyncOffset) (bool, error)
}
