package memory

import (
	"context"
	"sync"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// OffsetStore is an in-memory implementation of interfaces.OffsetStore.
// CompareAndSet runs under the write lock, giving the same single-winner
// semantics as a transactional backend.
type OffsetStore struct {
	mu      sync.Mutex
	offsets map[types.SyncDirection]*model.SyncOffset
}

var _ interfaces.OffsetStore = &OffsetStore{}

// NewOffsetStore creates an empty in-memory offset store
func NewOffsetStore() *OffsetStore {
	return &OffsetStore{
		offsets: make(map[types.SyncDirection]*model.SyncOffset),
	}
}

func (x *OffsetStore) Get(ctx context.Context, direction types.SyncDirection) (*model.SyncOffset, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	offset, exists := x.offsets[direction]
	if !exists {
		return model.NewSyncOffset(direction), nil
	}
	return offset.Clone(), nil
}

func (x *OffsetStore) CompareAndSet(ctx context.Context, old, new *model.SyncOffset) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	stored, exists := x.offsets[new.Direction]
	if !exists {
		stored = model.NewSyncOffset(new.Direction)
	}
	if !stored.Equal(old) {
		return false, nil
	}

	x.offsets[new.Direction] = new.Clone()
	return true, nil
}
