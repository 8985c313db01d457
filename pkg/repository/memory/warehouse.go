package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Warehouse is an in-memory implementation of interfaces.Warehouse for
// tests and development mode.
type Warehouse struct {
	mu      sync.RWMutex
	entries map[types.MemoryID]*model.Memory
}

var _ interfaces.Warehouse = &Warehouse{}

// NewWarehouse creates an empty in-memory warehouse
func NewWarehouse() *Warehouse {
	return &Warehouse{
		entries: make(map[types.MemoryID]*model.Memory),
	}
}

func (x *Warehouse) BatchPut(ctx context.Context, memories []*model.Memory) (*model.BatchResult, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	result := &model.BatchResult{}
	for _, m := range memories {
		if err := m.Validate(); err != nil {
			result.Failed++
			if result.FirstErr == nil {
				result.FirstErr = err
			}
			continue
		}
		x.entries[m.ID] = m.Clone()
		result.Succeeded++
	}

	return result, nil
}

func (x *Warehouse) ReadSince(ctx context.Context, cursor time.Time, limit int) ([]*model.Memory, time.Time, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	result := make([]*model.Memory, 0)
	for _, m := range x.entries {
		if m.UpdatedAt.After(cursor) {
			result = append(result, m.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	var maxUpdatedAt time.Time
	if len(result) > 0 {
		maxUpdatedAt = result[len(result)-1].UpdatedAt
	}
	return result, maxUpdatedAt, nil
}

func (x *Warehouse) Get(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	mem, exists := x.entries[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrMemoryNotFound, "memory not found in warehouse", goerr.V("memoryID", id))
	}

	return mem.Clone(), nil
}

func (x *Warehouse) MarkDeleted(ctx context.Context, id types.MemoryID, now time.Time) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	mem, exists := x.entries[id]
	if !exists {
		return goerr.Wrap(model.ErrMemoryNotFound, "memory not found in warehouse", goerr.V("memoryID", id))
	}

	tombstone := mem.Clone()
	tombstone.Status = types.StatusDeleted
	tombstone.Touch(now)
	x.entries[id] = tombstone
	return nil
}

func (x *Warehouse) Ping(ctx context.Context) error {
	return nil
}
