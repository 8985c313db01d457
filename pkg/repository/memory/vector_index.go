package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// VectorIndex is an in-memory implementation of interfaces.VectorIndex for
// tests and development mode. Search computes cosine similarity in-process
// over all entries, which is the documented scaling limit of this backend.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[types.MemoryID]*model.Memory
}

var _ interfaces.VectorIndex = &VectorIndex{}

// NewVectorIndex creates an empty in-memory vector index
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		entries: make(map[types.MemoryID]*model.Memory),
	}
}

func (x *VectorIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	if err := mem.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.entries[mem.ID] = mem.Clone()
	return nil
}

func (x *VectorIndex) Get(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	mem, exists := x.entries[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrMemoryNotFound, "memory not found in vector index", goerr.V("memoryID", id))
	}

	return mem.Clone(), nil
}

func (x *VectorIndex) Delete(ctx context.Context, id types.MemoryID) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.entries[id]; !exists {
		return goerr.Wrap(model.ErrMemoryNotFound, "memory not found in vector index", goerr.V("memoryID", id))
	}

	delete(x.entries, id)
	return nil
}

func (x *VectorIndex) Search(ctx context.Context, embedding []float32, limit int, filter *model.SearchFilter) ([]*model.ScoredMemory, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]*model.ScoredMemory, 0, limit)
	for _, m := range x.entries {
		if len(m.Embedding) == 0 {
			continue
		}
		if !filter.Matches(m) {
			continue
		}
		hits = append(hits, &model.ScoredMemory{
			Memory: m.Clone(),
			Score:  cosineSimilarity(embedding, m.Embedding),
		})
	}

	model.SortScoredMemories(hits)

	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (x *VectorIndex) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	result := make([]*model.Memory, 0)
	for _, m := range x.entries {
		if m.UpdatedAt.After(since) {
			result = append(result, m.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (x *VectorIndex) Ping(ctx context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
