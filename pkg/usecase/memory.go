package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/metrics"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// canonicalID strips the vector index key prefix that clients sometimes
// echo back from search results, so "memory:<uuid>" and "<uuid>" address
// the same record.
func canonicalID(id types.MemoryID) types.MemoryID {
	return types.MemoryID(strings.TrimPrefix(id.String(), "memory:"))
}

// CreateOrUpsert writes a memory to both stores, vector index first. The
// warehouse write may fail independently; the result then reports a
// partial sync and the record is searchable but not yet durable. The
// export pass re-delivers it later.
func (uc *UseCases) CreateOrUpsert(ctx context.Context, input *model.MemoryInput) (*model.UpsertResult, error) {
	start := time.Now()

	if input == nil {
		return nil, goerr.Wrap(model.ErrInvalidInput, "input is required")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	input.ID = canonicalID(input.ID)

	now := uc.now()
	mem := input.Materialize(now)

	// For an upsert of a known ID, the prior copy supplies CreatedAt and,
	// when the text is unchanged, the embedding.
	var existing *model.Memory
	if input.ID != "" {
		prior, err := uc.vector.Get(ctx, input.ID)
		if err != nil && !errors.Is(err, model.ErrMemoryNotFound) {
			return nil, err
		}
		existing = prior

		if existing == nil {
			prior, err := uc.warehouse.Get(ctx, input.ID)
			if err != nil && !errors.Is(err, model.ErrMemoryNotFound) {
				return nil, err
			}
			existing = prior
		}
	}

	if existing != nil {
		mem.CreatedAt = existing.CreatedAt
		mem.UpdatedAt = existing.UpdatedAt
		mem.Touch(now)
		if existing.Text == mem.Text && len(existing.Embedding) == model.EmbeddingDimension {
			mem.Embedding = existing.Embedding
		}
	}

	if len(mem.Embedding) == 0 {
		emb, err := uc.embedder.Embed(ctx, mem.Text)
		if err != nil {
			metrics.UpsertCount.WithLabelValues("failed").Inc()
			return nil, err
		}
		mem.Embedding = emb
	}

	result := &model.UpsertResult{Memory: mem}

	// Vector index first: a record must never be durable in the warehouse
	// while invisible to search.
	if err := uc.vector.Upsert(ctx, mem); err != nil {
		metrics.UpsertCount.WithLabelValues("failed").Inc()
		return nil, err
	}
	result.VectorState = model.SyncStateOK

	batch, err := uc.warehouse.BatchPut(ctx, []*model.Memory{mem})
	switch {
	case err != nil:
		result.WarehouseState = model.SyncStateFailed
		result.WarehouseError = err.Error()
	case batch.Failed > 0:
		result.WarehouseState = model.SyncStateFailed
		if batch.FirstErr != nil {
			result.WarehouseError = batch.FirstErr.Error()
		}
	default:
		result.WarehouseState = model.SyncStateOK
	}

	if result.Divergent() {
		metrics.UpsertCount.WithLabelValues("partial").Inc()
		metrics.PartialSyncCount.Inc()
		_ = errutil.Handle(ctx, goerr.Wrap(model.ErrPartialSync,
			"vector write committed, warehouse write pending",
			goerr.V("memoryID", mem.ID),
			goerr.V("warehouseError", result.WarehouseError)), "partial sync")
		if err := uc.notifier.NotifyPartialSync(ctx, result); err != nil {
			logging.From(ctx).Warn("failed to send partial sync notice", "error", err)
		}
	} else {
		metrics.UpsertCount.WithLabelValues("ok").Inc()
	}

	metrics.UpsertDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

// GetMemory reads a record, vector index first. The warehouse serves as
// fallback for records the import pass has not carried over yet.
func (uc *UseCases) GetMemory(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	id = canonicalID(id)
	if id == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "memory ID is required")
	}

	mem, err := uc.vector.Get(ctx, id)
	if err == nil {
		return mem, nil
	}
	if !errors.Is(err, model.ErrMemoryNotFound) {
		return nil, err
	}

	return uc.warehouse.Get(ctx, id)
}

// DeleteMemory removes a record from the vector index and, when the
// tombstone policy is enabled, marks the warehouse copy deleted in the
// background. The tombstone advances UpdatedAt so the delete propagates
// through later sync passes instead of being resurrected by them.
func (uc *UseCases) DeleteMemory(ctx context.Context, id types.MemoryID) error {
	id = canonicalID(id)
	if id == "" {
		return goerr.Wrap(model.ErrInvalidInput, "memory ID is required")
	}

	now := uc.now()

	vectorErr := uc.vector.Delete(ctx, id)
	if vectorErr != nil && !errors.Is(vectorErr, model.ErrMemoryNotFound) {
		return vectorErr
	}

	if !uc.tombstoneOnDelete {
		return vectorErr
	}

	if _, err := uc.warehouse.Get(ctx, id); err != nil {
		if errors.Is(err, model.ErrMemoryNotFound) {
			// Never synced to the warehouse: nothing to tombstone
			return vectorErr
		}
		return err
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		if err := uc.warehouse.MarkDeleted(ctx, id, now); err != nil {
			return goerr.Wrap(err, "failed to tombstone memory in warehouse", goerr.V("memoryID", id))
		}
		return nil
	})

	return nil
}
