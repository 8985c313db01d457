package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/metrics"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// ExportBatch pushes one page of vector index changes to the warehouse.
// A limit of zero or less falls back to the configured page size. The
// offset advances only after the whole page committed, so a crash or
// a failed record re-delivers the page next pass. Re-delivery is safe
// because warehouse writes are idempotent upserts keyed by ID.
func (uc *UseCases) ExportBatch(ctx context.Context, limit int) (*model.ExportResult, error) {
	if limit <= 0 {
		limit = uc.exportLimit
	}

	offset, err := uc.offsets.Get(ctx, types.DirectionExport)
	if err != nil {
		return nil, uc.syncFailed(ctx, types.DirectionExport, err)
	}

	records, err := uc.vector.ListUpdatedSince(ctx, offset.Cursor, limit)
	if err != nil {
		return nil, uc.syncFailed(ctx, types.DirectionExport, err)
	}

	if len(records) == 0 {
		return &model.ExportResult{NextCursor: offset.Cursor}, nil
	}

	batch, err := uc.warehouse.BatchPut(ctx, records)
	if err != nil {
		return nil, uc.syncFailed(ctx, types.DirectionExport, err)
	}
	if batch.Failed > 0 {
		// Leave the offset untouched: the next pass re-reads the page and
		// the already-committed records replay as no-op upserts.
		err := goerr.Wrap(batch.FirstErr, "export pass incomplete",
			goerr.V("succeeded", batch.Succeeded), goerr.V("failed", batch.Failed))
		return nil, uc.syncFailed(ctx, types.DirectionExport, err)
	}

	metrics.SyncPushed.Add(float64(batch.Succeeded))

	maxUpdated := records[len(records)-1].UpdatedAt
	for _, mem := range records {
		if mem.UpdatedAt.After(maxUpdated) {
			maxUpdated = mem.UpdatedAt
		}
	}

	result := &model.ExportResult{Pushed: batch.Succeeded, NextCursor: maxUpdated}

	next := offset.Advanced(maxUpdated, uc.now())
	swapped, err := uc.offsets.CompareAndSet(ctx, offset, next)
	if err != nil {
		return nil, uc.syncFailed(ctx, types.DirectionExport, err)
	}
	if !swapped {
		// Another pass advanced the offset first. The page is committed
		// either way; replaying under the winner's cursor is harmless.
		logging.From(ctx).Info("export offset already advanced by a concurrent pass",
			"cursor", offset.Cursor)
		result.NextCursor = offset.Cursor
	}

	return result, nil
}

// ImportBatch pulls one page of warehouse changes and applies them to the
// vector index under last-writer-wins: a strictly newer vector copy wins
// and the record counts as a conflict, a tie keeps the warehouse copy.
// A limit of zero or less falls back to the configured page size. Apply
// failures leave the offset untouched so the page replays.
func (uc *UseCases) ImportBatch(ctx context.Context, limit int) (*model.ImportResult, error) {
	if limit <= 0 {
		limit = uc.importLimit
	}

	offset, err := uc.offsets.Get(ctx, types.DirectionImport)
	if err != nil {
		return nil, uc.syncFailed(ctx, types.DirectionImport, err)
	}

	records, maxSeen, err := uc.warehouse.ReadSince(ctx, offset.Cursor, limit)
	if err != nil {
		return nil, uc.syncFailed(ctx, types.DirectionImport, err)
	}

	result := &model.ImportResult{Pulled: len(records), NextCursor: offset.Cursor}
	if len(records) == 0 {
		return result, nil
	}

	for _, warehouseCopy := range records {
		vectorCopy, err := uc.vector.Get(ctx, warehouseCopy.ID)
		if err != nil && !errors.Is(err, model.ErrMemoryNotFound) {
			return nil, uc.syncFailed(ctx, types.DirectionImport, err)
		}

		winner, outcome := model.ResolveConflict(vectorCopy, warehouseCopy)
		switch outcome {
		case model.OutcomeVectorNewer:
			// Local copy is strictly newer: keep it, export carries it back
			result.Conflicts++
			metrics.SyncConflicts.Inc()
			continue

		case model.OutcomeTieWarehouse:
			if vectorCopy.EqualContent(warehouseCopy) {
				// Replay of an already-applied record
				continue
			}
		}

		if err := uc.ensureEmbedding(ctx, vectorCopy, winner); err != nil {
			result.Failed++
			logging.From(ctx).Warn("failed to embed imported memory",
				"memory_id", warehouseCopy.ID,
				"error", err)
			continue
		}

		if err := uc.vector.Upsert(ctx, winner); err != nil {
			result.Failed++
			logging.From(ctx).Warn("failed to apply imported memory",
				"memory_id", warehouseCopy.ID,
				"error", err)
			continue
		}
		result.Applied++
	}

	metrics.SyncPulled.Add(float64(result.Applied))

	if result.Failed > 0 {
		metrics.SyncFailures.WithLabelValues(types.DirectionImport.String()).Inc()
		return result, goerr.Wrap(model.ErrConflictApply, "import pass had apply failures",
			goerr.V("pulled", result.Pulled),
			goerr.V("applied", result.Applied),
			goerr.V("failed", result.Failed))
	}

	next := offset.Advanced(maxSeen, uc.now())
	swapped, err := uc.offsets.CompareAndSet(ctx, offset, next)
	if err != nil {
		return nil, uc.syncFailed(ctx, types.DirectionImport, err)
	}
	if swapped {
		result.NextCursor = next.Cursor
	} else {
		logging.From(ctx).Info("import offset already advanced by a concurrent pass",
			"cursor", offset.Cursor)
	}

	return result, nil
}

// SyncStatus reports both direction offsets
func (uc *UseCases) SyncStatus(ctx context.Context) (*model.SyncStatus, error) {
	exportOffset, err := uc.offsets.Get(ctx, types.DirectionExport)
	if err != nil {
		return nil, err
	}

	importOffset, err := uc.offsets.Get(ctx, types.DirectionImport)
	if err != nil {
		return nil, err
	}

	return &model.SyncStatus{Export: exportOffset, Import: importOffset}, nil
}

// ensureEmbedding fills the winner's embedding before it enters the
// vector index. A pulled record usually carries its own vector; when it
// does not, the existing vector copy's embedding is reused as long as
// the text is unchanged, and recomputed otherwise.
func (uc *UseCases) ensureEmbedding(ctx context.Context, vectorCopy, winner *model.Memory) error {
	if len(winner.Embedding) == model.EmbeddingDimension {
		return nil
	}
	if vectorCopy != nil && vectorCopy.Text == winner.Text && len(vectorCopy.Embedding) == model.EmbeddingDimension {
		winner.Embedding = vectorCopy.Embedding
		return nil
	}
	embedding, err := uc.embedder.Embed(ctx, winner.Text)
	if err != nil {
		return err
	}
	winner.Embedding = embedding
	return nil
}

// syncFailed records the failure in metrics, alerts the notifier, and
// returns the error for the caller to propagate.
func (uc *UseCases) syncFailed(ctx context.Context, direction types.SyncDirection, err error) error {
	metrics.SyncFailures.WithLabelValues(direction.String()).Inc()
	if notifyErr := uc.notifier.NotifySyncFailure(ctx, direction, err); notifyErr != nil {
		logging.From(ctx).Warn("failed to send sync failure notice", "error", notifyErr)
	}
	return err
}
