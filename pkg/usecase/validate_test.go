package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func TestValidateStores(t *testing.T) {
	ctx := context.Background()

	t.Run("converged stores report no issues", func(t *testing.T) {
		env := newTestEnv()
		env.createMemory(t, ctx, &model.MemoryInput{SubjectID: "subj-val", Text: "first record"})
		env.clock.Advance(time.Second)
		env.createMemory(t, ctx, &model.MemoryInput{SubjectID: "subj-val", Text: "second record"})

		report, err := env.uc.ValidateStores(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, report.VectorRecords).Equal(2)
		gt.Value(t, report.WarehouseRecords).Equal(2)
		gt.Bool(t, report.HasIssues()).False()
	})

	t.Run("pending export shows as a missing warehouse copy", func(t *testing.T) {
		env := newTestEnv()
		env.warehouse.batchErr = errors.New("warehouse down")

		result, err := env.uc.CreateOrUpsert(ctx, &model.MemoryInput{SubjectID: "subj-val", Text: "stranded in the index"})
		gt.NoError(t, err).Required()
		gt.Value(t, result.WarehouseState).Equal(model.SyncStateFailed)
		env.warehouse.batchErr = nil

		report, err := env.uc.ValidateStores(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, report.Issues).Length(1).Required()
		gt.Value(t, report.Issues[0].MemoryID).Equal(result.Memory.ID)
		gt.String(t, report.Issues[0].Message).Contains("missing from warehouse")
	})

	t.Run("pending import shows as a missing index copy", func(t *testing.T) {
		env := newTestEnv()
		stranded := model.NewMemory("subj-val", "written by another engine instance")
		_, err := env.warehouse.BatchPut(ctx, []*model.Memory{stranded})
		gt.NoError(t, err).Required()

		report, err := env.uc.ValidateStores(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, report.Issues).Length(1).Required()
		gt.Value(t, report.Issues[0].MemoryID).Equal(stranded.ID)
		gt.String(t, report.Issues[0].Message).Contains("missing from vector index")
	})

	t.Run("warehouse tombstone without an index copy is clean", func(t *testing.T) {
		env := newTestEnv()
		tombstone := model.NewMemory("subj-val", "removed earlier")
		tombstone.Status = types.StatusDeleted
		_, err := env.warehouse.BatchPut(ctx, []*model.Memory{tombstone})
		gt.NoError(t, err).Required()

		report, err := env.uc.ValidateStores(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, report.HasIssues()).False()
		gt.Value(t, report.WarehouseRecords).Equal(1)
	})

	t.Run("version skew shows as pending sync", func(t *testing.T) {
		env := newTestEnv()
		created := env.createMemory(t, ctx, &model.MemoryInput{SubjectID: "subj-val", Text: "original wording"})

		newer := created.Clone()
		newer.Text = "revised wording"
		newer.Touch(env.clock.Now().Add(time.Minute))
		_, err := env.warehouse.BatchPut(ctx, []*model.Memory{newer})
		gt.NoError(t, err).Required()

		report, err := env.uc.ValidateStores(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, report.Issues).Length(1).Required()
		gt.Value(t, report.Issues[0].MemoryID).Equal(created.ID)
		gt.String(t, report.Issues[0].Message).Contains("different versions")
	})

	t.Run("same timestamp with different content is flagged", func(t *testing.T) {
		env := newTestEnv()
		created := env.createMemory(t, ctx, &model.MemoryInput{SubjectID: "subj-val", Text: "original wording"})

		twisted := created.Clone()
		twisted.Text = "silently rewritten"
		_, err := env.warehouse.BatchPut(ctx, []*model.Memory{twisted})
		gt.NoError(t, err).Required()

		report, err := env.uc.ValidateStores(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, report.Issues).Length(1).Required()
		gt.String(t, report.Issues[0].Message).Contains("same timestamp")
	})

	t.Run("vector scan failure maps to the index error", func(t *testing.T) {
		env := newTestEnv()
		env.vector.listErr = errors.New("index offline")

		_, err := env.uc.ValidateStores(ctx)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, model.ErrVectorIndex)).True()
	})

	t.Run("warehouse scan failure maps to the warehouse error", func(t *testing.T) {
		env := newTestEnv()
		env.warehouse.readErr = errors.New("warehouse offline")

		_, err := env.uc.ValidateStores(ctx)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, model.ErrWarehouse)).True()
	})
}
