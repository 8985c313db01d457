package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// ValidationIssue is a single inconsistency between the two stores
type ValidationIssue struct {
	MemoryID types.MemoryID
	Message  string
	Expected string
	Actual   string
}

// ValidationResult holds the findings of a store consistency check
type ValidationResult struct {
	VectorRecords    int
	WarehouseRecords int
	Issues           []ValidationIssue
}

// HasIssues returns true if there are any validation issues
func (r *ValidationResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// AddIssue adds a validation issue to the result
func (r *ValidationResult) AddIssue(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
}

// ValidateStores cross-checks the vector index against the warehouse and
// reports records missing on either side or diverging in content. A
// record that is pending sync shows up as an issue too; a clean result
// therefore means both stores are converged, not merely intact. It does
// NOT modify any data.
func (uc *UseCases) ValidateStores(ctx context.Context) (*ValidationResult, error) {
	vectorCopies, err := uc.scanVector(ctx)
	if err != nil {
		return nil, err
	}
	warehouseCopies, err := uc.scanWarehouse(ctx)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		VectorRecords:    len(vectorCopies),
		WarehouseRecords: len(warehouseCopies),
	}

	for id, vec := range vectorCopies {
		wh, ok := warehouseCopies[id]
		if !ok {
			result.AddIssue(ValidationIssue{
				MemoryID: id,
				Message:  "record missing from warehouse (pending export or lost)",
				Expected: "warehouse copy",
				Actual:   "absent",
			})
			continue
		}

		if !vec.UpdatedAt.Equal(wh.UpdatedAt) {
			result.AddIssue(ValidationIssue{
				MemoryID: id,
				Message:  "stores hold different versions (pending sync)",
				Expected: fmt.Sprintf("vector updated_at %s", vec.UpdatedAt.Format(time.RFC3339Nano)),
				Actual:   fmt.Sprintf("warehouse updated_at %s", wh.UpdatedAt.Format(time.RFC3339Nano)),
			})
			continue
		}

		if !vec.EqualContent(wh) {
			result.AddIssue(ValidationIssue{
				MemoryID: id,
				Message:  "stores diverge at the same timestamp",
				Expected: "identical content",
				Actual:   "content mismatch",
			})
		}
	}

	for id, wh := range warehouseCopies {
		if _, ok := vectorCopies[id]; ok {
			continue
		}
		// A tombstoned warehouse record with no index copy is the
		// steady state after a delete, not an inconsistency.
		if wh.Status == types.StatusDeleted {
			continue
		}
		result.AddIssue(ValidationIssue{
			MemoryID: id,
			Message:  "record missing from vector index (pending import or lost)",
			Expected: "vector index copy",
			Actual:   "absent",
		})
	}

	return result, nil
}

func (uc *UseCases) scanVector(ctx context.Context) (map[types.MemoryID]*model.Memory, error) {
	copies := make(map[types.MemoryID]*model.Memory)

	var cursor time.Time
	for {
		page, err := uc.vector.ListUpdatedSince(ctx, cursor, uc.exportLimit)
		if err != nil {
			return nil, goerr.Wrap(model.ErrVectorIndex, "failed to scan vector index",
				goerr.V("cursor", cursor))
		}
		if len(page) == 0 {
			return copies, nil
		}
		for _, m := range page {
			copies[m.ID] = m
			if m.UpdatedAt.After(cursor) {
				cursor = m.UpdatedAt
			}
		}
	}
}

func (uc *UseCases) scanWarehouse(ctx context.Context) (map[types.MemoryID]*model.Memory, error) {
	copies := make(map[types.MemoryID]*model.Memory)

	var cursor time.Time
	for {
		page, maxUpdated, err := uc.warehouse.ReadSince(ctx, cursor, uc.importLimit)
		if err != nil {
			return nil, goerr.Wrap(model.ErrWarehouse, "failed to scan warehouse",
				goerr.V("cursor", cursor))
		}
		if len(page) == 0 {
			return copies, nil
		}
		for _, m := range page {
			copies[m.ID] = m
		}
		cursor = maxUpdated
	}
}
