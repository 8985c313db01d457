package model

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// SyncOffset is the per-direction high-water mark of incremental sync.
// Cursor is the UpdatedAt of the newest record durably committed on the
// destination side; records with UpdatedAt strictly greater are pending.
// The offset advances only after the destination batch commit, so a crash
// in between re-delivers the batch (at-least-once, idempotent upsert).
type SyncOffset struct {
	Direction     types.SyncDirection
	Cursor        time.Time
	LastSuccessAt time.Time
}

// NewSyncOffset returns the zero offset for a direction. A zero Cursor
// means the next pass starts from the beginning of history.
func NewSyncOffset(direction types.SyncDirection) *SyncOffset {
	return &SyncOffset{Direction: direction}
}

// Clone returns a copy of the offset
func (x *SyncOffset) Clone() *SyncOffset {
	if x == nil {
		return nil
	}
	copied := *x
	return &copied
}

// Advanced returns a copy with the cursor moved to the given position
func (x *SyncOffset) Advanced(cursor, successAt time.Time) *SyncOffset {
	return &SyncOffset{
		Direction:     x.Direction,
		Cursor:        normalizeTime(cursor),
		LastSuccessAt: normalizeTime(successAt),
	}
}

// Equal compares offsets by value, at the precision the backing store
// round-trips timestamps.
func (x *SyncOffset) Equal(other *SyncOffset) bool {
	if x == nil || other == nil {
		return x == other
	}
	return x.Direction == other.Direction &&
		x.Cursor.Equal(other.Cursor) &&
		x.LastSuccessAt.Equal(other.LastSuccessAt)
}

// SyncState is the per-store outcome of a dual write
type SyncState string

const (
	SyncStateOK      SyncState = "ok"
	SyncStateFailed  SyncState = "failed"
	SyncStateSkipped SyncState = "skipped"
)

// UpsertResult reports both store outcomes of a create/upsert call. The
// vector index and the warehouse succeed or fail independently; a caller
// must inspect both states rather than a single flag.
type UpsertResult struct {
	Memory         *Memory
	VectorState    SyncState
	WarehouseState SyncState
	WarehouseError string
}

// Divergent reports whether the call left the stores out of sync: the
// vector index accepted the write and the warehouse did not.
func (x *UpsertResult) Divergent() bool {
	return x.VectorState == SyncStateOK && x.WarehouseState != SyncStateOK
}

// BatchResult is the outcome of a warehouse batch write. A failed record
// does not abort the rest of the batch.
type BatchResult struct {
	Succeeded int
	Failed    int
	FirstErr  error
}

// ExportResult is the outcome of one export pass
type ExportResult struct {
	Pushed     int
	NextCursor time.Time
}

// ImportResult is the outcome of one import pass. Conflicts counts records
// where both stores held a version and the vector copy won; Failed counts
// resolved winners that could not be applied.
type ImportResult struct {
	Pulled     int
	Applied    int
	Conflicts  int
	Failed     int
	NextCursor time.Time
}

// SyncStatus is the current position of both sync directions
type SyncStatus struct {
	Export *SyncOffset
	Import *SyncOffset
}
