package model

// RecordSource identifies which store a record version came from
type RecordSource string

const (
	SourceVectorIndex RecordSource = "vector_index"
	SourceWarehouse   RecordSource = "warehouse"
)

// ConflictOutcome labels why ResolveConflict picked its winner, so sync
// passes can count genuine conflicts separately from fresh records.
type ConflictOutcome string

const (
	// OutcomeVectorOnly means only the vector index holds the record
	OutcomeVectorOnly ConflictOutcome = "vector_only"
	// OutcomeWarehouseOnly means only the warehouse holds the record
	OutcomeWarehouseOnly ConflictOutcome = "warehouse_only"
	// OutcomeVectorNewer means both exist and the vector copy is strictly newer
	OutcomeVectorNewer ConflictOutcome = "vector_newer"
	// OutcomeWarehouseNewer means both exist and the warehouse copy is strictly newer
	OutcomeWarehouseNewer ConflictOutcome = "warehouse_newer"
	// OutcomeTieWarehouse means UpdatedAt is equal and the warehouse copy
	// wins as the system of record
	OutcomeTieWarehouse ConflictOutcome = "tie_warehouse"
)

// ResolveConflict picks the winning version of a record that may exist in
// both stores. Whole-record last-writer-wins: the strictly greater
// UpdatedAt wins and fields are never merged. On equal UpdatedAt the
// warehouse copy wins because the warehouse is the system of record.
// A nil side loses trivially.
func ResolveConflict(vectorCopy, warehouseCopy *Memory) (*Memory, ConflictOutcome) {
	if vectorCopy == nil {
		return warehouseCopy, OutcomeWarehouseOnly
	}
	if warehouseCopy == nil {
		return vectorCopy, OutcomeVectorOnly
	}

	if vectorCopy.UpdatedAt.After(warehouseCopy.UpdatedAt) {
		return vectorCopy, OutcomeVectorNewer
	}
	if warehouseCopy.UpdatedAt.After(vectorCopy.UpdatedAt) {
		return warehouseCopy, OutcomeWarehouseNewer
	}
	return warehouseCopy, OutcomeTieWarehouse
}
