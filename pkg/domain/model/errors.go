package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy of the sync engine. Adapters wrap provider failures into
// one of these classes so callers can branch with errors.Is regardless of
// which backend is configured.
var (
	// ErrInvalidInput is malformed caller input. Never retried.
	ErrInvalidInput = goerr.New("invalid input")

	// ErrMemoryNotFound is a get/delete on an unknown memory ID
	ErrMemoryNotFound = goerr.New("memory not found")

	// ErrVectorIndex is a vector index provider failure
	ErrVectorIndex = goerr.New("vector index failure")

	// ErrWarehouse is a warehouse provider failure
	ErrWarehouse = goerr.New("warehouse failure")

	// ErrEmbedding is an embedding provider failure
	ErrEmbedding = goerr.New("embedding failure")

	// ErrPartialSync marks a record written to the vector index but not yet
	// to the warehouse. The record re-offers on the next export pass.
	ErrPartialSync = goerr.New("partial sync: warehouse write pending")

	// ErrConflictApply marks a resolved winner that could not be applied
	ErrConflictApply = goerr.New("failed to apply conflict winner")

	// ErrOffsetConflict marks a lost compare-and-set on a sync offset
	ErrOffsetConflict = goerr.New("sync offset was advanced concurrently")
)
