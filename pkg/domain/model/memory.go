package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// EmbeddingDimension is the fixed dimension of memory embeddings
// (Gemini text-embedding model family). A record carrying a vector of any
// other length is rejected, never truncated or padded.
const EmbeddingDimension = 768

// DefaultMemoryType is assigned when a caller omits the type tag
const DefaultMemoryType = "generic"

// Memory is the canonical record shared by the vector index and the
// warehouse. The same ID refers to the same logical record in both stores.
// UpdatedAt is the basis for incremental sync and conflict resolution and
// never moves backward for a given ID outside conflict resolution.
type Memory struct {
	ID        types.MemoryID
	SubjectID types.SubjectID
	Text      string
	Embedding []float32 // Vector embedding for similarity search (EmbeddingDimension)
	Type      string
	Status    types.MemoryStatus
	Title     string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timestamps are held at microsecond precision. Both backing stores
// round-trip microseconds exactly (Firestore timestamps and the numeric
// updated_at field of the search index), so cursor comparisons stay
// stable across stores.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NewMemory creates a memory with a generated ID, default tags, and both
// timestamps set to now.
func NewMemory(subjectID types.SubjectID, text string) *Memory {
	now := normalizeTime(time.Now())
	return &Memory{
		ID:        types.NewMemoryID(),
		SubjectID: subjectID,
		Text:      text,
		Type:      DefaultMemoryType,
		Status:    types.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the structural invariants of the record
func (x *Memory) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidInput, "memory ID is required")
	}
	if strings.TrimSpace(x.Text) == "" {
		return goerr.Wrap(ErrInvalidInput, "text is required", goerr.V("memoryID", x.ID))
	}
	if len(x.Embedding) != 0 && len(x.Embedding) != EmbeddingDimension {
		return goerr.Wrap(ErrInvalidInput, "embedding dimension mismatch",
			goerr.V("memoryID", x.ID),
			goerr.V("got", len(x.Embedding)),
			goerr.V("want", EmbeddingDimension))
	}
	return nil
}

// Touch advances UpdatedAt to now without ever moving it backward
func (x *Memory) Touch(now time.Time) {
	now = normalizeTime(now)
	if now.After(x.UpdatedAt) {
		x.UpdatedAt = now
	}
}

// Clone returns a deep copy. Store implementations hand out clones so
// callers never alias internal state.
func (x *Memory) Clone() *Memory {
	if x == nil {
		return nil
	}

	copied := *x
	if x.Embedding != nil {
		copied.Embedding = make([]float32, len(x.Embedding))
		copy(copied.Embedding, x.Embedding)
	}
	if x.Metadata != nil {
		copied.Metadata = make(map[string]string, len(x.Metadata))
		for k, v := range x.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

// EqualContent reports whether the mutable fields of two records match.
// Embeddings and timestamps are excluded: the embedding is derived from
// Text and the timestamps track write history, not content.
func (x *Memory) EqualContent(other *Memory) bool {
	if x == nil || other == nil {
		return x == other
	}
	if x.ID != other.ID ||
		x.SubjectID != other.SubjectID ||
		x.Text != other.Text ||
		x.Type != other.Type ||
		x.Status != other.Status ||
		x.Title != other.Title {
		return false
	}
	if len(x.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range x.Metadata {
		if other.Metadata[k] != v {
			return false
		}
	}
	return true
}

// MemoryInput is a create/upsert request. ID empty means create with a
// generated ID; ID set means upsert of that record.
type MemoryInput struct {
	ID        types.MemoryID
	SubjectID types.SubjectID
	Text      string
	Type      string
	Status    types.MemoryStatus
	Title     string
	Metadata  map[string]string
}

// Validate checks the request before any store is touched
func (x *MemoryInput) Validate() error {
	if strings.TrimSpace(x.Text) == "" {
		return goerr.Wrap(ErrInvalidInput, "text is required")
	}
	return nil
}

// Materialize builds the canonical record for this input at time now,
// applying defaults for omitted tags.
func (x *MemoryInput) Materialize(now time.Time) *Memory {
	id := x.ID
	if id == "" {
		id = types.NewMemoryID()
	}

	memType := x.Type
	if memType == "" {
		memType = DefaultMemoryType
	}

	now = normalizeTime(now)
	m := &Memory{
		ID:        id,
		SubjectID: x.SubjectID,
		Text:      x.Text,
		Type:      memType,
		Status:    x.Status.Normalize(),
		Title:     x.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if x.Metadata != nil {
		m.Metadata = make(map[string]string, len(x.Metadata))
		for k, v := range x.Metadata {
			m.Metadata[k] = v
		}
	}
	return m
}
