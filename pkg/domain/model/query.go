package model

import (
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

const (
	// MaxSearchLimit bounds the k of a k-NN search
	MaxSearchLimit = 20
	// DefaultSearchLimit is used when a caller omits the limit
	DefaultSearchLimit = 5
)

// SearchFilter narrows search results. Provided fields combine with
// logical AND; within Statuses a record matches when its status equals any
// member (logical OR). Zero-value fields are not applied.
type SearchFilter struct {
	Type      string
	SubjectID types.SubjectID
	Statuses  types.StatusSet
}

// IsZero reports whether no filter field is set
func (x *SearchFilter) IsZero() bool {
	return x == nil || (x.Type == "" && x.SubjectID == "" && len(x.Statuses) == 0)
}

// Matches evaluates the filter against a record
func (x *SearchFilter) Matches(m *Memory) bool {
	if x == nil {
		return true
	}
	if x.Type != "" && m.Type != x.Type {
		return false
	}
	if x.SubjectID != "" && m.SubjectID != x.SubjectID {
		return false
	}
	if len(x.Statuses) > 0 && !x.Statuses.Contains(m.Status) {
		return false
	}
	return true
}

// SearchQuery is a k-NN search request over the vector index
type SearchQuery struct {
	Text   string
	Limit  int
	Filter SearchFilter
}

// Validate requires query text and bounds Limit to [1, MaxSearchLimit]
func (x *SearchQuery) Validate() error {
	if strings.TrimSpace(x.Text) == "" {
		return goerr.Wrap(ErrInvalidInput, "query text is required")
	}
	if x.Limit < 1 || x.Limit > MaxSearchLimit {
		return goerr.Wrap(ErrInvalidInput, "search limit out of range",
			goerr.V("limit", x.Limit),
			goerr.V("max", MaxSearchLimit))
	}
	return nil
}

// ScoredMemory is a search hit with its similarity score in (0, 1]
type ScoredMemory struct {
	Memory *Memory
	Score  float64
}

// SortScoredMemories orders hits by score descending, ties broken by
// UpdatedAt descending so result order is deterministic.
func SortScoredMemories(hits []*ScoredMemory) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.UpdatedAt.After(hits[j].Memory.UpdatedAt)
	})
}
