package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   model.SearchQuery
		wantErr bool
	}{
		{name: "valid", query: model.SearchQuery{Text: "hiking", Limit: 5}},
		{name: "limit at lower bound", query: model.SearchQuery{Text: "hiking", Limit: 1}},
		{name: "limit at upper bound", query: model.SearchQuery{Text: "hiking", Limit: model.MaxSearchLimit}},
		{name: "empty text", query: model.SearchQuery{Text: "  ", Limit: 5}, wantErr: true},
		{name: "zero limit", query: model.SearchQuery{Text: "hiking", Limit: 0}, wantErr: true},
		{name: "negative limit", query: model.SearchQuery{Text: "hiking", Limit: -1}, wantErr: true},
		{name: "limit above bound", query: model.SearchQuery{Text: "hiking", Limit: model.MaxSearchLimit + 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				gt.Error(t, err)
				gt.Bool(t, errors.Is(err, model.ErrInvalidInput)).True()
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestSearchFilter_Matches(t *testing.T) {
	record := &model.Memory{
		ID:        "mem-1",
		SubjectID: "user-1",
		Text:      "Alice loves weekend hiking",
		Type:      "personal",
		Status:    types.StatusActive,
	}

	tests := []struct {
		name   string
		filter *model.SearchFilter
		want   bool
	}{
		{name: "nil filter matches", filter: nil, want: true},
		{name: "zero filter matches", filter: &model.SearchFilter{}, want: true},
		{name: "type match", filter: &model.SearchFilter{Type: "personal"}, want: true},
		{name: "type mismatch", filter: &model.SearchFilter{Type: "work"}, want: false},
		{name: "subject match", filter: &model.SearchFilter{SubjectID: "user-1"}, want: true},
		{name: "subject mismatch", filter: &model.SearchFilter{SubjectID: "user-2"}, want: false},
		{
			name:   "status OR within set",
			filter: &model.SearchFilter{Statuses: types.ParseStatusSet("active,archived")},
			want:   true,
		},
		{
			name:   "status set excludes others",
			filter: &model.SearchFilter{Statuses: types.ParseStatusSet("deleted")},
			want:   false,
		},
		{
			name: "all fields AND together",
			filter: &model.SearchFilter{
				Type:      "personal",
				SubjectID: "user-1",
				Statuses:  types.ParseStatusSet("active,archived"),
			},
			want: true,
		},
		{
			name: "one failing field fails the AND",
			filter: &model.SearchFilter{
				Type:      "personal",
				SubjectID: "user-1",
				Statuses:  types.ParseStatusSet("deleted"),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.filter.Matches(record)).Equal(tt.want)
		})
	}
}

func TestSortScoredMemories(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	hit := func(id string, score float64, updatedAt time.Time) *model.ScoredMemory {
		return &model.ScoredMemory{
			Memory: &model.Memory{ID: types.MemoryID(id), Text: "t", UpdatedAt: updatedAt},
			Score:  score,
		}
	}

	hits := []*model.ScoredMemory{
		hit("low", 0.2, base),
		hit("tie-old", 0.8, base),
		hit("high", 0.9, base),
		hit("tie-new", 0.8, base.Add(time.Minute)),
	}

	model.SortScoredMemories(hits)

	gt.Value(t, hits[0].Memory.ID).Equal(types.MemoryID("high"))
	gt.Value(t, hits[1].Memory.ID).Equal(types.MemoryID("tie-new"))
	gt.Value(t, hits[2].Memory.ID).Equal(types.MemoryID("tie-old"))
	gt.Value(t, hits[3].Memory.ID).Equal(types.MemoryID("low"))
}
