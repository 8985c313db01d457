package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// memoryJSON is the wire form of a memory record. The embedding is
// deliberately omitted: it is an internal artifact of the index.
type memoryJSON struct {
	ID        string            `json:"id"`
	SubjectID string            `json:"subject_id,omitempty"`
	Text      string            `json:"text"`
	Type      string            `json:"type"`
	Status    string            `json:"status"`
	Title     string            `json:"title,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func toMemoryJSON(m *model.Memory) memoryJSON {
	return memoryJSON{
		ID:        m.ID.String(),
		SubjectID: m.SubjectID.String(),
		Text:      m.Text,
		Type:      m.Type,
		Status:    m.Status.String(),
		Title:     m.Title,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func createMemoryHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		ID        string            `json:"id"`
		SubjectID string            `json:"subject_id"`
		Text      string            `json:"text"`
		Type      string            `json:"type"`
		Status    string            `json:"status"`
		Title     string            `json:"title"`
		Metadata  map[string]string `json:"metadata"`
	}
	type response struct {
		ID              string    `json:"id"`
		VectorStatus    string    `json:"vector_status"`
		WarehouseStatus string    `json:"warehouse_status"`
		WarehouseError  string    `json:"warehouse_error,omitempty"`
		UpdatedAt       time.Time `json:"updated_at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req request
		if err := decodeJSON(r, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		result, err := uc.CreateOrUpsert(ctx, &model.MemoryInput{
			ID:        types.MemoryID(req.ID),
			SubjectID: types.SubjectID(req.SubjectID),
			Text:      req.Text,
			Type:      req.Type,
			Status:    types.MemoryStatus(req.Status),
			Title:     req.Title,
			Metadata:  req.Metadata,
		})
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusOK, response{
			ID:              result.Memory.ID.String(),
			VectorStatus:    string(result.VectorState),
			WarehouseStatus: string(result.WarehouseState),
			WarehouseError:  result.WarehouseError,
			UpdatedAt:       result.Memory.UpdatedAt,
		})
	}
}

func getMemoryHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		mem, err := uc.GetMemory(ctx, types.MemoryID(chi.URLParam(r, "memoryID")))
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusOK, toMemoryJSON(mem))
	}
}

func deleteMemoryHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := uc.DeleteMemory(ctx, types.MemoryID(chi.URLParam(r, "memoryID"))); err != nil {
			handleError(ctx, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func searchMemoriesHandler(uc *usecase.UseCases, defaultLimit int) http.HandlerFunc {
	type request struct {
		Query     string `json:"query"`
		Limit     int    `json:"limit"`
		Type      string `json:"type"`
		SubjectID string `json:"subject_id"`
		Status    string `json:"status"`
	}
	type hit struct {
		Memory memoryJSON `json:"memory"`
		Score  float64    `json:"score"`
	}
	type response struct {
		Results []hit `json:"results"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req request
		if err := decodeJSON(r, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		limit := req.Limit
		if limit == 0 {
			limit = defaultLimit
		}

		hits, err := uc.Search(ctx, &model.SearchQuery{
			Text:  req.Query,
			Limit: limit,
			Filter: model.SearchFilter{
				Type:      req.Type,
				SubjectID: types.SubjectID(req.SubjectID),
				Statuses:  types.ParseStatusSet(req.Status),
			},
		})
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		resp := response{Results: make([]hit, 0, len(hits))}
		for _, h := range hits {
			resp.Results = append(resp.Results, hit{
				Memory: toMemoryJSON(h.Memory),
				Score:  h.Score,
			})
		}
		respondJSON(ctx, w, http.StatusOK, resp)
	}
}
