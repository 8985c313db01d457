package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

type testServer struct {
	srv       *httpctrl.Server
	vector    *memory.VectorIndex
	warehouse *memory.Warehouse
	offsets   *memory.OffsetStore
}

func newTestServer(opts ...httpctrl.Options) *testServer {
	vector := memory.NewVectorIndex()
	warehouse := memory.NewWarehouse()
	offsets := memory.NewOffsetStore()
	uc := usecase.New(vector, warehouse, offsets, embedding.NewFixed())

	return &testServer{
		srv:       httpctrl.New(uc, opts...),
		vector:    vector,
		warehouse: warehouse,
		offsets:   offsets,
	}
}

func (x *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	x.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func (x *testServer) createMemory(t *testing.T, body map[string]any) string {
	t.Helper()

	rec := x.do(t, http.MethodPost, "/api/memories", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &resp)
	if resp.ID == "" {
		t.Fatal("expected a memory ID in the response")
	}
	return resp.ID
}

// flakyWarehouse lets tests force warehouse failures through the full
// HTTP stack.
type flakyWarehouse struct {
	*memory.Warehouse
	batchErr error
	pingErr  error
}

func (x *flakyWarehouse) BatchPut(ctx context.Context, memories []*model.Memory) (*model.BatchResult, error) {
	if x.batchErr != nil {
		return nil, x.batchErr
	}
	return x.Warehouse.BatchPut(ctx, memories)
}

func (x *flakyWarehouse) Ping(ctx context.Context) error {
	if x.pingErr != nil {
		return x.pingErr
	}
	return x.Warehouse.Ping(ctx)
}

type flakyVector struct {
	*memory.VectorIndex
	upsertErr error
	pingErr   error
}

func (x *flakyVector) Upsert(ctx context.Context, mem *model.Memory) error {
	if x.upsertErr != nil {
		return x.upsertErr
	}
	return x.VectorIndex.Upsert(ctx, mem)
}

func (x *flakyVector) Ping(ctx context.Context) error {
	if x.pingErr != nil {
		return x.pingErr
	}
	return x.VectorIndex.Ping(ctx)
}

func newServerWith(vector interfaces.VectorIndex, warehouse interfaces.Warehouse) (*httpctrl.Server, *memory.OffsetStore) {
	offsets := memory.NewOffsetStore()
	uc := usecase.New(vector, warehouse, offsets, embedding.NewFixed())
	return httpctrl.New(uc), offsets
}

func TestCreateMemoryEndpoint(t *testing.T) {
	t.Run("create returns both store states", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodPost, "/api/memories", map[string]any{
			"subject_id": "user-1",
			"text":       "prefers window seats",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("expected JSON content type, got %q", got)
		}

		var resp struct {
			ID              string `json:"id"`
			VectorStatus    string `json:"vector_status"`
			WarehouseStatus string `json:"warehouse_status"`
			WarehouseError  string `json:"warehouse_error"`
		}
		decodeBody(t, rec, &resp)

		if resp.ID == "" {
			t.Error("expected a generated memory ID")
		}
		if resp.VectorStatus != "ok" {
			t.Errorf("expected vector_status ok, got %q", resp.VectorStatus)
		}
		if resp.WarehouseStatus != "ok" {
			t.Errorf("expected warehouse_status ok, got %q", resp.WarehouseStatus)
		}
		if resp.WarehouseError != "" {
			t.Errorf("expected no warehouse_error, got %q", resp.WarehouseError)
		}
	})

	t.Run("missing text is a 400", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodPost, "/api/memories", map[string]any{
			"subject_id": "user-1",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		ts := newTestServer()

		req := httptest.NewRequest(http.MethodPost, "/api/memories", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		ts.srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("warehouse failure still returns 200 with the divergence in the body", func(t *testing.T) {
		warehouse := &flakyWarehouse{
			Warehouse: memory.NewWarehouse(),
			batchErr:  goerr.New("warehouse down"),
		}
		srv, _ := newServerWith(memory.NewVectorIndex(), warehouse)

		body, _ := json.Marshal(map[string]any{"text": "survives a warehouse outage"})
		req := httptest.NewRequest(http.MethodPost, "/api/memories", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			VectorStatus    string `json:"vector_status"`
			WarehouseStatus string `json:"warehouse_status"`
			WarehouseError  string `json:"warehouse_error"`
		}
		decodeBody(t, rec, &resp)

		if resp.VectorStatus != "ok" {
			t.Errorf("expected vector_status ok, got %q", resp.VectorStatus)
		}
		if resp.WarehouseStatus != "failed" {
			t.Errorf("expected warehouse_status failed, got %q", resp.WarehouseStatus)
		}
		if resp.WarehouseError == "" {
			t.Error("expected warehouse_error to carry the cause")
		}
	})

	t.Run("vector failure is a 502", func(t *testing.T) {
		vector := &flakyVector{
			VectorIndex: memory.NewVectorIndex(),
			upsertErr:   goerr.New("index down"),
		}
		srv, _ := newServerWith(vector, memory.NewWarehouse())

		body, _ := json.Marshal(map[string]any{"text": "never lands"})
		req := httptest.NewRequest(http.MethodPost, "/api/memories", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
		}
	})
}

func TestGetMemoryEndpoint(t *testing.T) {
	t.Run("returns the record without its embedding", func(t *testing.T) {
		ts := newTestServer()
		id := ts.createMemory(t, map[string]any{
			"subject_id": "user-2",
			"text":       "allergic to peanuts",
			"title":      "allergy",
		})

		rec := ts.do(t, http.MethodGet, "/api/memories/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var raw map[string]any
		decodeBody(t, rec, &raw)

		if raw["id"] != id {
			t.Errorf("expected id %q, got %v", id, raw["id"])
		}
		if raw["text"] != "allergic to peanuts" {
			t.Errorf("unexpected text: %v", raw["text"])
		}
		if raw["status"] != "active" {
			t.Errorf("expected status active, got %v", raw["status"])
		}
		if _, ok := raw["embedding"]; ok {
			t.Error("embedding must not appear on the wire")
		}
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodGet, "/api/memories/no-such-memory", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestDeleteMemoryEndpoint(t *testing.T) {
	t.Run("delete removes the record", func(t *testing.T) {
		ts := newTestServer()
		id := ts.createMemory(t, map[string]any{"text": "short lived"})

		rec := ts.do(t, http.MethodDelete, "/api/memories/"+id, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
		}

		rec = ts.do(t, http.MethodGet, "/api/memories/"+id, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d after delete, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodDelete, "/api/memories/no-such-memory", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("ranks the matching record first", func(t *testing.T) {
		ts := newTestServer()
		target := ts.createMemory(t, map[string]any{"text": "enjoys trail running at dawn"})
		ts.createMemory(t, map[string]any{"text": "drinks oat milk lattes"})
		ts.createMemory(t, map[string]any{"text": "works from the library on fridays"})

		rec := ts.do(t, http.MethodPost, "/api/memories/search", map[string]any{
			"query": "enjoys trail running at dawn",
			"limit": 10,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Results []struct {
				Memory struct {
					ID string `json:"id"`
				} `json:"memory"`
				Score float64 `json:"score"`
			} `json:"results"`
		}
		decodeBody(t, rec, &resp)

		if len(resp.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(resp.Results))
		}
		if resp.Results[0].Memory.ID != target {
			t.Errorf("expected %q first, got %q", target, resp.Results[0].Memory.ID)
		}
		if resp.Results[0].Score <= resp.Results[1].Score {
			t.Errorf("expected descending scores, got %f then %f", resp.Results[0].Score, resp.Results[1].Score)
		}
	})

	t.Run("omitted limit falls back to the server default", func(t *testing.T) {
		ts := newTestServer()
		for _, text := range []string{
			"first note", "second note", "third note",
			"fourth note", "fifth note", "sixth note",
		} {
			ts.createMemory(t, map[string]any{"text": text})
		}

		rec := ts.do(t, http.MethodPost, "/api/memories/search", map[string]any{
			"query": "note",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Results []json.RawMessage `json:"results"`
		}
		decodeBody(t, rec, &resp)

		if len(resp.Results) != model.DefaultSearchLimit {
			t.Errorf("expected %d results, got %d", model.DefaultSearchLimit, len(resp.Results))
		}
	})

	t.Run("status filter narrows results", func(t *testing.T) {
		ts := newTestServer()
		kept := ts.createMemory(t, map[string]any{
			"subject_id": "subj-f",
			"text":       "keeps a reading list",
			"status":     "active",
		})
		ts.createMemory(t, map[string]any{
			"subject_id": "subj-f",
			"text":       "keeps a watch list",
			"status":     "deleted",
		})

		rec := ts.do(t, http.MethodPost, "/api/memories/search", map[string]any{
			"query":      "keeps a list",
			"limit":      10,
			"subject_id": "subj-f",
			"status":     "active,archived",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Results []struct {
				Memory struct {
					ID string `json:"id"`
				} `json:"memory"`
			} `json:"results"`
		}
		decodeBody(t, rec, &resp)

		if len(resp.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp.Results))
		}
		if resp.Results[0].Memory.ID != kept {
			t.Errorf("expected %q, got %q", kept, resp.Results[0].Memory.ID)
		}
	})

	t.Run("limit above the bound is a 400", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodPost, "/api/memories/search", map[string]any{
			"query": "anything",
			"limit": model.MaxSearchLimit + 1,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("empty query is a 400", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodPost, "/api/memories/search", map[string]any{
			"query": "   ",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}

func TestSyncEndpoints(t *testing.T) {
	t.Run("export pushes pending records", func(t *testing.T) {
		ts := newTestServer()
		ts.createMemory(t, map[string]any{"text": "export me"})
		ts.createMemory(t, map[string]any{"text": "export me too"})

		rec := ts.do(t, http.MethodPost, "/api/sync/export", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Pushed     int    `json:"pushed"`
			NextCursor string `json:"next_cursor"`
		}
		decodeBody(t, rec, &resp)

		if resp.Pushed != 2 {
			t.Errorf("expected 2 pushed, got %d", resp.Pushed)
		}
		if resp.NextCursor == "" {
			t.Error("expected next_cursor after a non-empty pass")
		}
	})

	t.Run("export limit caps the page", func(t *testing.T) {
		ts := newTestServer()
		ts.createMemory(t, map[string]any{"text": "page one"})
		ts.createMemory(t, map[string]any{"text": "page two"})

		rec := ts.do(t, http.MethodPost, "/api/sync/export", map[string]any{"limit": 1})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Pushed int `json:"pushed"`
		}
		decodeBody(t, rec, &resp)

		if resp.Pushed != 1 {
			t.Errorf("expected 1 pushed, got %d", resp.Pushed)
		}
	})

	t.Run("import applies warehouse records missing from the index", func(t *testing.T) {
		ts := newTestServer()

		mem := model.NewMemory("subj-http", "arrived through the warehouse")
		result, err := ts.warehouse.BatchPut(context.Background(), []*model.Memory{mem})
		if err != nil || result.Failed != 0 {
			t.Fatalf("failed to seed warehouse: %v (failed=%d)", err, result.Failed)
		}

		rec := ts.do(t, http.MethodPost, "/api/sync/import", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Pulled     int    `json:"pulled"`
			Applied    int    `json:"applied"`
			Conflicts  int    `json:"conflicts"`
			Failed     int    `json:"failed"`
			NextCursor string `json:"next_cursor"`
		}
		decodeBody(t, rec, &resp)

		if resp.Pulled != 1 || resp.Applied != 1 {
			t.Errorf("expected pulled=1 applied=1, got pulled=%d applied=%d", resp.Pulled, resp.Applied)
		}
		if resp.NextCursor == "" {
			t.Error("expected next_cursor after a successful pass")
		}

		get := ts.do(t, http.MethodGet, "/api/memories/"+mem.ID.String(), nil)
		if get.Code != http.StatusOK {
			t.Errorf("expected imported record to be readable, got %d", get.Code)
		}
	})

	t.Run("apply failures report in the counts with 200", func(t *testing.T) {
		vector := &flakyVector{
			VectorIndex: memory.NewVectorIndex(),
			upsertErr:   goerr.New("index down"),
		}
		warehouse := memory.NewWarehouse()
		srv, _ := newServerWith(vector, warehouse)

		mem := model.NewMemory("subj-http", "cannot be applied")
		if _, err := warehouse.BatchPut(context.Background(), []*model.Memory{mem}); err != nil {
			t.Fatalf("failed to seed warehouse: %v", err)
		}

		req := httptest.NewRequest(http.MethodPost, "/api/sync/import", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Pulled     int    `json:"pulled"`
			Applied    int    `json:"applied"`
			Failed     int    `json:"failed"`
			NextCursor string `json:"next_cursor"`
		}
		decodeBody(t, rec, &resp)

		if resp.Pulled != 1 || resp.Applied != 0 || resp.Failed != 1 {
			t.Errorf("expected pulled=1 applied=0 failed=1, got pulled=%d applied=%d failed=%d",
				resp.Pulled, resp.Applied, resp.Failed)
		}
		if resp.NextCursor != "" {
			t.Errorf("expected no next_cursor when the pass must retry, got %q", resp.NextCursor)
		}
	})

	t.Run("status reports both directions", func(t *testing.T) {
		ts := newTestServer()
		ts.createMemory(t, map[string]any{"text": "cursor fodder"})

		if rec := ts.do(t, http.MethodPost, "/api/sync/export", nil); rec.Code != http.StatusOK {
			t.Fatalf("export failed with %d: %s", rec.Code, rec.Body.String())
		}

		rec := ts.do(t, http.MethodGet, "/api/sync/status", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Export struct {
				Cursor        string `json:"cursor"`
				LastSuccessAt string `json:"last_success_at"`
			} `json:"export"`
			Import struct {
				Cursor string `json:"cursor"`
			} `json:"import"`
		}
		decodeBody(t, rec, &resp)

		if resp.Export.Cursor == "" {
			t.Error("expected export cursor after a push")
		}
		if resp.Export.LastSuccessAt == "" {
			t.Error("expected export last_success_at after a push")
		}
		if resp.Import.Cursor != "" {
			t.Errorf("expected no import cursor yet, got %q", resp.Import.Cursor)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy backends give 200", func(t *testing.T) {
		ts := newTestServer()

		rec := ts.do(t, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp struct {
			Status   string            `json:"status"`
			Backends map[string]string `json:"backends"`
		}
		decodeBody(t, rec, &resp)

		if resp.Status != "ok" {
			t.Errorf("expected status ok, got %q", resp.Status)
		}
		if resp.Backends["vector_index"] != "ok" || resp.Backends["warehouse"] != "ok" {
			t.Errorf("expected both backends ok, got %v", resp.Backends)
		}
	})

	t.Run("failing backend degrades to 503", func(t *testing.T) {
		vector := &flakyVector{
			VectorIndex: memory.NewVectorIndex(),
			pingErr:     goerr.New("connection refused"),
		}
		srv, _ := newServerWith(vector, memory.NewWarehouse())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}

		var resp struct {
			Status   string            `json:"status"`
			Backends map[string]string `json:"backends"`
		}
		decodeBody(t, rec, &resp)

		if resp.Status != "degraded" {
			t.Errorf("expected status degraded, got %q", resp.Status)
		}
		if resp.Backends["warehouse"] != "ok" {
			t.Errorf("expected warehouse still ok, got %v", resp.Backends)
		}
		if resp.Backends["vector_index"] == "ok" {
			t.Error("expected vector_index to report its failure")
		}
	})
}
