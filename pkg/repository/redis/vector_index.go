package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

var _ interfaces.VectorIndex = &VectorIndex{}

// normalizeID tolerates IDs passed with the storage key prefix, so
// "memory:<uuid>" and "<uuid>" address the same record.
func normalizeID(id types.MemoryID) types.MemoryID {
	return types.MemoryID(strings.TrimPrefix(id.String(), keyPrefix))
}

func (x *VectorIndex) memoryKey(id types.MemoryID) string {
	return x.prefix + normalizeID(id).String()
}

func (x *VectorIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	if err := mem.Validate(); err != nil {
		return err
	}

	fields, err := memoryToFields(mem)
	if err != nil {
		return err
	}

	// Full replace: a plain HSET would keep stale fields such as a
	// removed metadata bag. DEL+HSET inside MULTI/EXEC keeps the
	// overwrite atomic per key.
	key := x.memoryKey(mem.ID)
	_, err = x.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return goerr.Wrap(model.ErrVectorIndex, "failed to upsert memory",
			goerr.V("memoryID", mem.ID), goerr.V("cause", err.Error()))
	}

	return nil
}

func (x *VectorIndex) Get(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	fields, err := x.rdb.HGetAll(ctx, x.memoryKey(id)).Result()
	if err != nil {
		return nil, goerr.Wrap(model.ErrVectorIndex, "failed to get memory",
			goerr.V("memoryID", id), goerr.V("cause", err.Error()))
	}
	if len(fields) == 0 {
		return nil, goerr.Wrap(model.ErrMemoryNotFound, "memory not found in vector index", goerr.V("memoryID", id))
	}

	return fieldsToMemory(fields)
}

func (x *VectorIndex) Delete(ctx context.Context, id types.MemoryID) error {
	deleted, err := x.rdb.Del(ctx, x.memoryKey(id)).Result()
	if err != nil {
		return goerr.Wrap(model.ErrVectorIndex, "failed to delete memory",
			goerr.V("memoryID", id), goerr.V("cause", err.Error()))
	}
	if deleted == 0 {
		return goerr.Wrap(model.ErrMemoryNotFound, "memory not found in vector index", goerr.V("memoryID", id))
	}

	return nil
}

func (x *VectorIndex) Search(ctx context.Context, embedding []float32, limit int, filter *model.SearchFilter) ([]*model.ScoredMemory, error) {
	query := fmt.Sprintf("%s=>[KNN %d @embedding $vec AS %s]", buildFilterExpr(filter), limit, scoreField)

	res, err := x.rdb.FTSearchWithArgs(ctx, x.indexName, query, &redis.FTSearchOptions{
		Params:         map[string]any{"vec": encodeVector(embedding)},
		SortBy:         []redis.FTSearchSortBy{{FieldName: scoreField, Asc: true}},
		LimitOffset:    0,
		Limit:          limit,
		DialectVersion: 2,
	}).Result()
	if err != nil {
		return nil, goerr.Wrap(model.ErrVectorIndex, "vector search failed",
			goerr.V("query", query), goerr.V("cause", err.Error()))
	}

	hits := make([]*model.ScoredMemory, 0, len(res.Docs))
	for _, doc := range res.Docs {
		mem, err := fieldsToMemory(doc.Fields)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode search hit", goerr.V("key", doc.ID))
		}

		distance, err := strconv.ParseFloat(doc.Fields[scoreField], 64)
		if err != nil {
			return nil, goerr.Wrap(model.ErrVectorIndex, "search hit has no distance",
				goerr.V("key", doc.ID), goerr.V("cause", err.Error()))
		}

		hits = append(hits, &model.ScoredMemory{
			Memory: mem,
			// RediSearch reports cosine distance; similarity = 1 - distance
			Score: 1 - distance,
		})
	}

	model.SortScoredMemories(hits)
	return hits, nil
}

func (x *VectorIndex) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error) {
	query := fmt.Sprintf("@updated_at:[(%d +inf]", since.UTC().UnixMicro())

	res, err := x.rdb.FTSearchWithArgs(ctx, x.indexName, query, &redis.FTSearchOptions{
		SortBy:         []redis.FTSearchSortBy{{FieldName: "updated_at", Asc: true}},
		LimitOffset:    0,
		Limit:          limit,
		DialectVersion: 2,
	}).Result()
	if err != nil {
		return nil, goerr.Wrap(model.ErrVectorIndex, "incremental scan failed",
			goerr.V("since", since), goerr.V("cause", err.Error()))
	}

	memories := make([]*model.Memory, 0, len(res.Docs))
	for _, doc := range res.Docs {
		mem, err := fieldsToMemory(doc.Fields)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode scanned record", goerr.V("key", doc.ID))
		}
		memories = append(memories, mem)
	}

	return memories, nil
}

// buildFilterExpr composes the RediSearch filter: provided fields AND
// together, the status set ORs within one tag clause.
func buildFilterExpr(filter *model.SearchFilter) string {
	if filter.IsZero() {
		return "*"
	}

	var clauses []string
	if filter.Type != "" {
		clauses = append(clauses, "@type:{"+escapeTag(filter.Type)+"}")
	}
	if filter.SubjectID != "" {
		clauses = append(clauses, "@subject_id:{"+escapeTag(filter.SubjectID.String())+"}")
	}
	if len(filter.Statuses) > 0 {
		elems := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			elems[i] = escapeTag(s.String())
		}
		clauses = append(clauses, "@status:{"+strings.Join(elems, "|")+"}")
	}

	return "(" + strings.Join(clauses, " ") + ")"
}

// escapeTag escapes the punctuation RediSearch treats as syntax inside
// tag queries. Tag values are free-form strings (subject IDs, custom
// statuses), so everything outside [A-Za-z0-9_] is escaped.
func escapeTag(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func memoryToFields(mem *model.Memory) (map[string]any, error) {
	fields := map[string]any{
		"id":         normalizeID(mem.ID).String(),
		"subject_id": mem.SubjectID.String(),
		"text":       mem.Text,
		"title":      mem.Title,
		"type":       mem.Type,
		"status":     mem.Status.String(),
		"created_at": strconv.FormatInt(mem.CreatedAt.UnixMicro(), 10),
		"updated_at": strconv.FormatInt(mem.UpdatedAt.UnixMicro(), 10),
	}

	if len(mem.Embedding) > 0 {
		fields["embedding"] = encodeVector(mem.Embedding)
	}

	if len(mem.Metadata) > 0 {
		raw, err := json.Marshal(mem.Metadata)
		if err != nil {
			return nil, goerr.Wrap(model.ErrVectorIndex, "failed to marshal metadata",
				goerr.V("memoryID", mem.ID), goerr.V("cause", err.Error()))
		}
		fields["metadata"] = string(raw)
	}

	return fields, nil
}

func fieldsToMemory(fields map[string]string) (*model.Memory, error) {
	mem := &model.Memory{
		ID:        types.MemoryID(fields["id"]),
		SubjectID: types.SubjectID(fields["subject_id"]),
		Text:      fields["text"],
		Title:     fields["title"],
		Type:      fields["type"],
		Status:    types.MemoryStatus(fields["status"]),
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, goerr.Wrap(model.ErrVectorIndex, "invalid created_at field",
			goerr.V("memoryID", mem.ID), goerr.V("value", fields["created_at"]))
	}
	mem.CreatedAt = time.UnixMicro(createdAt).UTC()

	updatedAt, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, goerr.Wrap(model.ErrVectorIndex, "invalid updated_at field",
			goerr.V("memoryID", mem.ID), goerr.V("value", fields["updated_at"]))
	}
	mem.UpdatedAt = time.UnixMicro(updatedAt).UTC()

	if raw, ok := fields["embedding"]; ok && raw != "" {
		vec, err := decodeVector([]byte(raw))
		if err != nil {
			return nil, err
		}
		mem.Embedding = vec
	}

	if raw, ok := fields["metadata"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &mem.Metadata); err != nil {
			return nil, goerr.Wrap(model.ErrVectorIndex, "failed to unmarshal metadata",
				goerr.V("memoryID", mem.ID), goerr.V("cause", err.Error()))
		}
	}

	return mem, nil
}
