package redis

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

const (
	defaultIndexName = "memory_idx"
	keyPrefix        = "memory:"

	// scoreField is the alias of the KNN distance in search results
	scoreField = "vector_score"
)

// VectorIndex implements interfaces.VectorIndex on a Redis instance with
// the RediSearch module. Records live in hashes under "memory:<id>" and
// are indexed by tag fields (type, status, subject_id), a numeric
// updated_at for incremental scans, and a FLAT FLOAT32 cosine vector.
type VectorIndex struct {
	rdb       *redis.Client
	indexName string
	prefix    string
}

type Option func(*VectorIndex)

// WithKeyNamespace prepends a namespace to every key and renames the
// search index, used by tests to isolate runs on a shared instance.
func WithKeyNamespace(ns string) Option {
	return func(x *VectorIndex) {
		x.indexName = ns + "_" + defaultIndexName
		x.prefix = ns + ":" + keyPrefix
	}
}

// New connects to Redis and validates the connection. Transient failures
// of individual commands are retried by the client itself (MaxRetries
// with exponential backoff), so callers never retry inline.
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*VectorIndex, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, goerr.Wrap(model.ErrVectorIndex, "failed to connect to redis",
			goerr.V("addr", addr), goerr.V("cause", err.Error()))
	}

	x := &VectorIndex{
		rdb:       rdb,
		indexName: defaultIndexName,
		prefix:    keyPrefix,
	}
	for _, opt := range opts {
		opt(x)
	}

	return x, nil
}

// EnsureIndex creates the search index if it does not exist yet
func (x *VectorIndex) EnsureIndex(ctx context.Context) error {
	err := x.rdb.FTCreate(ctx, x.indexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{x.prefix},
		},
		&redis.FieldSchema{FieldName: "type", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: "status", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: "subject_id", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: "updated_at", FieldType: redis.SearchFieldTypeNumeric, Sortable: true},
		&redis.FieldSchema{
			FieldName: "embedding",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				FlatOptions: &redis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            model.EmbeddingDimension,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil {
		if strings.Contains(err.Error(), "Index already exists") {
			logging.From(ctx).Debug("search index already exists", "index", x.indexName)
			return nil
		}
		return goerr.Wrap(model.ErrVectorIndex, "failed to create search index",
			goerr.V("index", x.indexName), goerr.V("cause", err.Error()))
	}

	logging.From(ctx).Info("created search index", "index", x.indexName)
	return nil
}

// Ping reports backend reachability
func (x *VectorIndex) Ping(ctx context.Context) error {
	if err := x.rdb.Ping(ctx).Err(); err != nil {
		return goerr.Wrap(model.ErrVectorIndex, "redis ping failed", goerr.V("cause", err.Error()))
	}
	return nil
}

// Close releases the underlying connection pool
func (x *VectorIndex) Close() error {
	return x.rdb.Close()
}
