package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/repository/redis"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// Vector holds CLI flags for the vector index backend
type Vector struct {
	backend  string
	addr     string
	password string
	db       int
}

// Flags returns CLI flags for vector index configuration
func (x *Vector) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vector-backend",
			Usage:       "Vector index backend type (redis or memory)",
			Value:       "redis",
			Sources:     cli.EnvVars("MNEMOSYNE_VECTOR_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (required when using redis backend)",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_ADDR"),
			Destination: &x.addr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_PASSWORD"),
			Destination: &x.password,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_DB"),
			Destination: &x.db,
		},
	}
}

// Configure initializes the vector index based on the configured backend.
// The redis backend creates the search index when it does not exist yet.
// The caller is responsible for calling the returned closer.
func (x *Vector) Configure(ctx context.Context) (interfaces.VectorIndex, func() error, error) {
	switch x.backend {
	case "redis":
		if x.addr == "" {
			return nil, nil, goerr.Wrap(ErrInvalidConfig, "redis-addr is required when using redis backend")
		}
		index, err := redis.New(ctx, x.addr, x.password, x.db)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize redis vector index")
		}
		if err := index.EnsureIndex(ctx); err != nil {
			safe.Close(ctx, index)
			return nil, nil, goerr.Wrap(err, "failed to ensure search index")
		}
		logging.Default().Info("Using Redis vector index",
			"addr", x.addr,
			"db", x.db,
		)
		return index, index.Close, nil

	case "memory":
		logging.Default().Info("Using in-memory vector index (development mode)")
		return memory.NewVectorIndex(), func() error { return nil }, nil

	default:
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "invalid vector backend", goerr.V("backend", x.backend))
	}
}
