package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/repository/firestore"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Warehouse holds CLI flags for the analytical store backend. The sync
// offsets live next to the warehouse, so both come from one backend.
type Warehouse struct {
	backend    string
	projectID  string
	databaseID string
}

// Flags returns CLI flags for warehouse configuration
func (x *Warehouse) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "warehouse-backend",
			Usage:       "Warehouse backend type (firestore or memory)",
			Value:       "firestore",
			Sources:     cli.EnvVars("MNEMOSYNE_WAREHOUSE_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
			Destination: &x.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
			Destination: &x.databaseID,
		},
	}
}

// Configure initializes the warehouse and the offset store based on the
// configured backend. The caller is responsible for calling the returned
// closer.
func (x *Warehouse) Configure(ctx context.Context) (interfaces.Warehouse, interfaces.OffsetStore, func() error, error) {
	switch x.backend {
	case "firestore":
		if x.projectID == "" {
			return nil, nil, nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		fs, err := firestore.New(ctx, x.projectID, x.databaseID)
		if err != nil {
			return nil, nil, nil, goerr.Wrap(err, "failed to initialize firestore warehouse")
		}
		logging.Default().Info("Using Firestore warehouse",
			"project_id", x.projectID,
			"database_id", x.databaseID,
		)
		return fs.Warehouse(), fs.Offsets(), fs.Close, nil

	case "memory":
		logging.Default().Info("Using in-memory warehouse (development mode)")
		return memory.NewWarehouse(), memory.NewOffsetStore(), func() error { return nil }, nil

	default:
		return nil, nil, nil, goerr.Wrap(ErrInvalidConfig, "invalid warehouse backend", goerr.V("backend", x.backend))
	}
}
