package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// Firestore bundles the durable side of the sync engine: the memory
// warehouse (system of record) and the sync offset store.
type Firestore struct {
	client    *firestore.Client
	warehouse *Warehouse
	offsets   *OffsetStore
}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, used by tests to
// isolate runs against a shared emulator or project.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.warehouse.collectionPrefix = prefix
		f.offsets.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:    client,
		warehouse: newWarehouse(client),
		offsets:   newOffsetStore(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Warehouse() interfaces.Warehouse {
	return f.warehouse
}

func (f *Firestore) Offsets() interfaces.OffsetStore {
	return f.offsets
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
