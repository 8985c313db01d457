package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ interfaces.OffsetStore = &OffsetStore{}

type offsetDoc struct {
	Direction     string    `firestore:"Direction"`
	Cursor        time.Time `firestore:"Cursor"`
	LastSuccessAt time.Time `firestore:"LastSuccessAt"`
}

func toOffsetDoc(o *model.SyncOffset) *offsetDoc {
	return &offsetDoc{
		Direction:     o.Direction.String(),
		Cursor:        o.Cursor,
		LastSuccessAt: o.LastSuccessAt,
	}
}

func fromOffsetDoc(d *offsetDoc) *model.SyncOffset {
	return &model.SyncOffset{
		Direction:     types.SyncDirection(d.Direction),
		Cursor:        d.Cursor.UTC(),
		LastSuccessAt: d.LastSuccessAt.UTC(),
	}
}

// OffsetStore keeps one document per sync direction. Advancement goes
// through a transaction so two concurrent passes over the same
// direction cannot both win.
type OffsetStore struct {
	client           *firestore.Client
	collectionPrefix string
}

func newOffsetStore(client *firestore.Client) *OffsetStore {
	return &OffsetStore{client: client}
}

func (r *OffsetStore) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_sync_offsets"
	}
	return "sync_offsets"
}

func (r *OffsetStore) offsetDoc(direction types.SyncDirection) *firestore.DocumentRef {
	return r.client.Collection(r.collection()).Doc(direction.String())
}

func (r *OffsetStore) Get(ctx context.Context, direction types.SyncDirection) (*model.SyncOffset, error) {
	doc, err := r.offsetDoc(direction).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return model.NewSyncOffset(direction), nil
		}
		return nil, goerr.Wrap(model.ErrWarehouse, "failed to get sync offset",
			goerr.V("direction", direction), goerr.V("cause", err.Error()))
	}

	var d offsetDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(model.ErrWarehouse, "failed to unmarshal sync offset",
			goerr.V("direction", direction), goerr.V("cause", err.Error()))
	}

	return fromOffsetDoc(&d), nil
}

// CompareAndSet advances the offset only when the stored value still
// equals old. Returns false without error when another pass got there
// first; the caller treats that as a lost race, not a failure.
func (r *OffsetStore) CompareAndSet(ctx context.Context, old, updated *model.SyncOffset) (bool, error) {
	docRef := r.offsetDoc(old.Direction)

	var swapped bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current := model.NewSyncOffset(old.Direction)

		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return goerr.Wrap(model.ErrWarehouse, "failed to get sync offset",
					goerr.V("direction", old.Direction), goerr.V("cause", err.Error()))
			}
		} else {
			var d offsetDoc
			if err := doc.DataTo(&d); err != nil {
				return goerr.Wrap(model.ErrWarehouse, "failed to unmarshal sync offset",
					goerr.V("direction", old.Direction), goerr.V("cause", err.Error()))
			}
			current = fromOffsetDoc(&d)
		}

		if !current.Equal(old) {
			swapped = false
			return nil
		}

		swapped = true
		return tx.Set(docRef, toOffsetDoc(updated))
	})
	if err != nil {
		return false, err
	}

	return swapped, nil
}
