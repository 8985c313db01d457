package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ interfaces.Warehouse = &Warehouse{}

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 so the collection can also
// serve FindNearest queries for offline analysis.
type memoryDoc struct {
	ID        string             `firestore:"ID"`
	SubjectID string             `firestore:"SubjectID"`
	Text      string             `firestore:"Text"`
	Title     string             `firestore:"Title,omitempty"`
	Type      string             `firestore:"Type"`
	Status    string             `firestore:"Status"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	Metadata  map[string]string  `firestore:"Metadata,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
	UpdatedAt time.Time          `firestore:"UpdatedAt"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:        m.ID.String(),
		SubjectID: m.SubjectID.String(),
		Text:      m.Text,
		Title:     m.Title,
		Type:      m.Type,
		Status:    m.Status.String(),
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:        types.MemoryID(d.ID),
		SubjectID: types.SubjectID(d.SubjectID),
		Text:      d.Text,
		Title:     d.Title,
		Type:      d.Type,
		Status:    types.MemoryStatus(d.Status),
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

// Warehouse persists memories in a flat collection keyed by memory ID.
type Warehouse struct {
	client           *firestore.Client
	collectionPrefix string
}

func newWarehouse(client *firestore.Client) *Warehouse {
	return &Warehouse{client: client}
}

func (r *Warehouse) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_memories"
	}
	return "memories"
}

func (r *Warehouse) memoriesCollection() *firestore.CollectionRef {
	return r.client.Collection(r.collection())
}

// BatchPut upserts the batch through a BulkWriter. Individual write
// failures are counted, not propagated, so one bad record cannot block
// the rest of an export page.
func (r *Warehouse) BatchPut(ctx context.Context, memories []*model.Memory) (*model.BatchResult, error) {
	result := &model.BatchResult{}
	if len(memories) == 0 {
		return result, nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	type pendingWrite struct {
		id  types.MemoryID
		job *firestore.BulkWriterJob
	}

	pending := make([]pendingWrite, 0, len(memories))
	for _, mem := range memories {
		if err := mem.Validate(); err != nil {
			result.Failed++
			if result.FirstErr == nil {
				result.FirstErr = err
			}
			continue
		}

		docRef := r.memoriesCollection().Doc(mem.ID.String())
		job, err := bulkWriter.Set(docRef, toMemoryDoc(mem))
		if err != nil {
			result.Failed++
			if result.FirstErr == nil {
				result.FirstErr = goerr.Wrap(model.ErrWarehouse, "failed to enqueue memory write",
					goerr.V("memoryID", mem.ID), goerr.V("cause", err.Error()))
			}
			continue
		}
		pending = append(pending, pendingWrite{id: mem.ID, job: job})
	}

	bulkWriter.Flush()

	for _, p := range pending {
		if _, err := p.job.Results(); err != nil {
			result.Failed++
			if result.FirstErr == nil {
				result.FirstErr = goerr.Wrap(model.ErrWarehouse, "memory write failed",
					goerr.V("memoryID", p.id), goerr.V("cause", err.Error()))
			}
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

func (r *Warehouse) ReadSince(ctx context.Context, cursor time.Time, limit int) ([]*model.Memory, time.Time, error) {
	iter := r.memoriesCollection().
		Where("UpdatedAt", ">", cursor).
		OrderBy("UpdatedAt", firestore.Asc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0, limit)
	var maxUpdatedAt time.Time
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, time.Time{}, goerr.Wrap(model.ErrWarehouse, "failed to iterate memories",
				goerr.V("cursor", cursor), goerr.V("cause", err.Error()))
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, time.Time{}, goerr.Wrap(model.ErrWarehouse, "failed to unmarshal memory",
				goerr.V("docID", doc.Ref.ID), goerr.V("cause", err.Error()))
		}

		mem := fromMemoryDoc(&d)
		memories = append(memories, mem)
		if mem.UpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = mem.UpdatedAt
		}
	}

	return memories, maxUpdatedAt, nil
}

func (r *Warehouse) Get(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	doc, err := r.memoriesCollection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrMemoryNotFound, "memory not found in warehouse", goerr.V("memoryID", id))
		}
		return nil, goerr.Wrap(model.ErrWarehouse, "failed to get memory",
			goerr.V("memoryID", id), goerr.V("cause", err.Error()))
	}

	var d memoryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(model.ErrWarehouse, "failed to unmarshal memory",
			goerr.V("memoryID", id), goerr.V("cause", err.Error()))
	}

	return fromMemoryDoc(&d), nil
}

// MarkDeleted tombstones the record in a transaction so a concurrent
// import pass cannot resurrect a half-written delete.
func (r *Warehouse) MarkDeleted(ctx context.Context, id types.MemoryID, now time.Time) error {
	docRef := r.memoriesCollection().Doc(id.String())

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(docRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrMemoryNotFound, "memory not found in warehouse", goerr.V("memoryID", id))
			}
			return goerr.Wrap(model.ErrWarehouse, "failed to get memory",
				goerr.V("memoryID", id), goerr.V("cause", err.Error()))
		}

		return tx.Update(docRef, []firestore.Update{
			{Path: "Status", Value: types.StatusDeleted.String()},
			{Path: "UpdatedAt", Value: now.UTC()},
		})
	})
}

// Ping issues a cheap read. A NotFound answer still proves the backend
// is reachable and authorized.
func (r *Warehouse) Ping(ctx context.Context) error {
	_, err := r.memoriesCollection().Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return goerr.Wrap(model.ErrWarehouse, "warehouse ping failed", goerr.V("cause", err.Error()))
	}
	return nil
}
