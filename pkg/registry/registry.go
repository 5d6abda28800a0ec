// Package registry is the ledger access port: typed get/getAll/add/update
// operations over named record collections, plus an atomic write set that
// commits every write of one transaction or none of them.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stormsure/marketplace/pkg/model"
)

// ErrNotFound is returned when a record is absent from its collection.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when adding a record whose ID is already taken.
var ErrConflict = errors.New("record already exists")

// Op is a write operation kind.
type Op string

const (
	OpAdd    Op = "ADD"
	OpUpdate Op = "UPDATE"
)

// Write is one encoded record write belonging to a write set.
type Write struct {
	Op   Op
	Kind model.Kind
	ID   string
	Data []byte
}

// WriteSet collects the writes of a single transaction. The store applies
// a write set atomically: either every write commits or none do.
type WriteSet struct {
	writes []Write
}

// Add stages a record creation.
func (ws *WriteSet) Add(rec model.Record) error {
	return ws.stage(OpAdd, rec)
}

// Update stages a record replacement.
func (ws *WriteSet) Update(rec model.Record) error {
	return ws.stage(OpUpdate, rec)
}

func (ws *WriteSet) stage(op Op, rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", rec.RecordKind(), rec.RecordID(), err)
	}
	ws.writes = append(ws.writes, Write{Op: op, Kind: rec.RecordKind(), ID: rec.RecordID(), Data: data})
	return nil
}

// Writes returns the staged writes in submission order.
func (ws *WriteSet) Writes() []Write { return ws.writes }

// Len returns the number of staged writes.
func (ws *WriteSet) Len() int { return len(ws.writes) }

// Store is the untyped ledger backend. Records are stored as canonical JSON
// bodies keyed by (kind, id).
type Store interface {
	// Get returns the JSON body of one record, or ErrNotFound.
	Get(ctx context.Context, kind model.Kind, id string) ([]byte, error)
	// List returns the JSON bodies of every record of a kind, ordered by id.
	List(ctx context.Context, kind model.Kind) ([][]byte, error)
	// Apply commits a write set atomically. Adds fail with ErrConflict and
	// updates with ErrNotFound; on any failure no write is committed.
	Apply(ctx context.Context, set *WriteSet) error
}

// Registry is the typed view of one record collection.
type Registry[T model.Record] struct {
	store Store
}

// NewRegistry builds the typed registry for T over a store.
func NewRegistry[T model.Record](store Store) Registry[T] {
	return Registry[T]{store: store}
}

func kindOf[T model.Record]() model.Kind {
	var zero T
	return zero.RecordKind()
}

// Get loads one record by id.
func (r Registry[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	raw, err := r.store.Get(ctx, kindOf[T](), id)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode %s %s: %w", kindOf[T](), id, err)
	}
	return rec, nil
}

// GetAll loads every record of the collection, ordered by id.
func (r Registry[T]) GetAll(ctx context.Context) ([]T, error) {
	raws, err := r.store.List(ctx, kindOf[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kindOf[T](), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Add creates one record as a single-write set.
func (r Registry[T]) Add(ctx context.Context, rec T) error {
	var set WriteSet
	if err := set.Add(rec); err != nil {
		return err
	}
	return r.store.Apply(ctx, &set)
}

// Update replaces one record as a single-write set.
func (r Registry[T]) Update(ctx context.Context, rec T) error {
	var set WriteSet
	if err := set.Update(rec); err != nil {
		return err
	}
	return r.store.Apply(ctx, &set)
}
