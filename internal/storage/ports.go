package storage

import (
	"context"
	"errors"
	"fmt"
)

// Collections held by a DocumentStore.
const (
	CollectionTenants  = "tenants"
	CollectionPayments = "payments"
	CollectionExpenses = "expenses"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Record is the untyped field map persisted for one document.
type Record map[string]any

// Document is a stored record together with its store-assigned ID.
type Document struct {
	ID     string
	Fields Record

	// Err is set when the store holds the document but could not read its
	// payload. Decoders reject such documents.
	Err error
}

// DocumentStore is a collection-oriented record store. IDs are assigned by the
// store on Add. Update merges the given fields into the existing record; a nil
// value removes the field. Delete of a missing ID is not an error.
type DocumentStore interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Add(ctx context.Context, collection string, fields Record) (string, error)
	Update(ctx context.Context, collection, id string, fields Record) error
	Delete(ctx context.Context, collection, id string) error
}

// ValidCollection reports whether name is one of the known collections.
func ValidCollection(name string) error {
	switch name {
	case CollectionTenants, CollectionPayments, CollectionExpenses:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// Merge applies patch onto base in place; nil values delete keys.
func Merge(base, patch Record) Record {
	if base == nil {
		base = make(Record, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return base
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
