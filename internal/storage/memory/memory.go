package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"rentbook/internal/storage"
)

type collection struct {
	order []string
	docs  map[string]storage.Record
}

// Store is a process-local DocumentStore. Records are copied on the way in and out.
type Store struct {
	mu    sync.Mutex
	colls map[string]*collection
}

var _ storage.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{colls: make(map[string]*collection)}
}

// NewFromFile seeds a store from a JSON object keyed by collection name, each
// holding an array of records. An "id" field, when present, becomes the document ID.
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var seed map[string][]storage.Record
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	for name, records := range seed {
		if err := storage.ValidCollection(name); err != nil {
			return nil, err
		}
		for _, rec := range records {
			id, _ := rec["id"].(string)
			delete(rec, "id")
			if id == "" {
				id = uuid.NewString()
			}
			s.put(name, id, rec)
		}
	}
	return s, nil
}

func (s *Store) coll(name string) *collection {
	c, ok := s.colls[name]
	if !ok {
		c = &collection{docs: make(map[string]storage.Record)}
		s.colls[name] = c
	}
	return c
}

func (s *Store) put(name, id string, rec storage.Record) {
	c := s.coll(name)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = storage.Merge(nil, rec)
}

func (s *Store) List(_ context.Context, name string) ([]storage.Document, error) {
	if err := storage.ValidCollection(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(name)
	docs := make([]storage.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, storage.Document{ID: id, Fields: c.docs[id].Clone()})
	}
	return docs, nil
}

func (s *Store) Add(_ context.Context, name string, fields storage.Record) (string, error) {
	if err := storage.ValidCollection(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.put(name, id, fields)
	return id, nil
}

func (s *Store) Update(_ context.Context, name, id string, fields storage.Record) error {
	if err := storage.ValidCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(name)
	rec, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", name, id, storage.ErrNotFound)
	}
	c.docs[id] = storage.Merge(rec, fields)
	return nil
}

func (s *Store) Delete(_ context.Context, name, id string) error {
	if err := storage.ValidCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(name)
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
