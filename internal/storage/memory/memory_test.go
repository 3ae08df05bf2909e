package memory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rentbook/internal/storage"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Add(ctx, storage.CollectionExpenses, storage.Record{"description": "Paint"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	docs, _ := s.List(ctx, storage.CollectionExpenses)
	if len(docs) != 1 || docs[0].ID != id {
		t.Fatalf("unexpected docs %+v", docs)
	}

	// Mutating a listed record must not leak into the store
	docs[0].Fields["description"] = "changed"
	docs, _ = s.List(ctx, storage.CollectionExpenses)
	if docs[0].Fields["description"] != "Paint" {
		t.Fatalf("store exposed internal record")
	}

	if err := s.Update(ctx, storage.CollectionExpenses, id, storage.Record{"amount": json.Number("5.00")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	docs, _ = s.List(ctx, storage.CollectionExpenses)
	if docs[0].Fields["description"] != "Paint" || docs[0].Fields["amount"] != json.Number("5.00") {
		t.Fatalf("update did not merge: %+v", docs[0].Fields)
	}

	if err := s.Update(ctx, storage.CollectionExpenses, "missing", storage.Record{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(ctx, storage.CollectionExpenses, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, storage.CollectionExpenses, id); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	docs, _ = s.List(ctx, storage.CollectionExpenses)
	if len(docs) != 0 {
		t.Fatalf("expected empty, got %d", len(docs))
	}
}

func TestStoreKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	var ids []string
	for i := 0; i < 5; i++ {
		id, _ := s.Add(ctx, storage.CollectionTenants, storage.Record{"n": i})
		ids = append(ids, id)
	}
	_ = s.Delete(ctx, storage.CollectionTenants, ids[2])

	docs, _ := s.List(ctx, storage.CollectionTenants)
	want := []string{ids[0], ids[1], ids[3], ids[4]}
	for i, d := range docs {
		if d.ID != want[i] {
			t.Fatalf("order mismatch at %d", i)
		}
	}
}

func TestStoreRejectsUnknownCollection(t *testing.T) {
	if _, err := New().List(context.Background(), "leases"); !errors.Is(err, storage.ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	seed := `{
		"tenants": [{"id": "t1", "name": "Alice", "rent": 1000, "start_date": "2024-01-01"}],
		"payments": [{"tenant_id": "t1", "date": "2024-01-15", "amount": 1000.50}]
	}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	tenants, _ := s.List(context.Background(), storage.CollectionTenants)
	if len(tenants) != 1 || tenants[0].ID != "t1" {
		t.Fatalf("unexpected tenants %+v", tenants)
	}
	if _, ok := tenants[0].Fields["id"]; ok {
		t.Fatalf("id should not be kept as a field")
	}

	payments, _ := s.List(context.Background(), storage.CollectionPayments)
	p, err := storage.DecodePayment(payments[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Amount.Cents != 100050 {
		t.Fatalf("amount = %d", p.Amount.Cents)
	}

	empty, err := NewFromFile(filepath.Join(dir, "absent.json"))
	if err != nil || empty == nil {
		t.Fatalf("missing seed file should give empty store, got %v", err)
	}
}
