// Package memory is an in-process sheets.Mirror used by tests and by the
// worker when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"rentbook/internal/sheets"
	"rentbook/internal/storage"
)

var _ sheets.Mirror = (*Mirror)(nil)

type Mirror struct {
	mu   sync.Mutex
	tabs map[string][][]any
}

func New() *Mirror {
	return &Mirror{tabs: make(map[string][][]any)}
}

func (m *Mirror) Upsert(_ context.Context, collection, id string, fields storage.Record) error {
	row, err := sheets.RowFor(collection, id, fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.find(collection, id); i >= 0 {
		m.tabs[collection][i] = row
		return nil
	}
	m.tabs[collection] = append(m.tabs[collection], row)
	return nil
}

func (m *Mirror) Remove(_ context.Context, collection, id string) error {
	if _, err := sheets.Columns(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.find(collection, id); i >= 0 {
		rows := m.tabs[collection]
		m.tabs[collection] = append(rows[:i], rows[i+1:]...)
	}
	return nil
}

func (m *Mirror) Replace(_ context.Context, collection string, docs []storage.Document) error {
	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		row, err := sheets.RowFor(collection, d.ID, d.Fields)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	m.mu.Lock()
	m.tabs[collection] = rows
	m.mu.Unlock()
	return nil
}

// Rows returns a copy of a tab's data rows.
func (m *Mirror) Rows(collection string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, len(m.tabs[collection]))
	for i, r := range m.tabs[collection] {
		out[i] = append([]any(nil), r...)
	}
	return out
}

func (m *Mirror) find(collection, id string) int {
	for i, r := range m.tabs[collection] {
		if len(r) > 0 && r[0] == id {
			return i
		}
	}
	return -1
}
