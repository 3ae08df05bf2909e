// Package sheets mirrors the record collections into a spreadsheet, one tab
// per collection with the record ID in the first column.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentbook/internal/storage"
)

// Mirror is an outbound copy of the document store.
type Mirror interface {
	// Upsert writes the row for id, replacing an existing one.
	Upsert(ctx context.Context, collection, id string, fields storage.Record) error
	// Remove clears the row for id. A missing row is not an error.
	Remove(ctx context.Context, collection, id string) error
	// Replace overwrites a whole tab with docs.
	Replace(ctx context.Context, collection string, docs []storage.Document) error
}

// ColumnID heads the first column of every tab.
const ColumnID = "id"

var columns = map[string][]string{
	storage.CollectionTenants: {
		ColumnID, storage.FieldName, storage.FieldProperty, storage.FieldRent,
		storage.FieldStartDate, storage.FieldDeposit,
	},
	storage.CollectionPayments: {
		ColumnID, storage.FieldTenantID, storage.FieldDate, storage.FieldAmount,
	},
	storage.CollectionExpenses: {
		ColumnID, storage.FieldDescription, storage.FieldAmount, storage.FieldDate,
	},
}

var titles = map[string]string{
	storage.CollectionTenants:  "Tenants",
	storage.CollectionPayments: "Payments",
	storage.CollectionExpenses: "Expenses",
}

// Collections lists the mirrored collections in display order.
func Collections() []string {
	return []string{storage.CollectionTenants, storage.CollectionPayments, storage.CollectionExpenses}
}

// Columns returns the header row for a collection.
func Columns(collection string) ([]string, error) {
	cols, ok := columns[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownCollection, collection)
	}
	return append([]string(nil), cols...), nil
}

// Title returns the tab name for a collection.
func Title(collection string) (string, error) {
	t, ok := titles[collection]
	if !ok {
		return "", fmt.Errorf("%w: %q", storage.ErrUnknownCollection, collection)
	}
	return t, nil
}

// RowFor lays out fields in the collection's column order. Missing fields
// become empty cells.
func RowFor(collection, id string, fields storage.Record) ([]any, error) {
	cols, err := Columns(collection)
	if err != nil {
		return nil, err
	}
	row := make([]any, len(cols))
	row[0] = id
	for i, col := range cols[1:] {
		row[i+1] = cell(fields[col])
	}
	return row, nil
}

// Header returns the header row as spreadsheet values.
func Header(collection string) ([]any, error) {
	cols, err := Columns(collection)
	if err != nil {
		return nil, err
	}
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row, nil
}

// LastColumn returns the column letter of the final column, e.g. "F".
func LastColumn(collection string) (string, error) {
	cols, err := Columns(collection)
	if err != nil {
		return "", err
	}
	return string(rune('A' + len(cols) - 1)), nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case time.Time:
		return x.Format("2006-01-02")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
