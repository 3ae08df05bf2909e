package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentbook/internal/core"
)

// Field names as persisted in each collection.
const (
	FieldName      = "name"
	FieldProperty  = "property"
	FieldRent      = "rent"
	FieldStartDate = "start_date"
	FieldDeposit   = "deposit"

	FieldTenantID = "tenant_id"
	FieldDate     = "date"
	FieldAmount   = "amount"

	FieldDescription = "description"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrFieldType    = errors.New("unexpected field type")
	ErrUnreadable   = errors.New("unreadable document")
)

// DecodeError describes a stored document that does not map onto a domain record.
type DecodeError struct {
	Collection string
	ID         string
	Field      string
	Err        error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s/%s: %v", e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("decode %s/%s field %q: %v", e.Collection, e.ID, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func amountValue(m core.Money) json.Number {
	return json.Number(m.String())
}

func EncodeTenant(t core.Tenant) Record {
	r := Record{
		FieldName:      strings.TrimSpace(t.Name),
		FieldProperty:  strings.TrimSpace(t.Property),
		FieldRent:      amountValue(t.Rent),
		FieldStartDate: t.StartDate.String(),
	}
	if !t.Deposit.IsZero() {
		r[FieldDeposit] = amountValue(t.Deposit)
	}
	return r
}

// TenantPatch is EncodeTenant for Update: a zero deposit clears the stored field.
func TenantPatch(t core.Tenant) Record {
	r := EncodeTenant(t)
	if t.Deposit.IsZero() {
		r[FieldDeposit] = nil
	}
	return r
}

func EncodePayment(p core.Payment) Record {
	return Record{
		FieldTenantID: p.TenantID,
		FieldDate:     p.Date.String(),
		FieldAmount:   amountValue(p.Amount),
	}
}

func EncodeExpense(e core.Expense) Record {
	return Record{
		FieldDescription: strings.TrimSpace(e.Description),
		FieldAmount:      amountValue(e.Amount),
		FieldDate:        e.Date.String(),
	}
}

type decoder struct {
	collection string
	doc        Document
	err        error
}

func newDecoder(collection string, doc Document) *decoder {
	d := &decoder{collection: collection, doc: doc}
	if doc.Err != nil {
		d.err = &DecodeError{Collection: collection, ID: doc.ID, Err: doc.Err}
	}
	return d
}

func (d *decoder) fail(field string, err error) {
	if d.err == nil {
		d.err = &DecodeError{Collection: d.collection, ID: d.doc.ID, Field: field, Err: err}
	}
}

func (d *decoder) str(field string, required bool) string {
	v, ok := d.doc.Fields[field]
	if !ok || v == nil {
		if required {
			d.fail(field, ErrMissingField)
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, fmt.Errorf("%w: %T", ErrFieldType, v))
		return ""
	}
	if required && strings.TrimSpace(s) == "" {
		d.fail(field, ErrMissingField)
	}
	return s
}

func (d *decoder) money(field string, required bool) core.Money {
	v, ok := d.doc.Fields[field]
	if !ok || v == nil {
		if required {
			d.fail(field, ErrMissingField)
		}
		return core.Money{}
	}
	dec, err := toDecimal(v)
	if err != nil {
		d.fail(field, err)
		return core.Money{}
	}
	return core.MoneyFromDecimal(dec)
}

func (d *decoder) date(field string) core.Date {
	v, ok := d.doc.Fields[field]
	if !ok || v == nil {
		d.fail(field, ErrMissingField)
		return core.Date{}
	}
	switch x := v.(type) {
	case time.Time:
		return core.DateOf(x)
	case string:
		date, err := core.ParseDate(x)
		if err != nil {
			d.fail(field, err)
		}
		return date
	}
	d.fail(field, fmt.Errorf("%w: %T", ErrFieldType, v))
	return core.Date{}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case decimal.Decimal:
		return x, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %T", ErrFieldType, v)
}

func DecodeTenant(doc Document) (core.Tenant, error) {
	d := newDecoder(CollectionTenants, doc)
	t := core.Tenant{
		ID:        doc.ID,
		Name:      d.str(FieldName, true),
		Property:  d.str(FieldProperty, false),
		Rent:      d.money(FieldRent, true),
		StartDate: d.date(FieldStartDate),
		Deposit:   d.money(FieldDeposit, false),
	}
	return t, d.err
}

func DecodePayment(doc Document) (core.Payment, error) {
	d := newDecoder(CollectionPayments, doc)
	p := core.Payment{
		ID:       doc.ID,
		TenantID: d.str(FieldTenantID, true),
		Date:     d.date(FieldDate),
		Amount:   d.money(FieldAmount, true),
	}
	return p, d.err
}

func DecodeExpense(doc Document) (core.Expense, error) {
	d := newDecoder(CollectionExpenses, doc)
	e := core.Expense{
		ID:          doc.ID,
		Description: d.str(FieldDescription, false),
		Amount:      d.money(FieldAmount, true),
		Date:        d.date(FieldDate),
	}
	return e, d.err
}

// DecodeAll decodes every document, collecting the ones that fail.
func DecodeAll[T any](docs []Document, decode func(Document) (T, error)) ([]T, []error) {
	items := make([]T, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		item, err := decode(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}
	return items, errs
}
