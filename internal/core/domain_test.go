package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != NewDate(2024, 2, 29) {
		t.Fatalf("got %v", d)
	}

	d, err = ParseDate("2024-03-05T18:30:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-03-05" {
		t.Fatalf("timestamp should truncate to day, got %s", d)
	}

	for _, bad := range []string{"", "2024-13-01", "05/03/2024"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q) expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestTenantValidate(t *testing.T) {
	good := Tenant{
		Name:      "Alice",
		Property:  "Unit 4B",
		Rent:      Money{Cents: 100000},
		StartDate: NewDate(2024, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name  string
		edit  func(*Tenant)
		field string
	}{
		{"blank name", func(t *Tenant) { t.Name = "  " }, "name"},
		{"blank property", func(t *Tenant) { t.Property = "" }, "property"},
		{"zero rent", func(t *Tenant) { t.Rent = Money{} }, "rent"},
		{"negative rent", func(t *Tenant) { t.Rent = Money{Cents: -1} }, "rent"},
		{"missing start", func(t *Tenant) { t.StartDate = Date{} }, "start_date"},
		{"negative deposit", func(t *Tenant) { t.Deposit = Money{Cents: -5} }, "deposit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := good
			tt.edit(&tenant)
			err := tenant.Validate()
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %q, want %q", fe.Field, tt.field)
			}
			if !IsValidation(err) {
				t.Errorf("IsValidation should report true")
			}
		})
	}
}

func TestPaymentValidate(t *testing.T) {
	good := Payment{TenantID: "t1", Date: NewDate(2024, 1, 15), Amount: Money{Cents: 1}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Payment{
		{TenantID: "", Date: NewDate(2024, 1, 15), Amount: Money{Cents: 1}},
		{TenantID: "t1", Amount: Money{Cents: 1}},
		{TenantID: "t1", Date: NewDate(2024, 1, 15), Amount: Money{Cents: 0}},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{Description: "Plumber", Amount: Money{Cents: 25000}, Date: NewDate(2024, 3, 2)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, MaxDescriptionLength+1)
	for i := range long {
		long[i] = 'x'
	}
	bads := []Expense{
		{Description: "", Amount: Money{Cents: 1}, Date: NewDate(2024, 1, 1)},
		{Description: string(long), Amount: Money{Cents: 1}, Date: NewDate(2024, 1, 1)},
		{Description: "a", Amount: Money{Cents: 0}, Date: NewDate(2024, 1, 1)},
		{Description: "a", Amount: Money{Cents: 1}},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTenantMatchesName(t *testing.T) {
	tenant := Tenant{Name: "Alice Johnson"}
	cases := map[string]bool{
		"":        true,
		"alice":   true,
		"JOHN":    true,
		" son ":   true,
		"bob":     false,
		"alicej":  false,
	}
	for q, want := range cases {
		if got := tenant.MatchesName(q); got != want {
			t.Errorf("MatchesName(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestSortPaymentsNewestFirst(t *testing.T) {
	ps := []Payment{
		{ID: "b", Date: NewDate(2024, 1, 10)},
		{ID: "c", Date: NewDate(2024, 3, 1)},
		{ID: "a", Date: NewDate(2024, 1, 10)},
	}
	SortPaymentsNewestFirst(ps)
	got := []string{ps[0].ID, ps[1].ID, ps[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
