package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Tenant is a lease holder. Rent accrues once per calendar month
	// beginning with the month of StartDate.
	Tenant struct {
		ID        string
		Name      string
		Property  string
		Rent      Money
		StartDate Date
		Deposit   Money // zero when no deposit was taken
	}

	Payment struct {
		ID       string
		TenantID string
		Date     Date
		Amount   Money
	}

	Expense struct {
		ID          string
		Description string
		Amount      Money
		Date        Date
	}
)

const (
	DateLayout           = "2006-01-02"
	MaxDescriptionLength = 200
	MaxNameLength        = 120
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrEmptyName        = errors.New("name is required")
	ErrEmptyProperty    = errors.New("property is required")
	ErrEmptyTenant      = errors.New("tenant is required")
	ErrEmptyDescription = errors.New("description is required")
	ErrTooLong          = errors.New("value too long")
)

// FieldError reports which input field failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was produced by a Validate method.
func IsValidation(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

func fieldErr(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// YearMonth returns the calendar month containing d.
func (d Date) YearMonth() YearMonth {
	return YearMonthOf(d.Time)
}

// AddDate mirrors time.Time.AddDate and keeps the result a calendar day.
func (d Date) AddDate(years, months, days int) Date {
	return DateOf(d.Time.AddDate(years, months, days))
}

func (t Tenant) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return fieldErr("name", ErrEmptyName)
	}
	if len(name) > MaxNameLength {
		return fieldErr("name", ErrTooLong)
	}
	if strings.TrimSpace(t.Property) == "" {
		return fieldErr("property", ErrEmptyProperty)
	}
	if err := t.Rent.Validate(); err != nil {
		return fieldErr("rent", err)
	}
	if err := t.StartDate.Validate(); err != nil {
		return fieldErr("start_date", err)
	}
	if t.Deposit.IsNegative() {
		return fieldErr("deposit", ErrNegativeAmount)
	}
	return nil
}

// MatchesName reports whether the tenant name contains query, ignoring case.
// An empty query matches every tenant.
func (t Tenant) MatchesName(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Name), strings.ToLower(query))
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.TenantID) == "" {
		return fieldErr("tenant_id", ErrEmptyTenant)
	}
	if err := p.Date.Validate(); err != nil {
		return fieldErr("date", err)
	}
	if err := p.Amount.Validate(); err != nil {
		return fieldErr("amount", err)
	}
	return nil
}

func (e Expense) Validate() error {
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		return fieldErr("description", ErrEmptyDescription)
	}
	if len(desc) > MaxDescriptionLength {
		return fieldErr("description", ErrTooLong)
	}
	if err := e.Amount.Validate(); err != nil {
		return fieldErr("amount", err)
	}
	if err := e.Date.Validate(); err != nil {
		return fieldErr("date", err)
	}
	return nil
}

// SortPaymentsNewestFirst orders payments by date descending; ties fall back to ID.
func SortPaymentsNewestFirst(ps []Payment) {
	slices.SortStableFunc(ps, func(a, b Payment) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// SortExpensesNewestFirst orders expenses by date descending; ties fall back to ID.
func SortExpensesNewestFirst(es []Expense) {
	slices.SortStableFunc(es, func(a, b Expense) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func SortTenantsByName(ts []Tenant) {
	slices.SortStableFunc(ts, func(a, b Tenant) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}
