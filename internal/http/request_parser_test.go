package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"rentbook/internal/core"
)

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestFormParser(t *testing.T) {
	p := NewFormParser(postForm(url.Values{
		"name":    {"  Jane\x00 Doe "},
		"rent":    {"1,500.00"},
		"deposit": {""},
		"start":   {"2024-01-15"},
		"ids":     {"a", " ", "b"},
	}))

	if got := p.String("name"); got != "Jane Doe" {
		t.Errorf("String = %q, want %q", got, "Jane Doe")
	}
	if got := p.Amount("rent"); got.Cents != 150000 {
		t.Errorf("Amount = %d, want 150000", got.Cents)
	}
	if got := p.OptionalAmount("deposit"); !got.IsZero() {
		t.Errorf("OptionalAmount = %d, want 0", got.Cents)
	}
	if got := p.Date("start"); !got.Equal(core.NewDate(2024, 1, 15).Time) {
		t.Errorf("Date = %v", got)
	}
	if got := p.Strings("ids"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Strings = %v", got)
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err = %v", err)
	}
}

func TestFormParserKeepsFirstError(t *testing.T) {
	p := NewFormParser(postForm(url.Values{"amount": {"0"}, "date": {"yesterday"}}))

	p.Amount("amount")
	p.Date("date")

	var fe *core.FieldError
	if !errors.As(p.Err(), &fe) {
		t.Fatalf("Err = %v, want *core.FieldError", p.Err())
	}
	if fe.Field != "amount" {
		t.Errorf("Field = %q, want amount", fe.Field)
	}
	if !errors.Is(p.Err(), core.ErrInvalidAmount) {
		t.Errorf("Err = %v, want ErrInvalidAmount", p.Err())
	}
}

func TestMonthParam(t *testing.T) {
	def := core.NewYearMonth(2024, time.May)
	tests := []struct {
		name  string
		query url.Values
		want  core.YearMonth
	}{
		{"valid", url.Values{"month": {"2023-11"}}, core.NewYearMonth(2023, time.November)},
		{"missing", url.Values{}, def},
		{"invalid", url.Values{"month": {"november"}}, def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthParam(tt.query, "month", def); got != tt.want {
				t.Errorf("MonthParam = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRangeParams(t *testing.T) {
	today := core.NewDate(2024, 6, 30)

	r := RangeParams(url.Values{}, today)
	if !r.From.Equal(core.NewDate(2023, 6, 30).Time) || !r.To.Equal(today.Time) {
		t.Errorf("default range = %v..%v", r.From, r.To)
	}

	r = RangeParams(url.Values{"from": {"2024-01-01"}, "to": {"bad"}}, today)
	if !r.From.Equal(core.NewDate(2024, 1, 1).Time) || !r.To.Equal(today.Time) {
		t.Errorf("partial range = %v..%v", r.From, r.To)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  plain  ":       "plain",
		"tab\tkept":       "tab\tkept",
		"bell\x07removed": "bellremoved",
		"":                "",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsHTMX(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTMX(req) {
		t.Error("plain request reported as htmx")
	}
	req.Header.Set("HX-Request", "true")
	if !isHTMX(req) {
		t.Error("htmx request not detected")
	}
}
