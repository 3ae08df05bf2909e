// Package http provides the HTTP server and handler implementations.
//
// This file holds the helpers that turn request data into typed domain
// values. Parse failures are reported as *core.FieldError so handlers treat
// them exactly like domain validation failures.

package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"rentbook/internal/core"
	"rentbook/internal/report"
)

// FormParser reads typed fields from a parsed form and remembers the first failure.
type FormParser struct {
	form url.Values
	err  error
}

// NewFormParser parses r's form. A malformed body is reported by Err.
func NewFormParser(r *http.Request) *FormParser {
	p := &FormParser{}
	if err := r.ParseForm(); err != nil {
		p.err = &core.FieldError{Field: "form", Err: err}
		p.form = url.Values{}
		return p
	}
	p.form = r.PostForm
	return p
}

func (p *FormParser) fail(field string, err error) {
	if p.err == nil {
		p.err = &core.FieldError{Field: field, Err: err}
	}
}

// String returns the sanitized value of key.
func (p *FormParser) String(key string) string {
	return sanitizeInput(p.form.Get(key))
}

// Strings returns every sanitized, non-empty value of key.
func (p *FormParser) Strings(key string) []string {
	var out []string
	for _, v := range p.form[key] {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Amount parses a strictly positive amount.
func (p *FormParser) Amount(key string) core.Money {
	m, err := core.ParseAmount(p.form.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return m
}

// OptionalAmount parses an amount that may be blank.
func (p *FormParser) OptionalAmount(key string) core.Money {
	m, err := core.ParseOptionalAmount(p.form.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return m
}

// Date parses a YYYY-MM-DD field.
func (p *FormParser) Date(key string) core.Date {
	d, err := core.ParseDate(p.form.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return d
}

// Err returns the first parse failure, or nil.
func (p *FormParser) Err() error {
	return p.err
}

// MonthParam reads a YYYY-MM query value, falling back to def when missing or invalid.
func MonthParam(query url.Values, key string, def core.YearMonth) core.YearMonth {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def
	}
	ym, err := core.ParseYearMonth(v)
	if err != nil {
		return def
	}
	return ym
}

// RangeParams reads the dashboard from/to dates. Missing or invalid bounds
// fall back to the default trailing year ending today.
func RangeParams(query url.Values, today core.Date) report.Range {
	r := report.DefaultRange(today)
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		if d, err := core.ParseDate(v); err == nil {
			r.From = d
		}
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		if d, err := core.ParseDate(v); err == nil {
			r.To = d
		}
	}
	return r
}

// sanitizeInput removes control characters except tab, newline and carriage return, then trims.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func dateInput(d core.Date) string {
	return d.String()
}

func today(now func() time.Time) core.Date {
	return core.DateOf(now())
}
