package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const YearMonthLayout = "2006-01"

var ErrInvalidMonth = errors.New("invalid month")

// YearMonth identifies a calendar month. Rent accrues and is reported per YearMonth.
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth normalizes out-of-range months, so NewYearMonth(2024, 13) is 2025-01.
func NewYearMonth(year int, month time.Month) YearMonth {
	return fromIndex(year*12 + int(month) - 1)
}

func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth accepts YYYY-MM or a full YYYY-MM-DD date.
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(YearMonthLayout, s); err == nil {
		return YearMonthOf(t), nil
	}
	if d, err := ParseDate(s); err == nil {
		return d.YearMonth(), nil
	}
	return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

func fromIndex(idx int) YearMonth {
	year := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		year--
	}
	return YearMonth{Year: year, Month: time.Month(m + 1)}
}

// Index returns a monotonically increasing month number: year*12 + month-1.
func (ym YearMonth) Index() int {
	return ym.Year*12 + int(ym.Month) - 1
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

func (ym YearMonth) Compare(o YearMonth) int {
	a, b := ym.Index(), o.Index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (ym YearMonth) Before(o YearMonth) bool { return ym.Index() < o.Index() }
func (ym YearMonth) After(o YearMonth) bool  { return ym.Index() > o.Index() }

func (ym YearMonth) AddMonths(n int) YearMonth {
	return fromIndex(ym.Index() + n)
}

// MonthsUntil counts whole months from ym up to, not including, o.
// The result is negative when o precedes ym.
func (ym YearMonth) MonthsUntil(o YearMonth) int {
	return o.Index() - ym.Index()
}

// FirstDay returns the first calendar day of the month.
func (ym YearMonth) FirstDay() Date {
	return NewDate(ym.Year, int(ym.Month), 1)
}

// LastDay returns the last calendar day of the month.
func (ym YearMonth) LastDay() Date {
	return ym.AddMonths(1).FirstDay().AddDate(0, 0, -1)
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Label renders the month for humans, e.g. "March 2024".
func (ym YearMonth) Label() string {
	return fmt.Sprintf("%s %d", ym.Month.String(), ym.Year)
}
