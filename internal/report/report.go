// Package report buckets income and expense transactions into calendar months.
package report

import (
	"slices"

	"rentbook/internal/core"
)

type Kind int

const (
	Income Kind = iota
	Expense
)

func (k Kind) String() string {
	if k == Expense {
		return "expense"
	}
	return "income"
}

// Transaction is a dated amount on either side of the books.
type Transaction struct {
	Date   core.Date
	Amount core.Money
	Kind   Kind
}

// FromPayments treats every rent payment as income.
func FromPayments(payments []core.Payment) []Transaction {
	out := make([]Transaction, 0, len(payments))
	for _, p := range payments {
		out = append(out, Transaction{Date: p.Date, Amount: p.Amount, Kind: Income})
	}
	return out
}

func FromExpenses(expenses []core.Expense) []Transaction {
	out := make([]Transaction, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, Transaction{Date: e.Date, Amount: e.Amount, Kind: Expense})
	}
	return out
}

// Range is an inclusive span of calendar days.
type Range struct {
	From core.Date
	To   core.Date
}

// DefaultRange is the trailing year ending today: [today - 1 year, today].
func DefaultRange(today core.Date) Range {
	return Range{From: today.AddDate(-1, 0, 0), To: today}
}

// IsEmpty reports whether the range contains no days.
func (r Range) IsEmpty() bool {
	return r.From.After(r.To.Time)
}

func (r Range) Contains(d core.Date) bool {
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

// MonthRow is one month of aggregated activity.
type MonthRow struct {
	Month    core.YearMonth
	Income   core.Money
	Expenses core.Money
	Net      core.Money
}

// Totals summarises a range.
type Totals struct {
	Income   core.Money
	Expenses core.Money
	Net      core.Money
}

// AggregateByMonth sums transactions inside r per calendar month. Only months
// with at least one transaction appear; a month carrying a single kind reports
// zero for the other. Rows are ordered chronologically and the result does
// not depend on input order. An empty range yields no rows.
func AggregateByMonth(txs []Transaction, r Range) []MonthRow {
	if r.IsEmpty() {
		return []MonthRow{}
	}

	buckets := make(map[core.YearMonth]*MonthRow)
	for _, tx := range txs {
		if !r.Contains(tx.Date) {
			continue
		}
		m := tx.Date.YearMonth()
		row, ok := buckets[m]
		if !ok {
			row = &MonthRow{Month: m}
			buckets[m] = row
		}
		switch tx.Kind {
		case Income:
			row.Income = row.Income.Add(tx.Amount)
		case Expense:
			row.Expenses = row.Expenses.Add(tx.Amount)
		}
	}

	rows := make([]MonthRow, 0, len(buckets))
	for _, row := range buckets {
		row.Net = row.Income.Sub(row.Expenses)
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b MonthRow) int {
		return a.Month.Compare(b.Month)
	})
	return rows
}

// Summarize totals the transactions inside r. Net may be negative.
func Summarize(txs []Transaction, r Range) Totals {
	var t Totals
	if r.IsEmpty() {
		return t
	}
	for _, tx := range txs {
		if !r.Contains(tx.Date) {
			continue
		}
		switch tx.Kind {
		case Income:
			t.Income = t.Income.Add(tx.Amount)
		case Expense:
			t.Expenses = t.Expenses.Add(tx.Amount)
		}
	}
	t.Net = t.Income.Sub(t.Expenses)
	return t
}
