package report

import (
	"rentbook/internal/core"
)

// Dashboard is the financial overview for a date range.
type Dashboard struct {
	Range  Range
	Totals Totals
	Months []MonthRow
}

// BuildDashboard combines payments and expenses into totals and a monthly series.
// Totals always equal the column sums of Months.
func BuildDashboard(payments []core.Payment, expenses []core.Expense, r Range) Dashboard {
	txs := append(FromPayments(payments), FromExpenses(expenses)...)
	return Dashboard{
		Range:  r,
		Totals: Summarize(txs, r),
		Months: AggregateByMonth(txs, r),
	}
}

// TrendPoint is the JSON shape consumed by the dashboard chart.
type TrendPoint struct {
	Month    string `json:"month"`
	Label    string `json:"label"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Net      string `json:"net"`
}

// Trend converts monthly rows to chart points with two-decimal string amounts.
func (d Dashboard) Trend() []TrendPoint {
	points := make([]TrendPoint, 0, len(d.Months))
	for _, m := range d.Months {
		points = append(points, TrendPoint{
			Month:    m.Month.String(),
			Label:    m.Month.Label(),
			Income:   m.Income.String(),
			Expenses: m.Expenses.String(),
			Net:      m.Net.String(),
		})
	}
	return points
}
