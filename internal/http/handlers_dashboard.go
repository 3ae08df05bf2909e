package http

import (
	"encoding/json"
	"net/http"

	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/report"
)

type dashboardData struct {
	From, To  string
	Dashboard report.Dashboard
	// Outstanding is the rent still owed across tenants for the current month.
	Outstanding core.Money
	Month       core.YearMonth
	Empty       bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	repo := repositoryFrom(r.Context())
	now := today(s.now)
	rng := RangeParams(r.URL.Query(), now)

	data := dashboardData{From: dateInput(rng.From), To: dateInput(rng.To), Month: now.YearMonth()}
	p := s.newPage(r, "dashboard", "Dashboard", &data)

	d, err := repo.Dashboard(r.Context(), rng)
	if err != nil {
		status, msg := statusFor(err)
		s.structuredLogger.LogError(r.Context(), "Dashboard unavailable", err, log.OpRead, nil)
		p.Error = msg
		s.render(w, r, status, "dashboard.html", p)
		return
	}
	data.Dashboard = d
	data.Empty = len(d.Months) == 0

	if balances, err := repo.Balances(r.Context(), data.Month); err == nil {
		data.Outstanding = ledger.Outstanding(balances)
	} else {
		_, msg := statusFor(err)
		p.Error = msg
	}

	s.render(w, r, http.StatusOK, "dashboard.html", p)
}

// handleTrend serves the monthly series for the dashboard chart.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	repo := repositoryFrom(r.Context())
	rng := RangeParams(r.URL.Query(), today(s.now))

	d, err := repo.Dashboard(r.Context(), rng)
	if err != nil {
		status, msg := statusFor(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"from":   dateInput(rng.From),
		"to":     dateInput(rng.To),
		"points": d.Trend(),
		"totals": map[string]string{
			"income":   d.Totals.Income.String(),
			"expenses": d.Totals.Expenses.String(),
			"net":      d.Totals.Net.String(),
		},
	})
}
