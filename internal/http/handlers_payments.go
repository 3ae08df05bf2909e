package http

import (
	"net/http"
	"net/url"

	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/storage"
)

type paymentForm struct {
	TenantID, Date, Amount string
}

type paymentsData struct {
	Tenants []core.Tenant
	Form    paymentForm

	// Selected tenant view
	Tenant   *core.Tenant
	Month    core.YearMonth
	MonthArg string
	Balance  ledger.Balance
	History  []ledger.MonthEntry
	Payments []core.Payment
	ViewErr  string

	// Payments whose tenant no longer exists
	Orphans []core.Payment
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	data := paymentsData{Form: paymentForm{
		TenantID: r.URL.Query().Get("tenant"),
		Date:     dateInput(today(s.now)),
	}}
	s.renderPayments(w, r, http.StatusOK, "", data)
}

func (s *Server) renderPayments(w http.ResponseWriter, r *http.Request, status int, errMsg string, data paymentsData) {
	repo := repositoryFrom(r.Context())
	ctx := r.Context()
	p := s.newPage(r, "payments", "Payment Management", &data)
	p.Error = errMsg

	tenants, err := repo.Tenants(ctx)
	if err != nil {
		st, msg := statusFor(err)
		p.Error = msg
		s.render(w, r, st, "payments.html", p)
		return
	}
	core.SortTenantsByName(tenants)
	data.Tenants = tenants

	query := r.URL.Query()
	data.Month = MonthParam(query, "month", today(s.now).YearMonth())
	data.MonthArg = data.Month.String()

	selected := query.Get("tenant")
	if selected == "" {
		selected = data.Form.TenantID
	}
	if selected == "" && len(tenants) > 0 {
		selected = tenants[0].ID
	}
	for i := range tenants {
		if tenants[i].ID == selected {
			data.Tenant = &tenants[i]
		}
	}
	if data.Form.TenantID == "" && data.Tenant != nil {
		data.Form.TenantID = data.Tenant.ID
	}

	if data.Tenant != nil {
		if err := s.loadTenantView(r, &data); err != nil {
			_, data.ViewErr = statusFor(err)
			s.structuredLogger.LogError(ctx, "Tenant balance unavailable", err, log.OpRead,
				log.NewFields().WithRecord(storage.CollectionTenants, data.Tenant.ID))
		}
	}
	if orphans, err := repo.OrphanPayments(ctx); err == nil {
		data.Orphans = orphans
	}

	s.render(w, r, status, "payments.html", p)
}

func (s *Server) loadTenantView(r *http.Request, data *paymentsData) error {
	repo := repositoryFrom(r.Context())
	id := data.Tenant.ID

	bal, err := repo.Balance(r.Context(), id, data.Month)
	if err != nil {
		return err
	}
	history, err := repo.Statement(r.Context(), id, data.Month)
	if err != nil {
		return err
	}
	payments, err := repo.TenantPayments(r.Context(), id)
	if err != nil {
		return err
	}
	data.Balance = bal
	data.History = history
	data.Payments = payments
	return nil
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	form := NewFormParser(r)
	f := paymentForm{
		TenantID: form.String("tenant_id"),
		Date:     form.String("date"),
		Amount:   form.String("amount"),
	}
	pay := core.Payment{
		TenantID: f.TenantID,
		Date:     form.Date("date"),
		Amount:   form.Amount("amount"),
	}
	err := form.Err()
	if err == nil {
		err = pay.Validate()
	}
	if err == nil {
		pay, err = repositoryFrom(r.Context()).AddPayment(r.Context(), pay)
	}
	if err != nil {
		s.fail(w, r, log.OpCreate, err, func(status int, msg string) {
			s.renderPayments(w, r, status, msg, paymentsData{Form: f})
		})
		return
	}
	s.structuredLogger.LogRecordChanged(r.Context(), log.OpCreate, storage.CollectionPayments, pay.ID)
	s.done(w, r, paymentsPath(pay.TenantID, pay.Date.YearMonth()), "payment_added")
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	form := NewFormParser(r)
	tenantID := form.String("tenant_id")

	if err := repositoryFrom(r.Context()).DeletePayment(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err, func(status int, msg string) {
			s.renderPayments(w, r, status, msg, paymentsData{Form: paymentForm{
				TenantID: tenantID,
				Date:     dateInput(today(s.now)),
			}})
		})
		return
	}
	s.structuredLogger.LogRecordChanged(r.Context(), log.OpDelete, storage.CollectionPayments, id)
	path := "/payments"
	if tenantID != "" {
		path += "?" + url.Values{"tenant": {tenantID}}.Encode()
	}
	s.done(w, r, path, "payment_deleted")
}

func paymentsPath(tenantID string, month core.YearMonth) string {
	return "/payments?" + url.Values{"tenant": {tenantID}, "month": {month.String()}}.Encode()
}
