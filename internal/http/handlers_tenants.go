package http

import (
	"net/http"

	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/storage"
)

// tenantForm carries submitted values back into the form after a rejection.
type tenantForm struct {
	ID, Name, Property, Rent, StartDate, Deposit string
}

func tenantFormOf(t core.Tenant) tenantForm {
	f := tenantForm{
		ID:        t.ID,
		Name:      t.Name,
		Property:  t.Property,
		Rent:      t.Rent.String(),
		StartDate: dateInput(t.StartDate),
	}
	if !t.Deposit.IsZero() {
		f.Deposit = t.Deposit.String()
	}
	return f
}

type tenantRow struct {
	Tenant  core.Tenant
	Balance ledger.Balance
}

type tenantsData struct {
	Query   string
	Month   core.YearMonth
	Rows    []tenantRow
	Any     bool // at least one tenant exists, ignoring the search
	Form    tenantForm
	Edit    *tenantForm
	Orphans int
}

func (s *Server) handleTenants(w http.ResponseWriter, r *http.Request) {
	data := tenantsData{Form: tenantForm{StartDate: dateInput(today(s.now))}}
	if id := r.URL.Query().Get("edit"); id != "" {
		if t, err := repositoryFrom(r.Context()).Tenant(r.Context(), id); err == nil {
			f := tenantFormOf(t)
			data.Edit = &f
		}
	}
	s.renderTenants(w, r, http.StatusOK, "", data)
}

func (s *Server) renderTenants(w http.ResponseWriter, r *http.Request, status int, errMsg string, data tenantsData) {
	repo := repositoryFrom(r.Context())
	ctx := r.Context()

	data.Query = sanitizeInput(r.URL.Query().Get("q"))
	data.Month = today(s.now).YearMonth()
	p := s.newPage(r, "tenants", "Tenant Management", &data)
	p.Error = errMsg

	all, err := repo.Tenants(ctx)
	if err != nil {
		st, msg := statusFor(err)
		p.Error = msg
		s.render(w, r, st, "tenants.html", p)
		return
	}
	data.Any = len(all) > 0

	matches, _ := repo.SearchTenants(ctx, data.Query)
	core.SortTenantsByName(matches)

	balances := make(map[string]ledger.Balance)
	if bs, err := repo.Balances(ctx, data.Month); err == nil {
		for _, b := range bs {
			balances[b.Tenant.ID] = b.Balance
		}
	} else if p.Error == "" {
		_, p.Error = statusFor(err)
	}
	for _, t := range matches {
		data.Rows = append(data.Rows, tenantRow{Tenant: t, Balance: balances[t.ID]})
	}
	if orphans, err := repo.OrphanPayments(ctx); err == nil {
		data.Orphans = len(orphans)
	}

	s.render(w, r, status, "tenants.html", p)
}

func parseTenant(r *http.Request) (core.Tenant, tenantForm, error) {
	form := NewFormParser(r)
	f := tenantForm{
		Name:      form.String("name"),
		Property:  form.String("property"),
		Rent:      form.String("rent"),
		StartDate: form.String("start_date"),
		Deposit:   form.String("deposit"),
	}
	t := core.Tenant{
		Name:      f.Name,
		Property:  f.Property,
		Rent:      form.Amount("rent"),
		StartDate: form.Date("start_date"),
		Deposit:   form.OptionalAmount("deposit"),
	}
	if err := form.Err(); err != nil {
		return core.Tenant{}, f, err
	}
	if err := t.Validate(); err != nil {
		return core.Tenant{}, f, err
	}
	return t, f, nil
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	t, f, err := parseTenant(r)
	if err == nil {
		t, err = repositoryFrom(r.Context()).AddTenant(r.Context(), t)
	}
	if err != nil {
		s.fail(w, r, log.OpCreate, err, func(status int, msg string) {
			s.renderTenants(w, r, status, msg, tenantsData{Form: f})
		})
		return
	}
	s.structuredLogger.LogRecordChanged(r.Context(), log.OpCreate, storage.CollectionTenants, t.ID)
	s.done(w, r, "/tenants", "tenant_added")
}

func (s *Server) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, f, err := parseTenant(r)
	f.ID = id
	if err == nil {
		t.ID = id
		err = repositoryFrom(r.Context()).UpdateTenant(r.Context(), t)
	}
	if err != nil {
		s.fail(w, r, log.OpUpdate, err, func(status int, msg string) {
			s.renderTenants(w, r, status, msg, tenantsData{
				Form: tenantForm{StartDate: dateInput(today(s.now))},
				Edit: &f,
			})
		})
		return
	}
	s.structuredLogger.LogRecordChanged(r.Context(), log.OpUpdate, storage.CollectionTenants, id)
	s.done(w, r, "/tenants", "tenant_updated")
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := repositoryFrom(r.Context()).DeleteTenant(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err, func(status int, msg string) {
			s.renderTenants(w, r, status, msg, tenantsData{Form: tenantForm{StartDate: dateInput(today(s.now))}})
		})
		return
	}
	s.structuredLogger.LogRecordChanged(r.Context(), log.OpDelete, storage.CollectionTenants, id)
	s.done(w, r, "/tenants", "tenant_deleted")
}
