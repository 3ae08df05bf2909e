package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"rentbook/internal/amqp"
	"rentbook/internal/core"
	"rentbook/internal/storage"
)

// CascadeError reports a tenant deletion whose payment cleanup did not finish.
// The tenant is gone; the listed payments remain in the store as orphans.
type CascadeError struct {
	TenantID string
	Orphaned []string
	Err      error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("tenant %s deleted but %d payment(s) could not be removed: %v", e.TenantID, len(e.Orphaned), e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

func normalizeTenant(t core.Tenant) core.Tenant {
	t.Name = strings.TrimSpace(t.Name)
	t.Property = strings.TrimSpace(t.Property)
	return t
}

// AddTenant validates and stores a new tenant, returning it with its assigned ID.
func (r *Repository) AddTenant(ctx context.Context, t core.Tenant) (core.Tenant, error) {
	t = normalizeTenant(t)
	if err := t.Validate(); err != nil {
		return core.Tenant{}, err
	}

	rec := storage.EncodeTenant(t)
	id, err := r.store.Add(ctx, storage.CollectionTenants, rec)
	if err != nil {
		return core.Tenant{}, fmt.Errorf("add tenant: %w", err)
	}
	t.ID = id

	r.mutate(func(s *Snapshot) { s.Tenants = append(s.Tenants, t) })
	slog.InfoContext(ctx, "Tenant added", "tenant_id", id, "property", t.Property)
	r.publish(ctx, amqp.NewUpsertMessage(storage.CollectionTenants, id, rec))
	return t, nil
}

// UpdateTenant overwrites every editable field of an existing tenant.
func (r *Repository) UpdateTenant(ctx context.Context, t core.Tenant) error {
	if t.ID == "" {
		return ErrMissingID
	}
	t = normalizeTenant(t)
	if err := t.Validate(); err != nil {
		return err
	}

	if err := r.store.Update(ctx, storage.CollectionTenants, t.ID, storage.TenantPatch(t)); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}

	r.mutate(func(s *Snapshot) {
		if i := slices.IndexFunc(s.Tenants, func(x core.Tenant) bool { return x.ID == t.ID }); i >= 0 {
			s.Tenants[i] = t
		}
	})
	slog.InfoContext(ctx, "Tenant updated", "tenant_id", t.ID)
	r.publish(ctx, amqp.NewUpsertMessage(storage.CollectionTenants, t.ID, storage.EncodeTenant(t)))
	return nil
}

// DeleteTenant removes the tenant and then each of its payments.
//
// The steps are independent store calls. If a payment delete fails after the
// tenant is gone, the remaining payments are left as orphans and a
// *CascadeError lists them.
func (r *Repository) DeleteTenant(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	payments, err := r.TenantPayments(ctx, id)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, storage.CollectionTenants, id); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	r.mutate(func(s *Snapshot) {
		s.Tenants = slices.DeleteFunc(s.Tenants, func(t core.Tenant) bool { return t.ID == id })
	})
	r.publish(ctx, amqp.NewDeleteMessage(storage.CollectionTenants, id))

	var orphaned []string
	var firstErr error
	for _, p := range payments {
		if err := r.store.Delete(ctx, storage.CollectionPayments, p.ID); err != nil {
			orphaned = append(orphaned, p.ID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.dropPayment(p.ID)
		r.publish(ctx, amqp.NewDeleteMessage(storage.CollectionPayments, p.ID))
	}

	if len(orphaned) > 0 {
		slog.WarnContext(ctx, "Tenant deleted with orphaned payments",
			"tenant_id", id, "orphaned", len(orphaned), "error", firstErr)
		return &CascadeError{TenantID: id, Orphaned: orphaned, Err: firstErr}
	}

	slog.InfoContext(ctx, "Tenant deleted", "tenant_id", id, "payments_removed", len(payments))
	return nil
}

func (r *Repository) dropPayment(id string) {
	r.mutate(func(s *Snapshot) {
		s.Payments = slices.DeleteFunc(s.Payments, func(p core.Payment) bool { return p.ID == id })
	})
}

// AddPayment records a payment against an existing tenant.
func (r *Repository) AddPayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}
	if _, err := r.Tenant(ctx, p.TenantID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Payment{}, &core.FieldError{Field: "tenant_id", Err: ErrUnknownTenant}
		}
		return core.Payment{}, err
	}

	rec := storage.EncodePayment(p)
	id, err := r.store.Add(ctx, storage.CollectionPayments, rec)
	if err != nil {
		return core.Payment{}, fmt.Errorf("add payment: %w", err)
	}
	p.ID = id

	r.mutate(func(s *Snapshot) { s.Payments = append(s.Payments, p) })
	slog.InfoContext(ctx, "Payment recorded", "payment_id", id, "tenant_id", p.TenantID, "amount_cents", p.Amount.Cents)
	r.publish(ctx, amqp.NewUpsertMessage(storage.CollectionPayments, id, rec))
	return p, nil
}

func (r *Repository) DeletePayment(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	if err := r.store.Delete(ctx, storage.CollectionPayments, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	r.dropPayment(id)
	r.publish(ctx, amqp.NewDeleteMessage(storage.CollectionPayments, id))
	return nil
}

func (r *Repository) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	rec := storage.EncodeExpense(e)
	id, err := r.store.Add(ctx, storage.CollectionExpenses, rec)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id

	r.mutate(func(s *Snapshot) { s.Expenses = append(s.Expenses, e) })
	slog.InfoContext(ctx, "Expense added", "expense_id", id, "amount_cents", e.Amount.Cents)
	r.publish(ctx, amqp.NewUpsertMessage(storage.CollectionExpenses, id, rec))
	return e, nil
}

// DeleteExpenses removes each expense in ids, continuing past failures.
// It returns how many were deleted and the joined errors of the rest.
func (r *Repository) DeleteExpenses(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	var errs []error
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := r.store.Delete(ctx, storage.CollectionExpenses, id); err != nil {
			errs = append(errs, fmt.Errorf("delete expense %s: %w", id, err))
			continue
		}
		r.mutate(func(s *Snapshot) {
			s.Expenses = slices.DeleteFunc(s.Expenses, func(e core.Expense) bool { return e.ID == id })
		})
		r.publish(ctx, amqp.NewDeleteMessage(storage.CollectionExpenses, id))
		deleted++
	}
	if deleted > 0 {
		slog.InfoContext(ctx, "Expenses deleted", "count", deleted, "failed", len(errs))
	}
	return deleted, errors.Join(errs...)
}
