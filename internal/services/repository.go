package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rentbook/internal/amqp"
	"rentbook/internal/cache"
	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/report"
	"rentbook/internal/storage"
)

var (
	ErrUnknownTenant = errors.New("unknown tenant")
	ErrMissingID     = errors.New("record id is required")
)

// ChangePublisher broadcasts record changes. Implemented by *amqp.Client.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.RecordChangedMessage) error
}

// IntegrityError reports stored records that could not be decoded. Views
// whose totals depend on those records return it instead of a partial result.
type IntegrityError struct {
	Errs []error
}

func (e *IntegrityError) Error() string {
	if len(e.Errs) == 1 {
		return "data integrity: " + e.Errs[0].Error()
	}
	return fmt.Sprintf("data integrity: %d unreadable records, first: %v", len(e.Errs), e.Errs[0])
}

func (e *IntegrityError) Unwrap() []error {
	return e.Errs
}

// Snapshot is one consistent load of all three collections.
type Snapshot struct {
	Tenants  []core.Tenant
	Payments []core.Payment
	Expenses []core.Expense
	LoadedAt time.Time

	// Invalid holds decode failures per collection. Entries are skipped
	// from the slices above.
	Invalid map[string][]error
}

// Skipped counts records left out of the snapshot.
func (s *Snapshot) Skipped() int {
	n := 0
	for _, errs := range s.Invalid {
		n += len(errs)
	}
	return n
}

// Check returns an *IntegrityError when any of collections had unreadable records.
func (s *Snapshot) Check(collections ...string) error {
	var errs []error
	for _, c := range collections {
		errs = append(errs, s.Invalid[c]...)
	}
	if len(errs) == 0 {
		return nil
	}
	return &IntegrityError{Errs: errs}
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		Tenants:  slices.Clone(s.Tenants),
		Payments: slices.Clone(s.Payments),
		Expenses: slices.Clone(s.Expenses),
		LoadedAt: s.LoadedAt,
		Invalid:  s.Invalid,
	}
}

// Repository is a per-session read-through cache over a DocumentStore.
//
// The first read loads every collection; later reads are served from memory
// until Refresh or Invalidate. Writes go to the store first and patch the
// cache only after the store accepted them, so a failed write leaves the
// cache untouched.
type Repository struct {
	store     storage.DocumentStore
	publisher ChangePublisher

	loadMu sync.Mutex // serializes loads
	mu     sync.RWMutex
	snap   *Snapshot
	gen    uint64 // bumped on every load or patch

	dashboards *cache.LRUCache[report.Dashboard]
}

// NewRepository creates a repository. publisher may be nil.
func NewRepository(store storage.DocumentStore, publisher ChangePublisher) *Repository {
	return &Repository{
		store:      store,
		publisher:  publisher,
		dashboards: cache.NewLRUCache[report.Dashboard](16, 10*time.Minute),
	}
}

// Refresh reloads all collections from the store and swaps the cache atomically.
// On failure the previous snapshot is kept.
func (r *Repository) Refresh(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.loadLocked(ctx)
}

// Invalidate drops the cached snapshot; the next read reloads.
func (r *Repository) Invalidate() {
	r.mu.Lock()
	r.snap = nil
	r.gen++
	r.mu.Unlock()
	r.dashboards.Clear()
}

// Loaded reports whether a snapshot is cached.
func (r *Repository) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap != nil
}

func (r *Repository) loadLocked(ctx context.Context) error {
	var (
		tenantDocs, paymentDocs, expenseDocs []storage.Document
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tenantDocs, err = r.store.List(gctx, storage.CollectionTenants)
		return err
	})
	g.Go(func() (err error) {
		paymentDocs, err = r.store.List(gctx, storage.CollectionPayments)
		return err
	})
	g.Go(func() (err error) {
		expenseDocs, err = r.store.List(gctx, storage.CollectionExpenses)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	tenants, tErrs := storage.DecodeAll(tenantDocs, storage.DecodeTenant)
	payments, pErrs := storage.DecodeAll(paymentDocs, storage.DecodePayment)
	expenses, eErrs := storage.DecodeAll(expenseDocs, storage.DecodeExpense)

	invalid := make(map[string][]error)
	for coll, errs := range map[string][]error{
		storage.CollectionTenants:  tErrs,
		storage.CollectionPayments: pErrs,
		storage.CollectionExpenses: eErrs,
	} {
		for _, err := range errs {
			slog.ErrorContext(ctx, "Malformed stored record", "collection", coll, "error", err)
		}
		if len(errs) > 0 {
			invalid[coll] = errs
		}
	}

	snap := &Snapshot{
		Tenants:  tenants,
		Payments: payments,
		Expenses: expenses,
		LoadedAt: time.Now(),
		Invalid:  invalid,
	}

	r.mu.Lock()
	r.snap = snap
	r.gen++
	r.mu.Unlock()
	r.dashboards.Clear()

	slog.InfoContext(ctx, "Records loaded",
		"tenants", len(tenants),
		"payments", len(payments),
		"expenses", len(expenses),
		"skipped", snap.Skipped())
	return nil
}

// Snapshot returns a copy of the cached records, loading them on first use.
func (r *Repository) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap, _, err := r.current(ctx)
	return snap, err
}

// current returns a copy of the snapshot together with its generation.
func (r *Repository) current(ctx context.Context) (*Snapshot, uint64, error) {
	if snap, gen, ok := r.cached(); ok {
		return snap, gen, nil
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if snap, gen, ok := r.cached(); ok {
		return snap, gen, nil
	}
	if err := r.loadLocked(ctx); err != nil {
		return nil, 0, err
	}
	snap, gen, _ := r.cached()
	return snap, gen, nil
}

func (r *Repository) cached() (*Snapshot, uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return nil, r.gen, false
	}
	return r.snap.clone(), r.gen, true
}

// mutate applies fn to the cached snapshot if one is loaded.
func (r *Repository) mutate(fn func(s *Snapshot)) {
	r.mu.Lock()
	if r.snap != nil {
		fn(r.snap)
		r.gen++
	}
	r.mu.Unlock()
	r.dashboards.Clear()
}

func (r *Repository) publish(ctx context.Context, msg *amqp.RecordChangedMessage) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishChange(ctx, msg); err != nil {
		// The store already holds the change; the mirror catches up on resync
		slog.WarnContext(ctx, "Failed to publish record change",
			"collection", msg.Collection, "id", msg.ID, "op", msg.Op, "error", err)
	}
}

func (r *Repository) Tenants(ctx context.Context) ([]core.Tenant, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Tenants, nil
}

// SearchTenants filters tenants by a case-insensitive name substring.
func (r *Repository) SearchTenants(ctx context.Context, query string) ([]core.Tenant, error) {
	tenants, err := r.Tenants(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(tenants, func(t core.Tenant) bool { return !t.MatchesName(query) }), nil
}

func (r *Repository) Tenant(ctx context.Context, id string) (core.Tenant, error) {
	tenants, err := r.Tenants(ctx)
	if err != nil {
		return core.Tenant{}, err
	}
	if i := slices.IndexFunc(tenants, func(t core.Tenant) bool { return t.ID == id }); i >= 0 {
		return tenants[i], nil
	}
	return core.Tenant{}, fmt.Errorf("tenant %s: %w", id, storage.ErrNotFound)
}

// Payments returns every payment, newest first.
func (r *Repository) Payments(ctx context.Context) ([]core.Payment, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	core.SortPaymentsNewestFirst(snap.Payments)
	return snap.Payments, nil
}

// TenantPayments returns one tenant's payments, newest first.
func (r *Repository) TenantPayments(ctx context.Context, tenantID string) ([]core.Payment, error) {
	payments, err := r.Payments(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(payments, func(p core.Payment) bool { return p.TenantID != tenantID }), nil
}

// OrphanPayments returns payments whose tenant no longer exists.
func (r *Repository) OrphanPayments(ctx context.Context) ([]core.Payment, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(snap.Tenants))
	for _, t := range snap.Tenants {
		known[t.ID] = true
	}
	orphans := slices.DeleteFunc(snap.Payments, func(p core.Payment) bool { return known[p.TenantID] })
	core.SortPaymentsNewestFirst(orphans)
	return orphans, nil
}

// Expenses returns every expense, newest first.
func (r *Repository) Expenses(ctx context.Context) ([]core.Expense, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	core.SortExpensesNewestFirst(snap.Expenses)
	return snap.Expenses, nil
}

// Balance computes the tenant's position for month. An unknown tenant
// yields the zero Balance, matching ledger.ComputeBalance(nil, ...).
func (r *Repository) Balance(ctx context.Context, tenantID string, month core.YearMonth) (ledger.Balance, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return ledger.Balance{}, err
	}
	if err := snap.Check(storage.CollectionTenants, storage.CollectionPayments); err != nil {
		return ledger.Balance{}, err
	}
	var tenant *core.Tenant
	if i := slices.IndexFunc(snap.Tenants, func(t core.Tenant) bool { return t.ID == tenantID }); i >= 0 {
		tenant = &snap.Tenants[i]
	}
	return ledger.ComputeBalance(tenant, snap.Payments, month), nil
}

// Statement returns the tenant's month-by-month history through month.
func (r *Repository) Statement(ctx context.Context, tenantID string, through core.YearMonth) ([]ledger.MonthEntry, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.Check(storage.CollectionTenants, storage.CollectionPayments); err != nil {
		return nil, err
	}
	i := slices.IndexFunc(snap.Tenants, func(t core.Tenant) bool { return t.ID == tenantID })
	if i < 0 {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, storage.ErrNotFound)
	}
	return ledger.History(snap.Tenants[i], snap.Payments, through), nil
}

// Balances returns every tenant's position for month.
func (r *Repository) Balances(ctx context.Context, month core.YearMonth) ([]ledger.TenantBalance, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.Check(storage.CollectionTenants, storage.CollectionPayments); err != nil {
		return nil, err
	}
	return ledger.Balances(snap.Tenants, snap.Payments, month), nil
}

// Dashboard aggregates income and expenses over rng.
func (r *Repository) Dashboard(ctx context.Context, rng report.Range) (report.Dashboard, error) {
	snap, gen, err := r.current(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	if err := snap.Check(storage.CollectionPayments, storage.CollectionExpenses); err != nil {
		return report.Dashboard{}, err
	}
	key := fmt.Sprintf("%d|%s..%s", gen, rng.From, rng.To)
	if d, ok := r.dashboards.Get(key); ok {
		return d, nil
	}
	d := report.BuildDashboard(snap.Payments, snap.Expenses, rng)
	r.dashboards.Set(key, d)
	return d, nil
}
