package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/cli"
	"rentbook/internal/config"
	"rentbook/internal/core"
	"rentbook/internal/log"
	"rentbook/internal/storage"
	"rentbook/internal/storage/memory"
)

func seededApp(t *testing.T) (*app, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	tenantID, err := store.Add(ctx, storage.CollectionTenants, storage.EncodeTenant(core.Tenant{
		Name:      "Jane Doe",
		Property:  "Unit 4",
		Rent:      core.Money{Cents: 100000},
		StartDate: core.NewDate(2024, 1, 1),
	}))
	require.NoError(t, err)
	_, err = store.Add(ctx, storage.CollectionPayments, storage.EncodePayment(core.Payment{
		TenantID: tenantID,
		Date:     core.NewDate(2024, 1, 15),
		Amount:   core.Money{Cents: 100000},
	}))
	require.NoError(t, err)
	_, err = store.Add(ctx, storage.CollectionExpenses, storage.EncodeExpense(core.Expense{
		Description: "Plumber",
		Date:        core.NewDate(2024, 2, 3),
		Amount:      core.Money{Cents: 25000},
	}))
	require.NoError(t, err)

	a := &app{
		cfg:    &config.Config{Currency: "AED", DataBackend: config.BackendMemory},
		logger: log.New(log.Config{Level: slog.LevelError, Output: io.Discard}),
		open:   func() (*cli.Store, error) { return &cli.Store{DocumentStore: store}, nil },
		now:    func() time.Time { return time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC) },
	}
	return a, tenantID
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTenantsCommand(t *testing.T) {
	a, id := seededApp(t)

	out, err := run(t, a, "tenants", "--month", "2024-02")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "AED 1,000.00")
	assert.Contains(t, out, "February 2024")
}

func TestBalanceCommand(t *testing.T) {
	a, id := seededApp(t)

	out, err := run(t, a, "balance", "--tenant", id, "--month", "2024-03", "--history")
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe (Unit 4)")
	assert.Contains(t, out, "Balance forwarded")
	assert.Contains(t, out, "AED 1,000.00")
	assert.Contains(t, out, "2024-01")
	assert.Contains(t, out, "2024-03")

	_, err = run(t, a, "balance", "--tenant", "missing")
	assert.ErrorContains(t, err, `tenant "missing" not found`)

	_, err = run(t, a, "balance", "--tenant", id, "--month", "March")
	assert.ErrorContains(t, err, "invalid --month")

	_, err = run(t, a, "balance")
	assert.Error(t, err)
}

func TestSummaryCommand(t *testing.T) {
	a, _ := seededApp(t)

	out, err := run(t, a, "summary", "--from", "2024-01-01", "--to", "2024-12-31")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-01 to 2024-12-31")
	assert.Contains(t, out, "AED 250.00")
	assert.Contains(t, out, "AED 750.00")

	out, err = run(t, a, "summary", "--from", "2023-01-01", "--to", "2023-06-30")
	require.NoError(t, err)
	assert.Contains(t, out, "No financial data available")

	_, err = run(t, a, "summary", "--from", "01/01/2024")
	assert.ErrorContains(t, err, "invalid --from")
}

func TestMigrateRequiresSQLite(t *testing.T) {
	a, _ := seededApp(t)
	_, err := run(t, a, "migrate")
	assert.ErrorContains(t, err, "requires the sqlite backend")
}

func TestMigrateCommand(t *testing.T) {
	a, _ := seededApp(t)
	a.cfg.DataBackend = config.BackendSQLite
	a.cfg.SQLiteDBPath = t.TempDir() + "/admin.db"

	out, err := run(t, a, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema at version 1")
	assert.Contains(t, out, "tenants: 0\n")

	store, err := storage.NewSQLiteStore(a.cfg.SQLiteDBPath)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), storage.CollectionExpenses, storage.EncodeExpense(core.Expense{
		Description: "Roof", Date: core.NewDate(2024, 4, 1), Amount: core.Money{Cents: 5000},
	}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err = run(t, a, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "expenses: 1\n")
	assert.Contains(t, out, "payments: 0\n")
}

func TestResyncRequiresSpreadsheet(t *testing.T) {
	a, _ := seededApp(t)
	_, err := run(t, a, "resync")
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")
}

func TestVersionCommand(t *testing.T) {
	a, _ := seededApp(t)
	out, err := run(t, a, "version")
	require.NoError(t, err)
	assert.Equal(t, "rentbook-admin dev\n", out)
}
