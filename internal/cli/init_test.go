package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/config"
	"rentbook/internal/log"
	"rentbook/internal/storage"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func TestInitStoreMemory(t *testing.T) {
	st, err := InitStore(quietLogger(), &config.Config{DataBackend: config.BackendMemory})
	require.NoError(t, err)
	defer st.Close()

	docs, err := st.List(context.Background(), storage.CollectionTenants)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestInitStoreMemorySeed(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{
		"tenants": [{"id": "t1", "name": "Jane", "property": "Unit 1", "rent": 1000, "start_date": "2024-01-01"}],
		"payments": [{"tenant_id": "t1", "date": "2024-01-05", "amount": 1000}]
	}`), 0o600))

	st, err := InitStore(quietLogger(), &config.Config{DataBackend: config.BackendMemory, SeedFile: seed})
	require.NoError(t, err)

	tenants, err := st.List(context.Background(), storage.CollectionTenants)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, "t1", tenants[0].ID)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"invoices": []}`), 0o600))
	_, err = InitStore(quietLogger(), &config.Config{DataBackend: config.BackendMemory, SeedFile: bad})
	assert.ErrorIs(t, err, storage.ErrUnknownCollection)
}

func TestInitStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rentbook.db")
	st, err := InitStore(quietLogger(), &config.Config{DataBackend: config.BackendSQLite, SQLiteDBPath: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Ping(ctx))
	id, err := st.Add(ctx, storage.CollectionExpenses, storage.Record{
		storage.FieldDescription: "Paint", storage.FieldAmount: "12.50", storage.FieldDate: "2024-03-01",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, st.Close())

	reopened, err := InitStore(quietLogger(), &config.Config{DataBackend: config.BackendSQLite, SQLiteDBPath: path})
	require.NoError(t, err)
	defer reopened.Close()
	docs, err := reopened.List(ctx, storage.CollectionExpenses)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
}

func TestInitStoreUnknownBackend(t *testing.T) {
	_, err := InitStore(quietLogger(), &config.Config{DataBackend: "firestore"})
	assert.ErrorContains(t, err, `unknown data backend "firestore"`)
}

func TestInitAMQPDisabled(t *testing.T) {
	client, err := InitAMQP(quietLogger(), &config.Config{})
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestNilStoreClose(t *testing.T) {
	var st *Store
	assert.NoError(t, st.Close())
}
