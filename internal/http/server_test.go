package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/auth"
	"rentbook/internal/log"
	"rentbook/internal/middleware/ratelimit"
	"rentbook/internal/services"
	"rentbook/internal/storage"
	"rentbook/internal/storage/memory"
)

var fixedNow = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv    *Server
	store  *memory.Store
	cookie *http.Cookie
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	a, err := auth.New(auth.Credentials{Username: "admin", Password: "s3cret"}, []byte("test-secret"), 0)
	require.NoError(t, err)

	store := memory.New()
	opts := Options{
		Auth: a,
		Sessions: services.NewSessions(func() *services.Repository {
			return services.NewRepository(store, nil)
		}, 4, time.Hour),
		Currency: "AED",
		Logger:   log.New(log.Config{Level: slog.LevelError, Output: io.Discard}),
		Now:      func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := NewServer(":0", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/login", url.Values{"username": {"admin"}, "password": {"s3cret"}}, false)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			e.cookie = c
		}
	}
	require.NotNil(t, e.cookie, "session cookie not set")
}

func (e *testEnv) onlyID(t *testing.T, collection string) string {
	t.Helper()
	docs, err := e.store.List(context.Background(), collection)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0].ID
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Ready = func(context.Context) error { return nil }
	})

	rr := env.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = env.do(t, http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ready"`)

	rr = env.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestReadyFailsWhenStorePingFails(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("disk gone") }
	})
	rr := env.do(t, http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "disk gone")
}

func TestPagesRequireLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/", "/tenants", "/payments", "/expenses"} {
		rr := env.do(t, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusSeeOther, rr.Code, path)
		assert.Equal(t, "/login", rr.Header().Get("Location"), path)
	}

	rr := env.do(t, http.MethodPost, "/tenants", url.Values{"name": {"x"}}, true)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("HX-Redirect"))

	rr = env.do(t, http.MethodGet, "/login", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Admin Login")
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/login", url.Values{"username": {"admin"}, "password": {"nope"}}, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "incorrect")
	assert.Empty(t, rr.Result().Cookies())
}

func TestLoginWithoutConfiguredCredentials(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		a, err := auth.New(auth.Credentials{}, nil, 0)
		require.NoError(t, err)
		o.Auth = a
	})

	rr := env.do(t, http.MethodPost, "/login", url.Values{"username": {""}, "password": {""}}, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not configured")
}

func TestLoginIsRateLimited(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.LoginLimiter = ratelimit.NewLimiter(ratelimit.Config{Requests: 2, Window: time.Minute})
	})

	bad := url.Values{"username": {"admin"}, "password": {"guess"}}
	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodPost, "/login", bad, false)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/login", bad, false)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodPost, "/logout", nil, false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?ok=logged_out", rr.Header().Get("Location"))

	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestTenantLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodPost, "/tenants", url.Values{
		"name": {"Jane Doe"}, "property": {"Unit 4"}, "rent": {"0"}, "start_date": {"2024-01-01"},
	}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid rent")
	assert.Contains(t, rr.Body.String(), `value="Jane Doe"`)

	rr = env.do(t, http.MethodPost, "/tenants", url.Values{
		"name": {"Jane Doe"}, "property": {"Unit 4"}, "rent": {"1000"}, "start_date": {"2024-01-01"},
	}, false)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/tenants?ok=tenant_added", rr.Header().Get("Location"))
	id := env.onlyID(t, storage.CollectionTenants)

	rr = env.do(t, http.MethodGet, "/tenants?ok=tenant_added", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Tenant added.")
	assert.Contains(t, body, "Jane Doe")
	assert.Contains(t, body, "AED 1,000.00")

	rr = env.do(t, http.MethodGet, "/tenants?q=zzz", nil, false)
	assert.Contains(t, rr.Body.String(), "No tenants match your search.")

	rr = env.do(t, http.MethodGet, "/tenants?edit="+id, nil, false)
	assert.Contains(t, rr.Body.String(), "Edit Jane Doe")

	rr = env.do(t, http.MethodPost, "/tenants/"+id, url.Values{
		"name": {"Jane Smith"}, "property": {"Unit 4"}, "rent": {"1100"}, "start_date": {"2024-01-01"}, "deposit": {"500"},
	}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/tenants?ok=tenant_updated", rr.Header().Get("HX-Redirect"))

	rr = env.do(t, http.MethodGet, "/tenants", nil, false)
	assert.Contains(t, rr.Body.String(), "Jane Smith")
	assert.Contains(t, rr.Body.String(), "AED 500.00")

	rr = env.do(t, http.MethodPost, "/tenants/"+id+"/delete", nil, false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	docs, _ := env.store.List(context.Background(), storage.CollectionTenants)
	assert.Empty(t, docs)
}

func TestHTMXValidationReturnsFragment(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodPost, "/expenses", url.Values{
		"description": {"Paint"}, "amount": {"-5"}, "date": {"2024-03-01"},
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), `<div class="error">`), rr.Body.String())

	docs, _ := env.store.List(context.Background(), storage.CollectionExpenses)
	assert.Empty(t, docs, "rejected input must not reach the store")
}

func TestPaymentsShowBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodGet, "/payments", nil, false)
	assert.Contains(t, rr.Body.String(), "Please add at least one tenant")

	env.do(t, http.MethodPost, "/tenants", url.Values{
		"name": {"Jane"}, "property": {"Unit 1"}, "rent": {"1000"}, "start_date": {"2024-01-01"},
	}, false)
	id := env.onlyID(t, storage.CollectionTenants)

	rr = env.do(t, http.MethodPost, "/payments", url.Values{"tenant_id": {"ghost"}, "date": {"2024-01-15"}, "amount": {"10"}}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown tenant")

	for _, date := range []string{"2024-01-15", "2024-02-10"} {
		rr = env.do(t, http.MethodPost, "/payments", url.Values{"tenant_id": {id}, "date": {date}, "amount": {"1000"}}, false)
		require.Equal(t, http.StatusSeeOther, rr.Code)
	}
	assert.Contains(t, rr.Header().Get("Location"), "month=2024-02")

	rr = env.do(t, http.MethodGet, "/payments?tenant="+id+"&month=2024-03", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Rent Due")
	assert.Contains(t, body, "AED 0.00")
	assert.Contains(t, body, "AED 1,000.00")
	assert.Contains(t, body, "2024-02-10")

	payments, _ := env.store.List(context.Background(), storage.CollectionPayments)
	require.Len(t, payments, 2)
	rr = env.do(t, http.MethodPost, "/payments/"+payments[0].ID+"/delete", url.Values{"tenant_id": {id}}, false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/payments?tenant="+id+"&ok=payment_deleted", rr.Header().Get("Location"))
}

func TestDashboardAndTrend(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodGet, "/", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No financial data available")

	env.do(t, http.MethodPost, "/tenants", url.Values{
		"name": {"Jane"}, "property": {"Unit 1"}, "rent": {"1000"}, "start_date": {"2024-01-01"},
	}, false)
	id := env.onlyID(t, storage.CollectionTenants)
	env.do(t, http.MethodPost, "/payments", url.Values{"tenant_id": {id}, "date": {"2024-01-15"}, "amount": {"1000"}}, false)
	env.do(t, http.MethodPost, "/expenses", url.Values{"description": {"Plumber"}, "amount": {"250"}, "date": {"2024-02-03"}}, false)

	rr = env.do(t, http.MethodGet, "/?from=2024-01-01&to=2024-12-31", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "AED 1,000.00")
	assert.Contains(t, body, "AED 250.00")
	assert.Contains(t, body, "AED 750.00")
	assert.Contains(t, body, "trend-chart")

	rr = env.do(t, http.MethodGet, "/dashboard/trend?from=2024-01-01&to=2024-12-31", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	var trend struct {
		Points []struct {
			Month    string `json:"month"`
			Income   string `json:"income"`
			Expenses string `json:"expenses"`
		} `json:"points"`
		Totals map[string]string `json:"totals"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&trend))
	require.Len(t, trend.Points, 2)
	assert.Equal(t, "2024-01", trend.Points[0].Month)
	assert.Equal(t, "1000.00", trend.Points[0].Income)
	assert.Equal(t, "0.00", trend.Points[0].Expenses)
	assert.Equal(t, "750.00", trend.Totals["net"])
}

func TestExpenseBatchDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	for _, d := range []string{"Paint", "Roof", "Keys"} {
		rr := env.do(t, http.MethodPost, "/expenses", url.Values{"description": {d}, "amount": {"10"}, "date": {"2024-03-01"}}, false)
		require.Equal(t, http.StatusSeeOther, rr.Code)
	}
	docs, _ := env.store.List(context.Background(), storage.CollectionExpenses)
	require.Len(t, docs, 3)

	rr := env.do(t, http.MethodPost, "/expenses/delete", url.Values{}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, http.MethodPost, "/expenses/delete", url.Values{"id": {docs[0].ID, docs[2].ID}}, false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	left, _ := env.store.List(context.Background(), storage.CollectionExpenses)
	require.Len(t, left, 1)
	assert.Equal(t, docs[1].ID, left[0].ID)
}

func TestStoreFailureBlocksDataPages(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Sessions = nil
		o.StoreErr = errors.New("missing credentials")
	})

	rr := env.do(t, http.MethodGet, "/login", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing credentials")

	env.login(t)
	rr = env.do(t, http.MethodGet, "/tenants", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "data store is unavailable")

	rr = env.do(t, http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRefreshReloadsFromStore(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodGet, "/expenses", nil, false)
	assert.Contains(t, rr.Body.String(), "No expenses recorded yet.")

	// A write that bypasses this session stays invisible until refresh.
	_, err := env.store.Add(context.Background(), storage.CollectionExpenses, storage.Record{
		storage.FieldDescription: "Gutter", storage.FieldAmount: json.Number("40.00"), storage.FieldDate: "2024-03-02",
	})
	require.NoError(t, err)
	rr = env.do(t, http.MethodGet, "/expenses", nil, false)
	assert.NotContains(t, rr.Body.String(), "Gutter")

	rr = env.do(t, http.MethodPost, "/refresh", nil, false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	rr = env.do(t, http.MethodGet, "/expenses", nil, false)
	assert.Contains(t, rr.Body.String(), "Gutter")
}

func TestSuspiciousRequestsAreRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/static/../.env", nil, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
