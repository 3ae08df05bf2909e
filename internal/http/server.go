package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"rentbook/internal/auth"
	"rentbook/internal/log"
	"rentbook/internal/middleware/ratelimit"
	"rentbook/internal/middleware/security"
	"rentbook/internal/middleware/trace"
	"rentbook/internal/services"
	appweb "rentbook/web"
)

// Options wires the server's collaborators.
type Options struct {
	Auth     *auth.Authenticator
	Sessions *services.Sessions

	// StoreErr is the store initialisation failure, if any. When set every
	// data page renders a blocking warning; login still works.
	StoreErr error
	// Ready checks store connectivity for /readyz. Optional.
	Ready func(ctx context.Context) error

	Currency     string
	SecureCookie bool

	Logger       *log.Logger
	LoginLimiter *ratelimit.Limiter
	Detector     *security.Detector

	// Now is the clock used for default months and ranges. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server

	templates *template.Template
	auth      *auth.Authenticator
	sessions  *services.Sessions
	storeErr  error
	ready     func(ctx context.Context) error
	currency  string
	secure    bool
	now       func() time.Time

	logger           *log.Logger
	structuredLogger *log.StructuredLogger
	loginLimiter     *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if opts.Sessions == nil && opts.StoreErr == nil {
		return nil, errors.New("sessions are required when the store is available")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LoginLimiter == nil {
		opts.LoginLimiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if opts.Detector == nil {
		opts.Detector = security.NewDetector()
	}

	s := &Server{
		auth:             opts.Auth,
		sessions:         opts.Sessions,
		storeErr:         opts.StoreErr,
		ready:            opts.Ready,
		currency:         opts.Currency,
		secure:           opts.SecureCookie,
		now:              opts.Now,
		logger:           opts.Logger.WithComponent(log.ComponentHTTP),
		loginLimiter:     opts.LoginLimiter,
		securityDetector: opts.Detector,
		startedAt:        opts.Now(),
	}
	s.structuredLogger = log.NewStructuredLogger(s.logger)
	s.traceMiddleware = trace.NewMiddleware(s.logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(s.funcs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.securityDetector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	limitLogin := s.loginLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleLoginLimited)
	mux.Handle("GET /login", security.NoStore(http.HandlerFunc(s.handleLoginPage)))
	mux.Handle("POST /login", security.NoStore(limitLogin(http.HandlerFunc(s.handleLogin))))
	mux.Handle("POST /logout", security.NoStore(http.HandlerFunc(s.handleLogout)))

	page := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.NoStore(s.requireAuth(s.requireStore(h))))
	}
	page("GET /{$}", s.handleDashboard)
	page("GET /dashboard/trend", s.handleTrend)

	page("GET /tenants", s.handleTenants)
	page("POST /tenants", s.handleCreateTenant)
	page("POST /tenants/{id}", s.handleUpdateTenant)
	page("POST /tenants/{id}/delete", s.handleDeleteTenant)

	page("GET /payments", s.handlePayments)
	page("POST /payments", s.handleCreatePayment)
	page("POST /payments/{id}/delete", s.handleDeletePayment)

	page("GET /expenses", s.handleExpenses)
	page("POST /expenses", s.handleCreateExpense)
	page("POST /expenses/delete", s.handleDeleteExpenses)

	page("POST /refresh", s.handleRefresh)
	return nil
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.loginLimiter != nil {
			s.loginLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
