package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rentbook/internal/auth"
	"rentbook/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady reports whether the store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.storeErr != nil:
		checks["store"] = "failed: " + s.storeErr.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	case s.ready != nil:
		if err := s.ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	default:
		checks["store"] = "ok"
	}

	if s.auth.Configured() {
		checks["auth"] = "ok"
	} else {
		checks["auth"] = "not_configured"
	}
	if s.sessions != nil {
		checks["sessions"] = map[string]any{"active": s.sessions.Len()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	sessions := 0
	if s.sessions != nil {
		sessions = s.sessions.Len()
	}

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP login_rate_limit_hits_total Login attempts rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE login_rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "login_rate_limit_hits_total %d\n\n", s.loginLimiter.Hits())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.securityDetector.SuspiciousRequests())

	fmt.Fprintf(w, "# HELP active_sessions Sessions holding a cached snapshot\n")
	fmt.Fprintf(w, "# TYPE active_sessions gauge\n")
	fmt.Fprintf(w, "active_sessions %d\n\n", sessions)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", s.now().Sub(s.startedAt).Seconds())
}

type loginData struct {
	Username string
	StoreErr string
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request, status int, username, msg string) {
	data := loginData{Username: username}
	if s.storeErr != nil {
		data.StoreErr = s.storeErr.Error()
	}
	p := s.newPage(r, "", "Admin Login", data)
	p.Error = msg
	s.render(w, r, status, "login.html", p)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.FromRequest(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.loginPage(w, r, http.StatusOK, "", "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := NewFormParser(r)
	username := form.String("username")
	password := form.String("password")

	token, claims, err := s.auth.Login(username, password)
	if err != nil {
		logger := s.logger.WithComponent(log.ComponentAuth)
		switch {
		case errors.Is(err, auth.ErrNotConfigured):
			logger.ErrorContext(r.Context(), "Login refused: admin credentials not configured")
			s.loginPage(w, r, http.StatusServiceUnavailable, username,
				"Admin credentials are not configured. Set ADMIN_USERNAME and ADMIN_PASSWORD.")
		case errors.Is(err, auth.ErrInvalidCredentials):
			logger.WarnContext(r.Context(), "Login failed",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
			s.loginPage(w, r, http.StatusUnauthorized, username,
				"The username or password you entered is incorrect.")
		default:
			s.structuredLogger.LogError(r.Context(), "Login error", err, log.OpLogin, nil)
			s.loginPage(w, r, http.StatusInternalServerError, username, "Login failed, please retry.")
		}
		return
	}

	s.loginLimiter.Reset(s.securityDetector.ExtractClientIP(r))
	http.SetCookie(w, s.auth.SessionCookie(token, s.secure))
	s.logger.WithComponent(log.ComponentAuth).InfoContext(r.Context(), "Admin logged in",
		log.FieldSessionID, claims.SessionID)
	s.done(w, r, "/", "")
}

func (s *Server) handleLoginLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Login rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
	s.loginPage(w, r, http.StatusTooManyRequests, "", "Too many login attempts. Please wait a minute and try again.")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, err := s.auth.FromRequest(r); err == nil && s.sessions != nil {
		s.sessions.Drop(claims.SessionID)
	}
	http.SetCookie(w, auth.ClearCookie(s.secure))
	s.done(w, r, "/login", "logged_out")
}

// requireAuth resolves the session cookie to the session's repository.
// Requests without a valid session are sent to the login page.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.FromRequest(r)
		if err != nil {
			if isHTMX(r) {
				NewHTMXResponse().Redirect("/login").Status(http.StatusUnauthorized).Write(w)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := r.Context()
		if s.sessions != nil {
			ctx = withRepository(ctx, s.sessions.Get(claims.SessionID))
		}
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldSessionID, claims.SessionID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireStore blocks data pages when the store failed to initialise.
func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.storeErr == nil && repositoryFrom(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		msg := "The data store is not available."
		if s.storeErr != nil {
			msg = s.storeErr.Error()
		}
		if isHTMX(r) {
			ServiceUnavailableError("Data store unavailable: " + msg).Write(w)
			return
		}
		p := s.newPage(r, "", "Store unavailable", msg)
		p.LoggedIn = true
		s.render(w, r, http.StatusServiceUnavailable, "unavailable.html", p)
	})
}

// handleRefresh reloads the session snapshot from the store.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	repo := repositoryFrom(r.Context())
	back := refererPath(r)
	if err := repo.Refresh(r.Context()); err != nil {
		s.fail(w, r, log.OpSync, err, func(status int, msg string) {
			p := s.newPage(r, "", "Store unavailable", msg)
			s.render(w, r, status, "unavailable.html", p)
		})
		return
	}
	s.done(w, r, back, "refreshed")
}
