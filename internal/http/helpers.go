package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"rentbook/internal/core"
	"rentbook/internal/log"
	"rentbook/internal/services"
	"rentbook/internal/storage"
)

type contextKey string

const repoKey contextKey = "repository"

// page is the data every full-page template receives.
type page struct {
	Title    string
	Nav      string
	LoggedIn bool
	Currency string
	Notice   string
	Error    string
	Data     any
}

// notices maps the ?ok= codes set by redirects after a successful write.
var notices = map[string]string{
	"tenant_added":     "Tenant added.",
	"tenant_updated":   "Changes saved.",
	"tenant_deleted":   "Tenant and their payments deleted.",
	"payment_added":    "Payment recorded.",
	"payment_deleted":  "Payment deleted.",
	"expense_added":    "Expense added.",
	"expenses_deleted": "Expense(s) deleted.",
	"refreshed":        "Data reloaded from the store.",
	"logged_out":       "You have been logged out.",
}

func withRepository(ctx context.Context, repo *services.Repository) context.Context {
	return context.WithValue(ctx, repoKey, repo)
}

func repositoryFrom(ctx context.Context) *services.Repository {
	repo, _ := ctx.Value(repoKey).(*services.Repository)
	return repo
}

func (s *Server) funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.Format(s.currency) },
		"amount": func(m core.Money) string {
			return m.String()
		},
		"date":     dateInput,
		"negative": func(m core.Money) bool { return m.IsNegative() },
	}
}

func (s *Server) newPage(r *http.Request, nav, title string, data any) page {
	return page{
		Title:    title,
		Nav:      nav,
		LoggedIn: repositoryFrom(r.Context()) != nil,
		Currency: s.currency,
		Notice:   notices[r.URL.Query().Get("ok")],
		Data:     data,
	}
}

// render executes name into a buffer so a template failure never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		s.logger.WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldError, err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// done finishes a successful write: htmx clients get HX-Redirect, plain
// forms a 303 to the same location.
func (s *Server) done(w http.ResponseWriter, r *http.Request, path, notice string) {
	location := path
	if notice != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		location += sep + "ok=" + url.QueryEscape(notice)
	}
	if isHTMX(r) {
		NewHTMXResponse().Redirect(location).Write(w)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// refererPath returns the path of the Referer header when it points back at
// this host, or "/".
func refererPath(r *http.Request) string {
	u, err := url.Parse(r.Referer())
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	return u.Path
}

// statusFor maps a service error onto an HTTP status and a user-facing message.
func statusFor(err error) (int, string) {
	var (
		fe      *core.FieldError
		cascade *services.CascadeError
		ie      *services.IntegrityError
	)
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity, "Invalid " + fe.Field + ": " + fe.Err.Error()
	case errors.As(err, &cascade):
		return http.StatusInternalServerError, cascade.Error()
	case errors.As(err, &ie):
		return http.StatusInternalServerError, "Stored records are unreadable, results cannot be trusted. " + ie.Error()
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "Record not found."
	default:
		return http.StatusInternalServerError, "The store rejected the operation. Nothing was changed; please retry."
	}
}

// fail reports err for a write. htmx requests get an inline fragment; plain
// requests get rerender with the message and status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error, rerender func(status int, msg string)) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.structuredLogger.LogError(r.Context(), "Operation failed", err, operation, nil)
	}
	if isHTMX(r) {
		resp := ErrorResponse(status, msg)
		if status >= http.StatusInternalServerError {
			resp.TriggerErrorNotification(msg)
		}
		resp.Write(w)
		return
	}
	rerender(status, msg)
}
