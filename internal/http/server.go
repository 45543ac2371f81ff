// Package http serves the ledger UI: the category editor, receipt entry,
// the month report and the export downloads. Partials are rendered server
// side and swapped in by htmx.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"smartledger/internal/alerts"
	"smartledger/internal/auth"
	"smartledger/internal/cache"
	"smartledger/internal/categories"
	"smartledger/internal/core"
	applog "smartledger/internal/log"
	"smartledger/internal/storage"
	"smartledger/internal/toast"
	appweb "smartledger/web"
)

type Server struct {
	http.Server
	templates *template.Template

	store    *categories.Store
	repo     *storage.SQLiteRepository
	sessions *auth.Sessions
	checker  *alerts.Checker
	toasts   *toast.Queue

	rateLimiter *rateLimiter
	structLog   *applog.StructuredLogger

	// Month reports are rebuilt from the views on every receipt write, so
	// cache entries are invalidated by prefix per user.
	reportCache  *cache.LRUCache[monthReport]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Options carries the server's collaborators. Repository and Sessions may
// be nil; receipt, report and account endpoints then answer 503.
type Options struct {
	Store    *categories.Store
	Repo     *storage.SQLiteRepository
	Sessions *auth.Sessions
	Checker  *alerts.Checker
	Toasts   *toast.Queue
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	mux := http.NewServeMux()

	toasts := opts.Toasts
	if toasts == nil {
		toasts = toast.NewQueue()
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:        opts.Store,
		repo:         opts.Repo,
		sessions:     opts.Sessions,
		checker:      opts.Checker,
		toasts:       toasts,
		rateLimiter:  newRateLimiter(),
		structLog:    applog.NewStructuredLogger(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)),
		reportCache:  cache.NewLRUCache[monthReport](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// A category change from any context stales every cached report, since
	// reports carry the budget column.
	s.store.Subscribe(func(core.Collection) {
		s.reportCache.DeletePrefix("report:")
	})

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))

	// Category editor
	mux.HandleFunc("GET /ui/categories", s.withSecurityHeaders(s.handleCategoriesPartial))
	mux.HandleFunc("POST /categories", s.withSecurityHeaders(s.handleAddCategory))
	mux.HandleFunc("POST /categories/reset", s.withSecurityHeaders(s.handleResetCategories))
	mux.HandleFunc("POST /categories/{index}/delete", s.withSecurityHeaders(s.handleDeleteCategory))
	mux.HandleFunc("POST /categories/{index}/rename", s.withSecurityHeaders(s.handleRenameCategory))
	mux.HandleFunc("POST /categories/{index}/budget", s.withSecurityHeaders(s.handleSetBudget))
	mux.HandleFunc("POST /categories/{index}/spent", s.withSecurityHeaders(s.handleSetSpent))

	// Receipts
	mux.HandleFunc("POST /receipts", s.withSecurityHeaders(s.requireUser(s.handleCreateReceipt)))
	mux.HandleFunc("POST /receipts/{id}/delete", s.withSecurityHeaders(s.requireUser(s.handleDeleteReceipt)))
	mux.HandleFunc("GET /ui/receipts", s.withSecurityHeaders(s.requireUser(s.handleReceiptsPartial)))

	// Reports and notifications
	mux.HandleFunc("GET /ui/month-report", s.withSecurityHeaders(s.requireUser(s.handleMonthReport)))
	mux.HandleFunc("GET /ui/toasts", s.withSecurityHeaders(s.handleToasts))
	mux.HandleFunc("GET /ui/alerts", s.withSecurityHeaders(s.requireUser(s.handleAlertsPartial)))
	mux.HandleFunc("POST /alerts/{id}/read", s.withSecurityHeaders(s.requireUser(s.handleDismissAlert)))

	// Exports
	mux.HandleFunc("GET /export/csv", s.withSecurityHeaders(s.requireUser(s.handleExportCSV)))
	mux.HandleFunc("GET /export/xlsx", s.withSecurityHeaders(s.requireUser(s.handleExportExcel)))

	// Accounts
	mux.HandleFunc("POST /register", s.withSecurityHeaders(s.handleRegister))
	mux.HandleFunc("POST /login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("POST /logout", s.withSecurityHeaders(s.handleLogout))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ip := clientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structLog.LogHTTPStart(ctx, r, ip)

		// Rate limit mutations only; partial refreshes fire on every change
		// event and must stay cheap.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(ip) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", ip, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.structLog.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), ip)
	}
}

// requireUser resolves the session cookie and passes the user id on. The
// category editor stays open; everything tied to stored receipts needs an
// account.
func (s *Server) requireUser(next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.repo == nil {
			UnavailableError("저장소가 설정되지 않았습니다").Write(w)
			return
		}
		if s.sessions == nil {
			UnauthorizedError("로그인이 필요합니다").Write(w)
			return
		}
		userID, err := s.sessions.UserFromRequest(r)
		if err != nil {
			UnauthorizedError("로그인이 필요합니다").Write(w)
			return
		}
		next(w, r, userID)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := struct {
		Year       int
		Month      int
		Categories []categoryView
		LoggedIn   bool
	}{
		Year:       now.Year(),
		Month:      int(now.Month()),
		Categories: s.categoryViews(r.Context()),
		LoggedIn:   s.loggedIn(r),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) loggedIn(r *http.Request) bool {
	if s.sessions == nil {
		return false
	}
	_, err := s.sessions.UserFromRequest(r)
	return err == nil
}

func (s *Server) handleToasts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Toasts []toast.Toast }{Toasts: s.toasts.Drain()}
	if err := s.templates.ExecuteTemplate(w, "toasts.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Toast template execution failed", "error", err)
	}
}
