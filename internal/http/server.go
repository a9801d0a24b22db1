package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"tallybook/internal/attachments"
	"tallybook/internal/auth"
	"tallybook/internal/cache"
	"tallybook/internal/core"
	"tallybook/internal/middleware/ratelimit"
	"tallybook/internal/middleware/security"
	"tallybook/internal/middleware/trace"
)

type Server struct {
	http.Server

	store     Store
	tokens    *auth.TokenManager
	files     *attachments.Store
	publisher Publisher

	maxUploadBytes int64

	dayCache   *cache.LRUCache[core.DaySummary]
	monthCache *cache.LRUCache[core.MonthSummary]
	caches     *cache.Manager

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// Options carries everything NewServer needs beyond the address.
type Options struct {
	Store              Store
	Tokens             *auth.TokenManager
	Files              *attachments.Store
	Publisher          Publisher
	MaxUploadBytes     int64
	RateLimitPerMinute int
}

func NewServer(addr string, opts Options) *Server {
	s := &Server{
		store:          opts.Store,
		tokens:         opts.Tokens,
		files:          opts.Files,
		publisher:      opts.Publisher,
		maxUploadBytes: opts.MaxUploadBytes,
		dayCache:       cache.NewLRUCache[core.DaySummary](100, 5*time.Minute),
		monthCache:     cache.NewLRUCache[core.MonthSummary](100, 5*time.Minute),
		caches:         cache.NewManager(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.caches.Register(s.dayCache)
	s.caches.Register(s.monthCache)
	s.caches.StartCleanup(10 * time.Minute)

	ips := security.NewResolver()
	traced := trace.NewMiddleware(ips.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(traced.Middleware)
	r.Use(headers.Middleware)
	r.Use(s.limiter.Middleware(ips.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "60")
		writeMessage(w, http.StatusTooManyRequests, "Too many requests")
	}))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.tokens.Middleware)

			s.mountTransactionRoutes(r, "/sales", core.KindSale)
			s.mountTransactionRoutes(r, "/expenses", core.KindExpense)

			r.Get("/dashboard/summary", s.handleDaySummary)
			r.Get("/dashboard/monthly-summary", s.handleMonthSummary)

			r.Get("/uploads/{name}", s.handleDownloadAttachment)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) mountTransactionRoutes(r chi.Router, prefix string, kind core.Kind) {
	r.Route(prefix, func(r chi.Router) {
		r.Post("/", s.handleCreateTransaction(kind))
		r.Get("/", s.handleListTransactions(kind))
		r.Get("/{id}", s.handleGetTransaction(kind))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Put("/{id}", s.handleUpdateTransaction(kind))
			r.Delete("/{id}", s.handleDeleteTransaction(kind))
		})
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

// Shutdown stops the HTTP server and the background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateSummaries drops cached summaries covering the given date.
func (s *Server) invalidateSummaries(date time.Time) {
	s.dayCache.Delete(date.UTC().Format(dateLayout))
	s.monthCache.Delete(date.UTC().Format("2006-01"))
}
