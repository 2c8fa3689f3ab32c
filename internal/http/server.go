// Package http exposes the expense wizard and the direct submission
// boundary as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"expensewizard/internal/catalog"
	"expensewizard/internal/core"
	"expensewizard/internal/log"
	"expensewizard/internal/metrics"
	"expensewizard/internal/middleware/ratelimit"
	"expensewizard/internal/middleware/security"
	"expensewizard/internal/services"
	"expensewizard/internal/wizard"
)

// ExpenseService is the persistence surface the handlers need;
// services.ExpenseService implements it.
type ExpenseService interface {
	wizard.Persister
	Submit(ctx context.Context, c core.Candidate, att *core.Attachment) (services.Result, error)
	ListExpenses(ctx context.Context) ([]core.StoredExpense, error)
}

// Deps are the collaborators of the server. Limiter may be nil; UploadDir
// empty disables serving receipts.
type Deps struct {
	Service        ExpenseService
	Catalog        *catalog.Catalog
	Rules          core.Rules
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter
	Logger         *log.Logger
	AllowedOrigins []string
	UploadDir      string
	UploadPath     string
	MaxUploadBytes int64
	SessionTTL     time.Duration
	MaxSessions    int
	Clock          func() time.Time
}

type Server struct {
	http.Server
	service        ExpenseService
	catalog        *catalog.Catalog
	metrics        *metrics.Metrics
	sessions       *Sessions
	logger         *log.Logger
	maxUploadBytes int64
	now            func() time.Time
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = log.Discard()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = 30 * time.Minute
	}
	if d.MaxSessions <= 0 {
		d.MaxSessions = 1000
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}

	s := &Server{
		service:        d.Service,
		catalog:        d.Catalog,
		metrics:        d.Metrics,
		logger:         d.Logger.WithComponent(log.ComponentHTTP),
		maxUploadBytes: d.MaxUploadBytes,
		now:            d.Clock,
	}

	steps := wizard.DefaultSteps(d.Rules)
	opts := []wizard.Option{
		wizard.WithGateObserver(func(id wizard.StepID) { d.Metrics.GateFailed(string(id)) }),
		wizard.WithClock(d.Clock),
	}
	s.sessions = NewSessions(d.MaxSessions, d.SessionTTL,
		func() *wizard.Engine { return wizard.New(steps, d.Rules, d.Service, opts...) },
		d.Metrics.SetSessions,
	)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(d),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Sessions exposes the wizard session store so the janitor can sweep it.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

func (s *Server) routes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware(s.handleRateLimited, http.MethodPost, http.MethodPut, http.MethodDelete))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", s.handleCategories)
		r.Get("/categories/{category}/subcategories", s.handleSubCategories)

		r.Get("/expenses", s.handleListExpenses)
		r.Post("/expenses", s.handleCreateExpense)

		r.Post("/wizards", s.handleCreateWizard)
		r.Route("/wizards/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWizard)
			r.Delete("/", s.handleDeleteWizard)
			r.Put("/fields/{field}", s.handleSetField)
			r.Post("/advance", s.handleAdvance)
			r.Post("/retreat", s.handleRetreat)
			r.Post("/attachment", s.handleAttachment)
			r.Post("/submit", s.handleSubmit)
		})
	})

	if d.UploadDir != "" {
		prefix := "/" + strings.Trim(d.UploadPath, "/")
		if prefix == "/" {
			prefix = "/uploads"
		}
		files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(d.UploadDir)))
		r.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Cache-Control", "private, max-age=86400")
			files.ServeHTTP(w, r)
		})
	}

	return r
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
}
