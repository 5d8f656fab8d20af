package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/flightdeck/precedent/internal/api/handlers"
	mw "github.com/flightdeck/precedent/internal/api/middleware"
	"github.com/flightdeck/precedent/internal/buildconfig"
	"github.com/flightdeck/precedent/internal/config"
	"github.com/flightdeck/precedent/internal/domain"
	"github.com/flightdeck/precedent/internal/service"
	"github.com/flightdeck/precedent/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and request counters for the metrics endpoint.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	playbookStore := store.NewPlaybookStore(db)
	caseStore := store.NewCaseStore(db)
	policyStore := store.NewPolicyStore(db)

	// Services
	minerSvc := service.NewMinerService(caseStore, logger)
	playbookSvc := service.NewPlaybookService(playbookStore, policyStore, minerSvc, logger)
	evaluatorSvc := service.NewEvaluatorService(playbookSvc, logger)

	// Handlers
	playbookHandler := handlers.NewPlaybookHandler(playbookSvc)
	evaluatorHandler := handlers.NewEvaluatorHandler(evaluatorSvc)
	miningHandler := handlers.NewMiningHandler(minerSvc)
	policyHandler := handlers.NewPolicyHandler(policyStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		// Playbooks
		r.Route("/playbooks", func(r chi.Router) {
			r.Post("/", playbookHandler.Create)
			r.Post("/from-case", playbookHandler.CreateFromCase)
			r.Post("/match", playbookHandler.Match)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", playbookHandler.GetByID)
				r.Post("/usage", playbookHandler.RecordUsage)
			})
		})

		// Evaluation
		r.Route("/evaluation", func(r chi.Router) {
			r.Post("/match", evaluatorHandler.EvaluateMatch)
			r.Post("/gate", evaluatorHandler.ReplayGate)
			r.Post("/outcome", evaluatorHandler.EvaluateOutcome)
		})

		// Mining
		r.Route("/mining", func(r chi.Router) {
			r.Get("/cases/{id}", miningHandler.MineCase)
			r.Get("/successful", miningHandler.MineSuccessful)
		})

		// Policies
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", policyHandler.ListActive)
			r.Get("/snapshot", playbookHandler.GetPolicySnapshot)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.PlaybookStore = (*store.PlaybookStore)(nil)
	_ domain.CaseStore     = (*store.CaseStore)(nil)
	_ domain.PolicyStore   = (*store.PolicyStore)(nil)
)
