package ui

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"loostaar/app"
	"loostaar/internal"
)

// App serves the leave-one-out API
type App struct {
	router   *chi.Mux
	analysis *app.AnalysisService
	config   Config
	logger   *internal.Logger
}

// Config holds API settings. MAFCutoff and Concurrency apply when a request
// leaves them unset.
type Config struct {
	Port        string
	MAFCutoff   float64
	Concurrency int
	// RunTimeout bounds a synchronous POST /api/runs; zero means none
	RunTimeout time.Duration
}

// NewApp creates the API application
func NewApp(analysis *app.AnalysisService, config Config) *App {
	a := &App{
		router:   chi.NewRouter(),
		analysis: analysis,
		config:   config,
		logger:   internal.DefaultLogger.With("ui"),
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)

	a.router.Route("/api/runs", func(r chi.Router) {
		r.Post("/", a.handleCreateRun)
		r.Get("/", a.handleListRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetRun)
			r.Delete("/", a.handleDeleteRun)
			r.Get("/table.csv", a.handleTableCSV)
			r.Get("/table.xlsx", a.handleTableXLSX)
			r.Get("/plot.svg", a.handlePlot)
			r.Get("/report", a.handleReport)
		})
	})
}

// Handler exposes the router, mainly for tests
func (a *App) Handler() http.Handler {
	return a.router
}

// Start starts the HTTP server
func (a *App) Start() error {
	port := a.config.Port
	if port == "" {
		port = "8080"
	}
	a.logger.Info("starting leave-one-out API on :%s", port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
