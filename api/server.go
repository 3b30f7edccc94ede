// Package api provides the HTTP server for DTF Scope.
//
// It serves the dashboard page, JSON endpoints for categories, market data
// and full dashboard views, per-chart SVGs, Prometheus metrics and a
// WebSocket that pushes refreshed dashboards to subscribed pages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/seenimoa/dtfscope/internal/config"
	"github.com/seenimoa/dtfscope/internal/dashboard"
	"github.com/seenimoa/dtfscope/internal/observability"
	"github.com/seenimoa/dtfscope/internal/provider"
	"github.com/seenimoa/dtfscope/internal/report"
	"github.com/seenimoa/dtfscope/internal/viz"
	"github.com/seenimoa/dtfscope/web"
)

// Version is reported by the health endpoint. Set at build time.
var Version = "dev"

// Deps are the collaborators a Server renders with.
type Deps struct {
	Market    dashboard.MarketSource
	Headlines dashboard.HeadlineSource // optional
	Registry  *provider.Registry       // optional, listed at /api/v1/providers
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	deps     Deps
	shell    *dashboard.Shell
	wsHub    *WSHub
	chartCfg report.ChartConfig
	serveUI  bool // when true, serve the dashboard page and static assets
}

// NewServer creates a configured server with all routes and middleware.
func NewServer(cfg *config.Config, deps Deps) *Server {
	srv := &Server{
		cfg:      cfg,
		deps:     deps,
		wsHub:    NewWSHub(),
		chartCfg: report.DefaultChartConfig(),
		serveUI:  true,
	}

	opts := []dashboard.Option{
		dashboard.WithHistogramBins(cfg.Dashboard.HistogramBins),
		dashboard.WithRenderTimeout(cfg.Dashboard.RenderTimeout),
		dashboard.WithObserver(srv.publishState),
	}
	if deps.Headlines != nil {
		opts = append(opts, dashboard.WithHeadlines(deps.Headlines, cfg.Headlines.Limit))
	}
	srv.shell = dashboard.NewShell(deps.Market, opts...)

	srv.router = srv.buildRouter()
	return srv
}

// SetServeUI controls whether the dashboard page is served.
// Must be called before ListenAndServe.
func (s *Server) SetServeUI(enabled bool) {
	s.serveUI = enabled
	s.router = s.buildRouter()
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx, addr)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.wsHub.Run(hubCtx)
	go s.runRefresher(hubCtx)

	errc := make(chan error, 1)
	go func() {
		logx.Infof("api: listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logx.Info("api: shutting down server...")

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logxPrinter{}, NoColor: true}))
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	timeout := s.cfg.API.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.With(middleware.Timeout(timeout)).Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Get("/health", s.handleHealth)

			// Catalog and raw market data
			r.Get("/categories", s.handleCategories)
			r.Get("/categories/{id}/markets", s.handleMarkets)

			// Rendered dashboard
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/charts/{kind}.svg", s.handleChart)

			r.Get("/providers", s.handleProviders)

			// Configuration (read-only)
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})

		// Long-lived, outside the request timeout
		r.Get("/ws", s.handleWebSocket)
	})

	if s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, observability.Handler())
	}

	if s.serveUI {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))
		r.With(middleware.Timeout(timeout)).Get("/", s.handlePage)
	}

	return r
}

// logxPrinter routes chi access logs through logx.
type logxPrinter struct{}

func (logxPrinter) Print(v ...interface{}) { logx.Info(v...) }

// ============================================================
// Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DashboardPayload is a view plus its formatted summary tiles.
type DashboardPayload struct {
	View  *dashboard.View `json:"view"`
	Tiles []report.Tile   `json:"tiles"`
}

func dashboardPayload(v *dashboard.View) DashboardPayload {
	return DashboardPayload{View: v, Tiles: report.Tiles(v.Metrics)}
}

func requestFrom(r *http.Request) dashboard.Request {
	q := r.URL.Query()
	return dashboard.Request{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: strings.TrimSpace(q.Get("category")),
	}
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    Version,
			"time":       time.Now().UTC().Format(time.RFC3339),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	cats, err := s.shell.Categories(r.Context(), search)
	switch {
	case errors.Is(err, dashboard.ErrNoMatch):
		writeError(w, http.StatusNotFound, dashboard.MsgNoMatch)
		return
	case err != nil:
		logx.WithContext(r.Context()).Errorf("api: categories: %v", err)
		writeError(w, http.StatusBadGateway, dashboard.MsgCatalogFailed)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cats})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "category id is required")
		return
	}

	records, err := s.deps.Market.FetchCategoryMarket(r.Context(), id)
	if err != nil {
		var missing *provider.ErrMissingParam
		if errors.As(err, &missing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logx.WithContext(r.Context()).Errorf("api: markets %s: %v", id, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: records})
}

// handleDashboard renders a full view. A warning (no match) is a valid view;
// only an error state is reported as an upstream failure.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := s.shell.Render(r.Context(), requestFrom(r))
	if v.State == dashboard.StateError {
		writeJSON(w, http.StatusBadGateway, APIResponse{
			Success: false,
			Data:    dashboardPayload(v),
			Error:   v.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: dashboardPayload(v)})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	kind, err := viz.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	v := s.shell.Render(r.Context(), requestFrom(r))
	status := http.StatusOK
	if v.State == dashboard.StateError {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(report.ChartSVG(v, kind, s.chartCfg)))
}

// ProvidersResponse lists the registered providers and the models they serve.
type ProvidersResponse struct {
	Providers []provider.ProviderInfo         `json:"providers"`
	Coverage  map[provider.ModelType][]string `json:"coverage"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	resp := ProvidersResponse{
		Providers: []provider.ProviderInfo{},
		Coverage:  map[provider.ModelType][]string{},
	}
	if reg := s.deps.Registry; reg != nil {
		resp.Providers = reg.List()
		resp.Coverage = reg.ModelCoverage()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handlePage renders the interactive dashboard page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	v := s.shell.Render(r.Context(), requestFrom(r))

	cfg := report.DefaultReportConfig()
	cfg.StaticPrefix = "/static"
	cfg.Live = s.cfg.Dashboard.RefreshInterval > 0

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := report.WriteHTML(w, v, cfg); err != nil {
		logx.WithContext(r.Context()).Errorf("api: page: %v", err)
	}
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Errorf("api: failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
