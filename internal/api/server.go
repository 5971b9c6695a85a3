package api

import (
	"context"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Resinat/Relayview/internal/buildinfo"
	"github.com/Resinat/Relayview/internal/endpoint"
	"github.com/Resinat/Relayview/internal/metrics"
	"github.com/Resinat/Relayview/internal/orchestrator"
	"github.com/Resinat/Relayview/internal/session"
	"github.com/Resinat/Relayview/internal/surface"
)

// Controller is the orchestrator surface the API drives.
type Controller interface {
	CreateSession(d orchestrator.Descriptor) (orchestrator.Handle, error)
	Loaded(id string, elapsed time.Duration) bool
	Failed(id string) bool
	ControlSession(id string, cmd surface.Command) bool
	ControlAll(cmd surface.Command) int
	RemoveSession(id string) bool
	ClearAll()
	OptimizeAll()
	ResetEndpoint(id string) bool

	GlobalStats() session.GlobalStats
	DetailedStats() session.DetailedStats
	ProxyAnalytics() endpoint.Analytics
	Session(id string) (session.Session, bool)
	Sessions() []session.Session
	History(id string) (session.Session, bool)
	Endpoint(id string) (endpoint.Info, bool)
	Endpoints() []endpoint.Info
	HealthyEndpoints() []string
}

var _ Controller = (*orchestrator.Orchestrator)(nil)

// Options configures the API server. Optional collaborators left nil leave
// their routes unregistered.
type Options struct {
	ListenAddress string
	Port          int
	MaxBodyBytes  int64

	Controller Controller
	SystemInfo buildinfo.Info

	Gatherer prometheus.Gatherer
	Sampler  *metrics.Sampler
	Bridge   http.Handler
	// HostPage is the page hosting the player frames, served at /.
	HostPage fs.FS

	Log zerolog.Logger
}

// Server wraps the HTTP server and mux for the Relayview API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", HandleHealthz())

	api := http.NewServeMux()
	api.Handle("GET /api/v1/system/info", HandleSystemInfo(opts.SystemInfo))

	if c := opts.Controller; c != nil {
		// Stats.
		api.Handle("GET /api/v1/stats", HandleGlobalStats(c))
		api.Handle("GET /api/v1/stats/detailed", HandleDetailedStats(c))

		// Endpoints.
		api.Handle("GET /api/v1/endpoints", HandleListEndpoints(c))
		api.Handle("GET /api/v1/endpoints/analytics", HandleEndpointAnalytics(c))
		api.Handle("GET /api/v1/endpoints/{id}", HandleGetEndpoint(c))
		api.Handle("POST /api/v1/endpoints/{id}/actions/reset", HandleResetEndpoint(c))
		api.Handle("POST /api/v1/endpoints/actions/optimize", HandleOptimizeEndpoints(c))

		// Sessions.
		api.Handle("GET /api/v1/sessions", HandleListSessions(c))
		api.Handle("POST /api/v1/sessions", HandleCreateSession(c))
		api.Handle("DELETE /api/v1/sessions", HandleClearSessions(c))
		api.Handle("POST /api/v1/sessions/actions/{command}", HandleControlAll(c))
		api.Handle("GET /api/v1/sessions/{id}", HandleGetSession(c))
		api.Handle("DELETE /api/v1/sessions/{id}", HandleDeleteSession(c))
		api.Handle("POST /api/v1/sessions/{id}/actions/{command}", HandleControlSession(c))
		api.Handle("POST /api/v1/sessions/{id}/signals/loaded", HandleLoadedSignal(c))
		api.Handle("POST /api/v1/sessions/{id}/signals/failed", HandleFailedSignal(c))
	}
	if opts.Sampler != nil {
		api.Handle("GET /api/v1/stats/realtime", HandleRealtimeStats(opts.Sampler))
	}

	limited := RequestBodyLimitMiddleware(opts.MaxBodyBytes, api)
	mux.Handle("/api/", AccessLogMiddleware(opts.Log, limited))

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", HandlePrometheus(opts.Gatherer))
	}
	if opts.Bridge != nil {
		mux.Handle("GET /ws", opts.Bridge)
	}
	if opts.HostPage != nil {
		mux.Handle("/", newHostPageHandler(opts.HostPage))
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(opts.ListenAddress, strconv.Itoa(opts.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln. It blocks until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
