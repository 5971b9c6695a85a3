package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/Resinat/Relayview/internal/api"
	"github.com/Resinat/Relayview/internal/bridge"
	"github.com/Resinat/Relayview/internal/buildinfo"
	"github.com/Resinat/Relayview/internal/clock"
	"github.com/Resinat/Relayview/internal/config"
	"github.com/Resinat/Relayview/internal/endpoint"
	"github.com/Resinat/Relayview/internal/events"
	"github.com/Resinat/Relayview/internal/logging"
	"github.com/Resinat/Relayview/internal/maintenance"
	"github.com/Resinat/Relayview/internal/metrics"
	"github.com/Resinat/Relayview/internal/orchestrator"
	"github.com/Resinat/Relayview/internal/routing"
	"github.com/Resinat/Relayview/internal/session"
	"github.com/Resinat/Relayview/webui"
)

const shutdownTimeout = 5 * time.Second

type relayviewApp struct {
	envCfg *config.EnvConfig
	log    zerolog.Logger

	endpoints *endpoint.Registry
	store     *session.Store
	orch      *orchestrator.Orchestrator
	hub       *bridge.Hub
	sampler   *metrics.Sampler
	scheduler *maintenance.Scheduler
	promReg   *prometheus.Registry

	apiSrv *api.Server
	ln     net.Listener
}

func newRelayviewApp(envCfg *config.EnvConfig, catalog *config.Catalog, log zerolog.Logger) (*relayviewApp, error) {
	app := &relayviewApp{envCfg: envCfg, log: log}

	var err error
	app.endpoints, err = endpoint.NewRegistry(catalog.EndpointList(), endpoint.Config{
		Clock:             clock.Real{},
		BlockCooldown:     envCfg.BlockCooldown,
		IdleRecoveryAfter: envCfg.IdleRecoveryAfter,
		Log:               logging.Component(log, "endpoint"),
	})
	if err != nil {
		return nil, fmt.Errorf("endpoint registry: %w", err)
	}

	app.store = session.NewStore(envCfg.HistorySize)
	bus := events.NewBus(logging.Component(log, "events"))
	app.hub = bridge.NewHub(logging.Component(log, "bridge"))

	app.orch = orchestrator.New(app.endpoints, routing.NewSelector(app.endpoints), app.store, bus, app.hub, orchestrator.Config{
		LoadTimeout:     envCfg.LoadTimeout,
		MaxRetries:      envCfg.MaxRetries,
		RetryBackoffMin: envCfg.RetryBackoffMin,
		RetryBackoffMax: envCfg.RetryBackoffMax,
		EmbedOrigin:     envCfg.EmbedOrigin,
		UserAgents:      catalog.UserAgents,
		Log:             logging.Component(log, "orchestrator"),
	})
	app.hub.Bind(app.orch)
	app.orch.Subscribe(app.hub.Listener())

	app.initObservability()

	app.scheduler, err = maintenance.NewScheduler(envCfg.RecoverySchedule, app.orch, logging.Component(log, "maintenance"))
	if err != nil {
		app.closeCore()
		return nil, err
	}

	if err := app.buildNetworkServer(); err != nil {
		app.closeCore()
		return nil, err
	}

	app.startBackgroundServices()
	return app, nil
}

func (a *relayviewApp) initObservability() {
	a.promReg = prometheus.NewRegistry()
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(a.promReg, a.orch)
	a.orch.Subscribe(collector.Listener())
	metrics.RegisterBridge(a.promReg, a.hub)

	a.sampler = metrics.NewSampler(a.orch, metrics.NewRealtimeRing(0), 0)
}

func (a *relayviewApp) buildNetworkServer() error {
	hostPage, err := webui.DistFS()
	if err != nil {
		return fmt.Errorf("host page: %w", err)
	}
	a.apiSrv = api.NewServer(api.Options{
		ListenAddress: a.envCfg.ListenAddress,
		Port:          a.envCfg.Port,
		MaxBodyBytes:  int64(a.envCfg.APIMaxBodyBytes),
		Controller:    a.orch,
		SystemInfo:    buildinfo.Current(time.Now().UTC()),
		Gatherer:      a.promReg,
		Sampler:       a.sampler,
		Bridge:        a.hub,
		HostPage:      hostPage,
		Log:           logging.Component(a.log, "api"),
	})
	ln, err := net.Listen("tcp", a.apiSrv.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.apiSrv.Addr(), err)
	}
	a.ln = ln
	return nil
}

func (a *relayviewApp) startBackgroundServices() {
	a.sampler.Start()
	a.scheduler.Start()
	a.log.Info().
		Str("schedule", a.envCfg.RecoverySchedule).
		Time("next", a.scheduler.Next()).
		Msg("endpoint recovery scheduled")
}

func (a *relayviewApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", "http://"+a.ln.Addr().String()).Msg("Relayview server starting")
		err := a.apiSrv.Serve(a.ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		select {
		case serverErrCh <- fmt.Errorf("api server: %w", err):
		default:
		}
	}()
	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error, log zerolog.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		return nil
	case err := <-serverErrCh:
		log.Error().Err(err).Msg("server runtime error, shutting down")
		return err
	}
}

// shutdown stops the HTTP surface first, then the event sources, then the
// sinks.
func (a *relayviewApp) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.apiSrv.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("server shutdown error")
	}
	a.hub.Close()
	a.log.Info().Msg("Relayview server stopped")

	if err := a.scheduler.Stop(ctx); err != nil {
		a.log.Warn().Err(err).Msg("recovery scheduler stop error")
	}
	a.sampler.Stop()
	a.closeCore()
	a.log.Info().Msg("shutdown complete")
}

// closeCore cancels every session and cooldown timer.
func (a *relayviewApp) closeCore() {
	a.orch.Close()
	a.endpoints.Close()
	a.store.Close()
}
