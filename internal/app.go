package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strd/internal/controllers"
	"strd/internal/providers"
	"strd/internal/relay"
	"strd/internal/structures"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	WebServer *http.Server
	conf      *structures.Config
	logger    providers.Logger
	scheduler relay.SchedulerInterface
	receiver  *relay.Receiver
	bootstrap *Bootstrap
}

// NewApp builds the HTTP server of one process. receiver is nil in the
// monitor role.
func NewApp(healthController *controllers.HealthController, scheduler relay.SchedulerInterface, receiver *relay.Receiver, bootstrap *Bootstrap, conf *structures.Config, logger providers.Logger, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) (*App, error) {
	// Inner mux: API routes
	apiMux := http.NewServeMux()
	for _, route := range router.GetRoutes() {
		apiMux.Handle(route.Url, route.Handler)
	}

	// Wrap API routes with metrics middleware
	instrumentedAPI := providers.MetricsMiddleware(metrics, router.Paths(), apiMux)

	// Outer mux: infrastructure + instrumented API
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)

	return &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		conf:      conf,
		logger:    logger,
		scheduler: scheduler,
		receiver:  receiver,
		bootstrap: bootstrap,
	}, nil
}

// Run serves until SIGINT or SIGTERM, then stops the jobs, drains the server
// and flushes buffered samples.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.logger.Infof(providers.TypeApp, "Starting %s in %s role", a.conf.AppName, a.conf.Role)
	if err := a.bootstrap.Run(ctx); err != nil {
		return err
	}

	if err := a.scheduler.Refresh(ctx); err != nil {
		a.logger.Errorf(providers.TypeApp, "Initial sync error: %s", err)
	}
	a.scheduler.Init()

	if a.receiver != nil {
		go func() {
			if err := a.receiver.Run(ctx); err != nil {
				a.logger.Errorf(providers.TypeSync, "Usage event receiver stopped: %s", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", a.conf.WebServer.Host, a.conf.WebServer.Port)
		if err := a.WebServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		a.logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	a.scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := a.WebServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.scheduler.Persist(shutdownCtx); err != nil {
		return err
	}
	a.logger.Infof(providers.TypeApp, "gracefully stopped")
	return nil
}
