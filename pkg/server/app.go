package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RegimeChain/internal/usecase"
	xhttp "RegimeChain/pkg/http"
	pkgkafka "RegimeChain/pkg/kafka"
	applogger "RegimeChain/pkg/logger"
)

// Collector is a live ingestion loop driven by ctx.
type Collector interface {
	Start(ctx context.Context) error
	Stop() error
}

// Warmer rebuilds engine state from stored bars before ingestion starts.
type Warmer interface {
	Run(ctx context.Context, symbols []string) (usecase.WarmupResult, error)
}

// Ingestion is whichever bar source is configured. Both may be nil.
type Ingestion struct {
	Consumer  *pkgkafka.Consumer
	Handler   pkgkafka.MessageHandler
	Collector Collector
}

// Resource is something closed on shutdown, in registration order.
type Resource struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	symbols    []string
	httpServer *xhttp.Server
	ingest     Ingestion
	warmup     Warmer
	resources  []Resource

	warmupTimeout   time.Duration
	shutdownTimeout time.Duration
}

type AppOption func(*App)

// WithWarmup replays stored history for symbols before ingestion starts.
func WithWarmup(w Warmer, symbols []string, timeout time.Duration) AppOption {
	return func(a *App) {
		a.warmup = w
		a.symbols = symbols
		if timeout > 0 {
			a.warmupTimeout = timeout
		}
	}
}

func WithIngestion(in Ingestion) AppOption {
	return func(a *App) { a.ingest = in }
}

// WithResources appends resources closed after ingestion and HTTP have stopped.
func WithResources(rs ...Resource) AppOption {
	return func(a *App) { a.resources = append(a.resources, rs...) }
}

func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New creates a new App around an HTTP server; ingestion and warm-up are options.
func New(log *applogger.Logger, httpServer *xhttp.Server, opts ...AppOption) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{
		log:             log,
		httpServer:      httpServer,
		warmupTimeout:   2 * time.Minute,
		shutdownTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run warms up, starts ingestion and HTTP, then blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.warmup != nil {
		wctx, cancel := context.WithTimeout(ctx, a.warmupTimeout)
		res, err := a.warmup.Run(wctx, a.symbols)
		cancel()
		if err != nil {
			// a cold start is still a valid start
			a.log.Warn("warmup incomplete", applogger.Error(err))
		}
		a.log.Info("warmup finished", applogger.Int("symbols", len(res.Replayed)))
	}

	runCtx, stopIngest := context.WithCancel(ctx)
	defer stopIngest()

	if err := a.startIngestion(runCtx); err != nil {
		stopIngest()
		return errors.Join(err, a.shutdown())
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			stopIngest()
			return errors.Join(err, a.shutdown())
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	stopIngest()
	return a.shutdown()
}

func (a *App) startIngestion(ctx context.Context) error {
	if c := a.ingest.Consumer; c != nil && a.ingest.Handler != nil {
		c.RegisterHandler(a.ingest.Handler)
		if err := c.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.ingest.Handler.Topic()))
	}
	if a.ingest.Collector != nil {
		if err := a.ingest.Collector.Start(ctx); err != nil {
			return fmt.Errorf("trade collector: %w", err)
		}
		a.log.Info("trade collector started", applogger.Strings("symbols", a.symbols))
	}
	return nil
}

// shutdown stops intake first, then HTTP, then closes resources.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.ingest.Collector != nil {
		if err := a.ingest.Collector.Stop(); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.ingest.Consumer != nil {
		if err := a.ingest.Consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer stop: %w", err))
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range a.resources {
		if r.Close == nil {
			continue
		}
		if err := r.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", r.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", r.Name, err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
