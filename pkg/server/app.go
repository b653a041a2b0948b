package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"MacroChain/internal/service/registry"
	"MacroChain/internal/usecase"
	"MacroChain/pkg/config"
	xhttp "MacroChain/pkg/http"
	pkgkafka "MacroChain/pkg/kafka"
	applogger "MacroChain/pkg/logger"
	"MacroChain/pkg/queue"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg          *config.Config
	l            *applogger.Logger
	collector    *usecase.DocumentCollector
	consumer     *pkgkafka.Consumer
	kh           pkgkafka.MessageHandler
	jobs         *queue.RedisQueue
	registry     *registry.Registry
	httpServer   *xhttp.Server
	httpHandlers []xhttp.Handler
	closers      []namedCloser
	cancel       context.CancelFunc
}

// New creates a new App. collector may be nil when no live source is configured.
func New(cfg *config.Config, l *applogger.Logger, collector *usecase.DocumentCollector, reg *registry.Registry) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, collector: collector, registry: reg}
}

// SetHTTPHandlers allows DI to inject the HTTP handlers.
func (a *App) SetHTTPHandlers(hs []xhttp.Handler) { a.httpHandlers = hs }

// SetConsumer attaches a Kafka consumer and the handler for its topic.
func (a *App) SetConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = kh
}

// SetJobQueue attaches the background job queue.
func (a *App) SetJobQueue(q *queue.RedisQueue) { a.jobs = q }

// AddCloser registers a resource released on shutdown, last added first.
func (a *App) AddCloser(name string, c io.Closer) {
	if c == nil {
		return
	}
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer cancel()

	if err := a.Start(ctx); err != nil {
		_ = a.shutdown(context.Background())
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// Start launches every configured component without blocking.
func (a *App) Start(ctx context.Context) error {
	a.httpServer = xhttp.NewServer(a.httpHandlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(len(a.cfg.Server.CORSOrigins) > 0, a.cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Server.WriteTimeout/2),
		xhttp.WithMetricsPath(a.cfg.Metrics.Path),
		xhttp.WithLogger(a.l),
	)

	if a.registry != nil {
		go a.registry.Run(ctx, a.cfg.Registry.RefreshInterval)
	}

	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			// the collector reconnects on its own once running; a failed first
			// connect is reported but does not stop the API
			a.l.Error("collector error", applogger.Error(err))
		} else {
			a.l.Info("collector started", applogger.String("source", a.cfg.Source.Type), applogger.String("routing", a.cfg.Source.Routing))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Stop cancels background work and releases every resource.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
		a.collector.Processor().Close()
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// flush aggregated logs while the producer is still open
	a.l.RemoveCollector()

	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
