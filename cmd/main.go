package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/scorebot/internal/adapters/http/api"
	"github.com/okian/scorebot/internal/adapters/http/swagger"
	"github.com/okian/scorebot/internal/adapters/telegram"
	app "github.com/okian/scorebot/internal/app"
	"github.com/okian/scorebot/internal/config"
	"github.com/okian/scorebot/pkg/logger"
	"github.com/okian/scorebot/pkg/metrics"
	"github.com/okian/scorebot/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Go runtime metrics are replaced by the custom system metrics below.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "scorebot exited", logger.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run loads configuration and serves until ctx is canceled.
func run(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.OTelEndpoint, cfg.AppName, cfg.ServiceVersion)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			loggerInstance.Warn(ctx, "tracing shutdown failed", logger.Error(err))
		}
	}()

	svc, handler, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.Bool("tracing", tracing.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop taking updates first, then let queued replies drain.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// build wires the Telegram client, service and HTTP routes from cfg.
func build(ctx context.Context, cfg *config.Config) (*app.Service, http.Handler, error) {
	players, err := cfg.Roster()
	if err != nil {
		return nil, nil, fmt.Errorf("roster: %w", err)
	}

	client, err := telegram.NewClient(cfg.BotToken,
		telegram.WithBaseURL(cfg.TelegramAPIURL),
		telegram.WithTimeout(cfg.RequestTimeout()),
		telegram.WithLogger(logger.Named("telegram").With(logger.String("app", cfg.AppName))),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram client: %w", err)
	}

	svc := app.New(players, client,
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithShardCount(cfg.ShardCount),
		app.WithSendAttempts(cfg.SendAttempts),
		app.WithSendBackoff(cfg.SendBackoff()),
		app.WithLogger(logger.Named("service").With(logger.String("app", cfg.AppName))),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(api.Config{
		AppName:           cfg.AppName,
		BotToken:          cfg.BotToken,
		PublicURL:         cfg.PublicURL,
		RenderExternalURL: cfg.RenderExternalURL,
	}, svc, client).Register(ctx, mux)

	return svc, mux, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges derived from service stats.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if chats, ok := stats["chats"].(int); ok {
		metrics.UpdateChatsTracked(chats)
	}
}
