package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/optflow/deriv-data/internal/api"
	"github.com/optflow/deriv-data/internal/buffer"
	"github.com/optflow/deriv-data/internal/config"
	"github.com/optflow/deriv-data/internal/database"
	"github.com/optflow/deriv-data/internal/decode"
	"github.com/optflow/deriv-data/internal/gaps"
	"github.com/optflow/deriv-data/internal/model"
	"github.com/optflow/deriv-data/internal/ratelimit"
	"github.com/optflow/deriv-data/internal/snapshot"
	"github.com/optflow/deriv-data/internal/status"
	"github.com/optflow/deriv-data/internal/stream"
	"github.com/optflow/deriv-data/internal/universe"
	"github.com/optflow/deriv-data/internal/version"
	"github.com/optflow/deriv-data/internal/writer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	session := uuid.New()
	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"session_id", session,
		"currencies", cfg.Universe.Currencies,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// One limiter for every REST-issuing component; the configured rate is
	// the aggregate ceiling.
	limiter := ratelimit.New(cfg.API.RateLimit, cfg.API.RateBurst)

	apiClient := api.NewClient(
		cfg.API.RestURL,
		limiter,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Instrument discovery (blocking initial sync).
	uni := universe.New(universe.Config{
		Currencies:      cfg.Universe.Currencies,
		Kinds:           cfg.Universe.Kinds,
		MaxInstruments:  cfg.Universe.MaxInstruments,
		RefreshInterval: cfg.Universe.RefreshInterval,
	}, apiClient, logger)
	uni.SetRecorder(universe.NewPGRecorder(pool))

	if err := uni.Start(ctx); err != nil {
		logger.Error("failed to start universe", "error", err)
		os.Exit(1)
	}

	// Staging buffer shared by every producer.
	buf := buffer.New[model.Event](cfg.Buffer.Capacity, cfg.Buffer.HighWater)

	w := writer.New(writer.Config{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
		MaxRetries:    cfg.Writer.MaxRetries,
		RetryBackoff:  cfg.Writer.RetryBackoff,
	}, buf, pool, logger)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start writer", "error", err)
		os.Exit(1)
	}

	// One streaming session per currency.
	decoder := decode.New(logger)
	managerCfg := stream.ManagerConfig{
		WSURL:              cfg.API.WSURL,
		Channels:           cfg.Stream.Channels,
		ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
		ReadTimeout:        cfg.Stream.ReadTimeout,
		WriteTimeout:       cfg.Stream.WriteTimeout,
		SubscribeTimeout:   cfg.Stream.SubscribeTimeout,
		SubscribeBatchSize: cfg.Stream.SubscribeBatchSize,
	}

	managers := make(map[string]*stream.Manager, len(cfg.Universe.Currencies))
	var sources []status.Source
	for _, currency := range cfg.Universe.Currencies {
		m := stream.NewManager(managerCfg, currency, buf, decoder, logger)
		m.SetInstruments(uni.InstrumentNames(currency))
		if err := m.Start(ctx); err != nil {
			logger.Error("failed to start stream manager", "currency", currency, "error", err)
			os.Exit(1)
		}
		managers[currency] = m
		sources = append(sources, m)
	}

	fetcherCfg := snapshot.DefaultConfig()
	fetcherCfg.Interval = cfg.Snapshot.Interval
	fetcherCfg.Depth = cfg.Snapshot.Depth
	fetcherCfg.Timeout = cfg.API.Timeout
	fetcher := snapshot.New(fetcherCfg, apiClient, uni, buf, logger)
	if err := fetcher.Start(ctx); err != nil {
		logger.Error("failed to start snapshot fetcher", "error", err)
		os.Exit(1)
	}

	// Backfill gets its own client so its retry budget is independent of
	// live calls; the limiter is still shared.
	backfillClient := api.NewClient(
		cfg.API.RestURL,
		limiter,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.Backfill.MaxRetries, cfg.Backfill.RetryBackoff),
	)
	coordinator := gaps.New(gaps.Config{
		Resolution:   cfg.Backfill.Resolution,
		ScanInterval: cfg.Backfill.ScanInterval,
		Lookback:     cfg.Backfill.Lookback,
		PageSize:     cfg.Backfill.PageSize,
	}, gaps.NewPGStore(pool), backfillClient, uni, buf, logger)
	if err := coordinator.Start(ctx); err != nil {
		logger.Error("failed to start gap coordinator", "error", err)
		os.Exit(1)
	}

	reporter := status.New(status.Config{Interval: cfg.Status.Interval},
		status.NewPGStore(pool), sources, session, logger)
	if err := reporter.Start(ctx); err != nil {
		logger.Error("failed to start status reporter", "error", err)
		os.Exit(1)
	}

	// Forward universe refreshes to the per-currency sessions.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case change := <-uni.Changes():
				if m, ok := managers[change.Currency]; ok {
					logger.Info("applying instrument set change",
						"currency", change.Currency,
						"instruments", len(change.Names),
						"added", change.Added,
						"removed", change.Removed,
					)
					m.SetInstruments(change.Names)
				}
			}
		}
	})

	logger.Info("collector running", "instance_id", cfg.Instance.ID)

	<-ctx.Done()
	logger.Info("shutting down")
	g.Wait()

	// Producers stop first so nothing feeds the buffer during the final
	// drain; the writer's Stop flushes whatever is still staged.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for currency, m := range managers {
		if err := m.Stop(shutdownCtx); err != nil {
			logger.Warn("stream manager stop", "currency", currency, "error", err)
		}
	}
	if err := fetcher.Stop(shutdownCtx); err != nil {
		logger.Warn("snapshot fetcher stop", "error", err)
	}
	if err := coordinator.Stop(shutdownCtx); err != nil {
		logger.Warn("gap coordinator stop", "error", err)
	}
	if err := uni.Stop(shutdownCtx); err != nil {
		logger.Warn("universe stop", "error", err)
	}

	if err := w.Stop(shutdownCtx); err != nil {
		logger.Warn("writer stop", "error", err)
	}

	// Final heartbeat records the shutdown state.
	if err := reporter.Stop(shutdownCtx); err != nil {
		logger.Warn("status reporter stop", "error", err)
	}

	stats := w.Stats()
	logger.Info("collector stopped",
		"rows_written", stats.Rows,
		"flushes", stats.Flushes,
	)
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
