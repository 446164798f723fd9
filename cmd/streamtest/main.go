// streamtest connects to the exchange WebSocket and prints decoded events
// to the console. Useful for verifying channel subscriptions and payload
// decoding against the live feed without a database.
//
// Usage: go run ./cmd/streamtest --config configs/collector.yaml --currency BTC
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/optflow/deriv-data/internal/api"
	"github.com/optflow/deriv-data/internal/config"
	"github.com/optflow/deriv-data/internal/decode"
	"github.com/optflow/deriv-data/internal/model"
	"github.com/optflow/deriv-data/internal/ratelimit"
	"github.com/optflow/deriv-data/internal/stream"
	"github.com/optflow/deriv-data/internal/universe"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	currency := flag.String("currency", "BTC", "currency to stream")
	instruments := flag.String("instruments", "", "comma-separated instrument names (skips discovery)")
	verbose := flag.Bool("verbose", false, "print every quote field")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	names := splitList(*instruments)
	if len(names) == 0 {
		names, err = discover(ctx, cfg, *currency, logger)
		if err != nil {
			logger.Error("instrument discovery failed", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("streaming instruments", "currency", *currency, "count", len(names))

	decoder := decode.New(logger)
	sink := &consoleSink{verbose: *verbose}

	managerCfg := stream.DefaultManagerConfig()
	managerCfg.WSURL = cfg.API.WSURL
	if len(cfg.Stream.Channels) > 0 {
		managerCfg.Channels = cfg.Stream.Channels
	}

	mgr := stream.NewManager(managerCfg, *currency, sink, decoder, logger)
	mgr.SetInstruments(names)
	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start stream manager", "error", err)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := mgr.Status()
				d := decoder.Stats()
				logger.Info("stats",
					"state", s.State,
					"subscribed", s.SubscribedChannels,
					"decoded", d.Decoded,
					"parse_errors", d.ParseErrors,
					"unknown", d.Unknown,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

// discover pulls the instrument set for one currency the same way the
// collector does, minus persistence.
func discover(ctx context.Context, cfg *config.CollectorConfig, currency string, logger *slog.Logger) ([]string, error) {
	limiter := ratelimit.New(cfg.API.RateLimit, cfg.API.RateBurst)
	client := api.NewClient(cfg.API.RestURL, limiter, api.WithLogger(logger))

	uni := universe.New(universe.Config{
		Currencies:      []string{currency},
		Kinds:           cfg.Universe.Kinds,
		MaxInstruments:  cfg.Universe.MaxInstruments,
		RefreshInterval: time.Hour,
	}, client, logger)

	if err := uni.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		uni.Stop(stopCtx)
	}()

	return uni.InstrumentNames(currency), nil
}

// consoleSink prints decoded events instead of staging them.
type consoleSink struct {
	verbose bool
}

func (s *consoleSink) TryEnqueue(ev model.Event) bool {
	switch e := ev.(type) {
	case model.QuoteUpdate:
		if s.verbose {
			fmt.Printf("[QUOTE] %+v\n", e)
		} else {
			fmt.Printf("[QUOTE] %s ts=%d bid=%s ask=%s mark=%s delta=%s\n",
				e.Instrument, e.TS, fv(e.BestBid), fv(e.BestAsk), fv(e.MarkPrice), fv(e.Delta))
		}
	case model.TradeEvent:
		fmt.Printf("[TRADE] %s id=%s price=%g amount=%g dir=%s\n",
			e.Instrument, e.TradeID, e.Price, e.Amount, e.Direction)
	default:
		fmt.Printf("[EVENT] %+v\n", e)
	}
	return true
}

// fv formats an optional value, "-" when absent.
func fv(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
