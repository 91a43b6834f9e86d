// engined - resilience and cost-governance core for opportunity analysis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/api"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/breaker"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/budget"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/cache"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/collector"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/config"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/janitor"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/ledger"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/metrics"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/notify"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/queue"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/storage"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "engine.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("engined %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Local development convenience; absent files are fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Msg("starting engined")

	clk := clock.New()
	m := metrics.New()

	// Storage
	var store storage.Store
	switch cfg.Storage.Engine {
	case "memory":
		store = storage.NewMemoryStore()
	default:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("data_dir", cfg.Storage.DataDir).Msg("failed to create data directory")
		}
		store, err = storage.NewBadgerStore(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open storage")
		}
	}
	defer store.Close()

	// Redis-backed tiers when configured
	var externalTier cache.ExternalTier
	var analysisQueue queue.Queue
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, continuing without it")
		} else {
			externalTier = cache.NewRedisTier(client, cfg.Redis.KeyPrefix)
			analysisQueue = queue.NewRedisQueue("analysis", client)
		}
		cancel()
	}
	if analysisQueue == nil {
		analysisQueue = queue.NewMemoryQueue("analysis")
	}

	// Circuit breakers: rate limiting is handled by waiting, never by tripping.
	breakers := breaker.NewRegistry(&breaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		MinimumThroughput: cfg.Breaker.MinimumThroughput,
		ResetTimeout:      cfg.Breaker.ResetTimeout.Duration(),
		CountsAsFailure: func(err error) bool {
			return !errors.Is(err, models.ErrRateLimited)
		},
		OnStateChange: func(name string, from, to breaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit state changed")
			m.RecordBreakerTransition(name, to.String())
		},
	}, clk)

	// Cache
	cacheManager := cache.New(&cache.Config{
		MemoryBudgetBytes: cfg.Cache.MemoryBudgetBytes,
		DefaultTTL:        cfg.Cache.DefaultTTL.Duration(),
	}, externalTier, clk, logger)

	// Collector; left unconfigured without a primary source
	var coll *collector.Collector
	if primary := newSource(cfg.Collector.Primary); primary != nil {
		coll = collector.New(collector.Options{
			Primary:  primary,
			Fallback: newSource(cfg.Collector.Fallback),
			Breakers: breakers,
			Cache:    cacheManager,
			Metrics:  m,
			Clock:    clk,
		}, &collector.Config{
			MinDelay:            cfg.Collector.MinDelay.Duration(),
			RequestsPerMinute:   cfg.Collector.RequestsPerMinute,
			RetryAttempts:       cfg.Collector.RetryAttempts,
			BackoffBase:         cfg.Collector.BackoffBase.Duration(),
			BackoffCap:          cfg.Collector.BackoffCap.Duration(),
			PageSize:            cfg.Collector.PageSize,
			PageTTL:             cfg.Collector.PageTTL.Duration(),
			MaxReplyDepth:       cfg.Collector.MaxReplyDepth,
			ReplyLimit:          cfg.Collector.ReplyLimit,
			ReplySort:           cfg.Collector.ReplySort,
			HighValueProportion: cfg.Collector.HighValueProportion,
			AnonymizationSalt:   cfg.Collector.AnonymizationSalt,
		}, logger)
	}

	// Cost ledger and budget enforcement
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Budget.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Budget.WebhookURL, cfg.Budget.NotifyTimeout.Duration(), logger)
	}
	costLedger := ledger.New(store, clk, logger, m)
	enforcer := budget.New(&budget.Config{
		ApproachingRatio: cfg.Budget.ApproachingRatio,
		CancelRatio:      cfg.Budget.CancelRatio,
		NotifyTimeout:    cfg.Budget.NotifyTimeout.Duration(),
	}, store, analysisQueue, notifier, clk, logger, m)
	costLedger.OnUpdate(enforcer.OnCostUpdate)

	// Janitor
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jan := janitor.New(&janitor.Config{
		Interval:      cfg.Janitor.Interval.Duration(),
		StaleJobAge:   cfg.Janitor.StaleJobAge.Duration(),
		RetryAttempts: cfg.Janitor.RetryAttempts,
		Retention:     cfg.Janitor.Retention.Duration(),
	}, store, []queue.Queue{analysisQueue}, notifier, clk, logger, m)
	jan.Start(ctx)

	// HTTP server
	handler := api.NewHandler(store, costLedger, enforcer, breakers, cacheManager, jan, coll, logger)
	routerCfg := api.RouterConfig{}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = m.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	router := api.NewRouterWithConfig(handler, logger, routerCfg)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	jan.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	logger.Info().Msg("engined stopped")
}

func newSource(cfg config.SourceConfig) collector.Source {
	if cfg.BaseURL == "" {
		return nil
	}
	return collector.NewHTTPSource(collector.HTTPSourceConfig{
		Name:    cfg.Name,
		BaseURL: cfg.BaseURL,
		Headers: cfg.Headers,
		Timeout: cfg.Timeout.Duration(),
	})
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	var logger zerolog.Logger
	if cfg.Format == "text" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}
	logger = logger.With().Timestamp().Logger()

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}
