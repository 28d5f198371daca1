// The api binary runs the solar lead exchange: the chat qualification
// endpoint, buyer feedback intake, analytics reads, and the background
// capacity and feedback loops.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/cache"
	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/config"
	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/llm"
	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/repository"
	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/telemetry"
	"github.com/brightlead/solar-lead-exchange-backend/internal/metrics"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/analytics"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/capacity"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/conversation"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/delivery"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/feedback"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/leadrouting"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/pipeline"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/pricing"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/revenue"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/scoring"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/solarcalc"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("solar-lead-exchange api %s\n", version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	slogger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slogger)

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newServiceLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create service logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	tel, err := telemetry.Setup(ctx, telemetry.DefaultTelemetryConfig(version, cfg.Environment))
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	domainMetrics, err := metrics.NewRegistry("solar-lead-exchange")
	if err != nil {
		return fmt.Errorf("create metrics registry: %w", err)
	}

	pool, err := repository.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	repos := repository.New(pool)

	redisCache, err := cache.NewRedisCache(&cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisCache.Close() //nolint:errcheck

	weights := scoring.NewWeightTable(scoring.Weights{
		BaseQualification: cfg.Scoring.BaseQualification,
		Behavioral:        cfg.Scoring.Behavioral,
		MarketTiming:      cfg.Scoring.MarketTiming,
		NYCIntelligence:   cfg.Scoring.NYCIntelligence,
	})
	domainMetrics.SetWeightsVersion(int64(weights.Snapshot().Version))

	registry := capacity.NewRegistry(repos.Platforms,
		capacity.WithCounterMirror(cache.NewCapacityMirror(redisCache)),
		capacity.WithLogger(logger))

	scoreCache := cache.NewScoreCache(redisCache)
	scorer := scoring.NewScorer(weights,
		scoring.WithMarketView(registry),
		scoring.WithScoreCache(scoreCache),
		scoring.WithLogger(logger))

	optimizer := leadrouting.NewOptimizer(registry, pricing.NewEngine(), repos.Decisions,
		leadrouting.WithRoutingWeights(leadrouting.RoutingWeights{
			ExpectedRevenue: cfg.Routing.ExpectedRevenue,
			Acceptance:      cfg.Routing.Acceptance,
			Headroom:        cfg.Routing.Headroom,
			TierMatch:       cfg.Routing.TierMatch,
			Geography:       cfg.Routing.Geography,
			AvgValue:        cfg.Routing.AvgValue,
		}),
		leadrouting.WithLogger(logger))

	tracker := revenue.NewTracker(repos.Outcomes,
		revenue.WithStateCache(cache.NewRevenueStateCache(redisCache)),
		revenue.WithLogger(logger))

	mailer := delivery.NewSMTPMailer(delivery.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	orchestrator := delivery.NewOrchestrator(mailer, repos.Outcomes,
		delivery.WithAttemptTimeout(cfg.Delivery.AttemptTimeout),
		delivery.WithMaxRetries(cfg.Delivery.MaxRetries),
		delivery.WithLogger(logger))

	handoff := pipeline.New(optimizer, orchestrator, repos.Platforms, repos.Leads, registry, logger)

	var generator llm.Generator
	if cfg.OpenAI.APIKey != "" {
		generator, err = llm.NewOpenAIGenerator(cfg.OpenAI)
		if err != nil {
			return fmt.Errorf("create llm client: %w", err)
		}
	} else {
		logger.Warn("no openai api key configured, chat will serve canned responses")
	}

	chat := conversation.NewService(
		conversation.NewKeywordExtractor(), scorer, tracker, solarcalc.NewCalculator(), generator,
		conversation.WithHandoff(handoff),
		conversation.WithLeadStore(repos.Leads),
		conversation.WithSolarCache(cache.NewSolarCache(redisCache)),
		conversation.WithLogger(logger))

	loop := feedback.NewLoop(repos.Feedback, repos.Feedback, weights, feedback.WithLogger(logger))

	srv := newServer(cfg, serverDeps{
		chat:       chat,
		feedback:   loop,
		analytics:  analytics.NewAggregator(repos.Analytics),
		capacity:   registry,
		weights:    weights,
		calculator: solarcalc.NewCalculator(),
		tracker:    tracker,
		optimizer:  optimizer,
		leads:      repos.Leads,
		scores:     scoreCache,
		metrics:    domainMetrics,
		pool:       pool,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(ctx, cfg.Capacity.RefreshInterval) })
	g.Go(func() error { return loop.Run(ctx, cfg.Feedback.AnalyzeInterval) })
	g.Go(func() error {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// newServiceLogger builds the zap logger used by the service layer. The
// transport layer logs through slog; both emit JSON to stdout.
func newServiceLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
