// Package main is the entry point for the Stratovisor cluster balancer.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/stratovisor/stratovisor/internal/balance"
	"github.com/stratovisor/stratovisor/internal/cache"
	"github.com/stratovisor/stratovisor/internal/config"
	"github.com/stratovisor/stratovisor/internal/controlplane"
	"github.com/stratovisor/stratovisor/internal/coordination"
	"github.com/stratovisor/stratovisor/internal/driver"
	"github.com/stratovisor/stratovisor/internal/power"
	"github.com/stratovisor/stratovisor/internal/rulestore"
	"github.com/stratovisor/stratovisor/internal/rulestore/memory"
	"github.com/stratovisor/stratovisor/internal/rulestore/postgres"
	"github.com/stratovisor/stratovisor/internal/snapshot"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		println("Stratovisor Balancer")
		println("Version:", version)
		println("Commit:", commit)
		println("Build Date:", buildDate)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		println("Failed to load config:", err.Error())
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("Starting Stratovisor Balancer",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("cluster", cfg.ControlPlane.Cluster),
	)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, *cfg, logger); err != nil {
		logger.Fatal("Balancer error", zap.Error(err))
	}

	logger.Info("Goodbye!")
}

// run wires the components and supervises the driver loops.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	// Control plane
	var cp controlplane.Client
	switch cfg.ControlPlane.Provider {
	case "static":
		logger.Warn("Using static control plane; no live cluster is attached")
		cp = controlplane.NewStaticClient(cfg.ControlPlane.Cluster)
	default:
		vc := controlplane.NewVSphereClient(cfg.ControlPlane, logger)
		if err := vc.Connect(ctx); err != nil {
			return err
		}
		defer vc.Close(context.Background())
		cp = vc
	}

	// Rule and recommendation stores. The static provider runs without
	// external services, so it gets in-memory stores.
	var (
		rules rulestore.Store
		recs  rulestore.RecommendationStore
	)
	if cfg.ControlPlane.Provider == "static" {
		rules = memory.NewRuleRepository()
		recs = memory.NewRecommendationRepository()
	} else {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		rules = postgres.NewRuleRepository(db, logger)
		recs = postgres.NewRecommendationRepository(db, logger)
	}

	// Leader election
	var leader coordination.LeaderChecker = coordination.AlwaysLeader{}
	if cfg.Etcd.Enabled {
		etcdClient, err := coordination.NewClient(cfg.Etcd, logger)
		if err != nil {
			return err
		}
		defer etcdClient.Close()

		elected, err := etcdClient.CampaignForLeader(ctx, "balancer", nil)
		if err != nil {
			return err
		}
		leader = elected
	}

	// Plan cache
	var planCache *cache.Cache
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		planCache = c
	}

	builder := snapshot.NewBuilder(cp, logger)
	planner := balance.NewPlanner(logger)
	executor := balance.NewExecutor(cp, logger)
	powerMgr := power.NewManager(cfg.DPM, cp, logger)

	d := driver.New(cfg, builder, planner, executor, powerMgr, rules, recs, planCache, leader, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.RunBalance(gctx) })
	g.Go(func() error { return d.RunPower(gctx) })
	return g.Wait()
}

// setupLogger configures the zap logger based on configuration.
func setupLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		panic("Failed to create logger: " + err.Error())
	}

	return logger
}
