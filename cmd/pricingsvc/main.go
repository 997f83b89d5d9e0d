// Command pricingsvc is Stage B: it reads newline-delimited PriceSample
// lines from a named pipe, joins each against per-ticker Black-Scholes
// parameters loaded from the relational store, computes an option price,
// and persists the result.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"optionpricer/internal/config"
	"optionpricer/internal/core"
	"optionpricer/internal/pipeline"
	"optionpricer/internal/pricing"
	"optionpricer/internal/queue"
	"optionpricer/internal/storage"
	"optionpricer/internal/telemetry"
	"optionpricer/pkg/cli"
	apperrors "optionpricer/pkg/errors"
	"optionpricer/pkg/logging"

	infrahealth "optionpricer/internal/infrastructure/health"
	inframetrics "optionpricer/internal/infrastructure/metrics"
)

const (
	inQueueCapacity  = 1000
	outQueueCapacity = 1000
)

var (
	configPath  = flag.String("config", "configs/pricing.yaml", "Path to YAML config file")
	logLevel    = flag.String("log-level", "", "Overrides system.log_level")
	metricsPort = flag.Int("metrics-port", 0, "Overrides telemetry.metrics_port (0 keeps config value)")
	pipePath    = flag.String("pipe-path", "", "Path to the named pipe shared with marketdatasvc")

	pgConnInfo = flag.String("pg-conninfo", "", "Raw Postgres connection string")
	pgHost     = flag.String("pg-host", "", "Postgres host")
	pgPort     = flag.Int("pg-port", 0, "Postgres port")
	pgUser     = flag.String("pg-user", "", "Postgres user")
	pgPassword = flag.String("pg-password", "", "Postgres password")
	pgDB       = flag.String("pg-db", "", "Postgres database name")
	pgDatabase = flag.String("pg-database", "", "Alias for --pg-db")
)

func main() {
	flag.Parse()

	cfg := loadConfig()
	applyFlagOverrides(cfg)

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	logging.SetGlobalLogger(logger)

	if err := cli.ValidateFlags(map[string]string{
		"--pg-conninfo": *pgConnInfo,
		"--pg-host":     *pgHost,
		"--pg-user":     *pgUser,
		"--pg-db":       *pgDB,
		"--pg-database": *pgDatabase,
		"--pipe-path":   *pipePath,
	}); err != nil {
		logger.Error("invalid CLI flag value", "error", err)
		os.Exit(1)
	}

	if !cfg.Database.HasRequiredParams() {
		logger.Error("missing required database parameters", "error", apperrors.ErrMissingDBParams)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup("pricingsvc")
	if err != nil {
		logger.Error("telemetry setup failed", "error", err)
	} else {
		defer func() { _ = tel.Shutdown(context.Background()) }()
	}

	healthMgr := infrahealth.NewHealthManager(logger)

	if cfg.Telemetry.EnableMetrics {
		metricsServer := inframetrics.NewServer(cfg.Telemetry.MetricsPort, logger, healthMgr)
		metricsServer.Start()
		defer func() { _ = metricsServer.Stop(context.Background()) }()
	}

	readPool, err := storage.NewPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer readPool.Close()
	healthMgr.Register("database", func() error { return readPool.Ping(ctx) })

	paramsLoader := storage.NewParamsLoader(readPool)
	pgSink := storage.NewPersistSink(cfg.Database.DSN(), logger)
	defer pgSink.Close()

	var sink core.PersistSink = pgSink
	if influx := storage.NewInfluxSinkFromEnv(logger); influx.Configured() {
		sink = storage.NewMultiSink(pgSink, logger, influx)
	}

	in := queue.NewChannel[string](inQueueCapacity)
	out := queue.NewChannel[core.OptionQuote](outQueueCapacity)

	svc := pricing.NewService(in, out, paramsLoader, sink, logger, cfg.Pricing.NumWorkers)
	svc.WithReloadInterval(time.Duration(cfg.Pricing.ParamsReloadIntervalS) * time.Second)

	initialParams, err := paramsLoader.LoadParams(ctx)
	if err != nil {
		logger.Warn("initial parameter load failed, starting with an empty ParamsMap", "error", err)
	} else {
		svc.Params().Replace(initialParams)
	}

	svc.Start(ctx)

	resolvedPipePath := resolvePipePath(cfg)
	pipeFile, err := pipeline.OpenReader(resolvedPipePath)
	if err != nil {
		logger.Error("named pipe unavailable", "path", resolvedPipePath, "error", apperrors.ErrPipeUnavailable)
		svc.Stop()
		os.Exit(1)
	}

	consumerDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pipeline.RunConsumer(pipeFile, in, logger)
		close(consumerDone)
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-consumerDone:
		}
		_ = pipeFile.Close()
		return nil
	})

	_ = g.Wait()
	svc.Stop()

	logger.Info("pricing service shut down cleanly")
}

func loadConfig() *config.Config {
	if *configPath == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}

// applyFlagOverrides layers explicit CLI flags and PRICING_PIPE_PATH over
// whatever the config file (or its defaults) already set; flags and env
// vars always win, matching the CLI surface in spec.md S6.
func applyFlagOverrides(cfg *config.Config) {
	if *logLevel != "" {
		cfg.System.LogLevel = *logLevel
	}
	if *metricsPort != 0 {
		cfg.Telemetry.MetricsPort = *metricsPort
	}
	if *pipePath != "" {
		cfg.Pipe.Path = *pipePath
	}

	if *pgConnInfo != "" {
		cfg.Database.ConnInfo = *pgConnInfo
	}
	if *pgHost != "" {
		cfg.Database.Host = *pgHost
	}
	if *pgPort != 0 {
		cfg.Database.Port = *pgPort
	}
	if *pgUser != "" {
		cfg.Database.User = *pgUser
	}
	if *pgPassword != "" {
		cfg.Database.Password = config.Secret(*pgPassword)
	}
	if *pgDB != "" {
		cfg.Database.DBName = *pgDB
	}
	if *pgDatabase != "" {
		cfg.Database.DBName = *pgDatabase
	}
}

func resolvePipePath(cfg *config.Config) string {
	if env := os.Getenv("PRICING_PIPE_PATH"); env != "" {
		return env
	}
	if cfg.Pipe.Path != "" {
		return cfg.Pipe.Path
	}
	return "/tmp/pricing_pipe"
}
