// Command marketdatasvc is Stage A: it polls a dynamically maintained set
// of tickers, deduplicates per-ticker price updates, and writes them as
// newline-delimited lines onto a named pipe for Stage B to consume.
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
	"optionpricer/internal/marketdata"
	"optionpricer/internal/pipeline"
	"optionpricer/internal/queue"
	"optionpricer/internal/storage"
	"optionpricer/internal/telemetry"
	"optionpricer/pkg/cli"
	apperrors "optionpricer/pkg/errors"
	"optionpricer/pkg/logging"

	infrahealth "optionpricer/internal/infrastructure/health"
	inframetrics "optionpricer/internal/infrastructure/metrics"
)

const outQueueCapacity = 1000

var (
	configPath  = flag.String("config", "configs/marketdata.yaml", "Path to YAML config file")
	logLevel    = flag.String("log-level", "", "Overrides system.log_level")
	metricsPort = flag.Int("metrics-port", 0, "Overrides telemetry.metrics_port (0 keeps config value)")
	testMode    = flag.Bool("test", false, "Enable the simulated source decorator")

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

	tel, err := telemetry.Setup("marketdatasvc")
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

	pool, err := storage.NewPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	healthMgr.Register("database", func() error { return pool.Ping(ctx) })

	tickerLoader := storage.NewTickerLoader(pool)
	tickers, err := tickerLoader.LoadTickers(ctx)
	if err != nil {
		logger.Error("initial ticker load failed", "error", err)
		os.Exit(1)
	}
	if len(tickers) == 0 {
		logger.Error("no tickers loaded", "error", apperrors.ErrNoTickers)
		os.Exit(1)
	}
	logger.Info("loaded initial ticker set", "count", len(tickers))

	var source core.PriceSource = marketdata.NewHTTPSource(10 * time.Second)
	if cfg.MarketData.TestMode {
		source = marketdata.NewSimulatedSource(source)
		logger.Info("simulated source enabled")
	}

	out := queue.NewChannel[core.PriceSample](outQueueCapacity)
	svc := marketdata.NewService(source, tickerLoader, out, logger, tickers)
	svc.WithIntervals(
		time.Duration(cfg.MarketData.PollIntervalMs)*time.Millisecond,
		time.Duration(cfg.MarketData.TickerReloadIntervalS)*time.Second,
	)
	svc.Start(ctx)

	pipePath := resolvePipePath(cfg)
	pipeFile, err := pipeline.OpenWriter(pipePath)
	if err != nil {
		logger.Error("named pipe unavailable", "path", pipePath, "error", err)
		svc.Stop()
		os.Exit(1)
	}
	defer pipeFile.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.RunProducer(out, pipeFile, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		svc.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("market-data service stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("market-data service shut down cleanly")
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
	if *testMode {
		cfg.MarketData.TestMode = true
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
