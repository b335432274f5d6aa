package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"btcoracle/internal/api"
	"btcoracle/internal/cache"
	"btcoracle/internal/config"
	"btcoracle/internal/database"
	"btcoracle/internal/logger"
	"btcoracle/internal/market/aggregate"
	"btcoracle/internal/market/feed"
	"btcoracle/internal/market/history"
	"btcoracle/internal/market/volatility"
	"btcoracle/internal/monitor"
	"btcoracle/internal/oracle"
	"btcoracle/internal/scheduler"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Missing .env is fine; environment variables may come from anywhere.
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	log.WithFields(logrus.Fields{
		"app":     cfg.App.Name,
		"env":     cfg.App.Env,
		"version": cfg.App.Version,
	}).Info("starting btc price oracle")

	if err := run(cfg, log); err != nil {
		log.WithField("error", err.Error()).Fatal("oracle terminated")
	}
}

// loadConfig reads the config file when present and falls back to
// defaults plus environment overrides when it is not.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(cfg *config.Config, log *logrus.Logger) error {
	metrics := monitor.NewMetrics()

	// The database is optional: without it every store runs in-memory,
	// which keeps local development and dry runs zero-dependency.
	var db *database.DB
	var sqlDB *sql.DB
	if cfg.Database.Host != "" {
		var err error
		db, err = database.NewConnection(cfg.Database)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()
		sqlDB = db.DB

		migrator, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
		if err != nil {
			return fmt.Errorf("migrator init failed: %w", err)
		}
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		if v, err := migrator.Version(); err == nil {
			log.WithField("version", v).Info("database schema up to date")
		}
	} else {
		log.Warn("no database configured, using in-memory stores")
	}

	cacher, err := cache.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("cache init failed: %w", err)
	}

	var (
		feedStore    feed.Store
		aggStore     aggregate.Store
		historyStore history.Store
		volStore     volatility.Store
		ledger       oracle.Ledger
	)
	if sqlDB != nil {
		feedStore = feed.NewSQLStore(sqlDB)
		aggStore = aggregate.NewSQLStore(sqlDB)
		historyStore = history.NewSQLStore(sqlDB)
		volStore = volatility.NewSQLStore(sqlDB)
		ledger = oracle.NewSQLLedger(sqlDB)
	} else {
		feedStore = feed.NewMemoryStore()
		aggStore = aggregate.NewMemoryStore()
		historyStore = history.NewMemoryStore()
		volStore = volatility.NewMemoryStore()
		ledger = oracle.NewMemoryLedger()
	}

	sources, err := feed.SourcesFromConfig(cfg.Sources)
	if err != nil {
		return fmt.Errorf("invalid source configuration: %w", err)
	}
	fetcher := feed.NewFetcher(sources, cfg.Feed, feedStore, log, metrics)

	volEngine := volatility.NewEngine(historyStore, volStore, log, metrics)

	providers := []history.Provider{
		history.NewCoinGeckoProvider(cfg.History.PrimaryEndpoint, cfg.History.RequestTimeout),
		history.NewCoinCapProvider(cfg.History.FallbackEndpoint, cfg.History.RequestTimeout),
	}
	historySvc := history.NewService(providers, historyStore, volEngine, cfg.History.BackfillDays, log, metrics)

	// 24h range prefers the daily OHLC series and falls back to the raw
	// feed records until enough history exists.
	ranges := []aggregate.RangeSource{historyStore, feedStore}
	aggSvc := aggregate.NewService(fetcher, aggStore, volEngine, ranges, cacher, log, metrics)

	publisher := oracle.NewPublisher(cfg.Oracle)
	oracleSvc := oracle.NewService(aggSvc, ledger, publisher, cfg.Oracle, log, metrics)

	hub := api.NewHub(log)
	aggSvc.OnRecord(hub.Broadcast)

	handlers := api.NewHandlers(aggSvc, volEngine, ledger, cacher, log)
	server := api.NewServer(cfg, handlers, hub, db, cacher, log)

	sched := scheduler.New(log)
	if err := registerTasks(sched, cfg.Schedule, aggSvc, historySvc, oracleSvc); err != nil {
		return err
	}

	// Seed the historical series before the schedules take over so the
	// volatility engine has data on the first aggregation cycles.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := historySvc.RunBulk(ctx); err != nil {
			log.WithField("error", err.Error()).Warn("initial historical backfill failed")
		}
	}()

	sched.Start()
	defer sched.Stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithField("error", err.Error()).Error("api server shutdown failed")
	}
	log.Info("oracle stopped")
	return nil
}

func registerTasks(sched *scheduler.Scheduler, schedule config.ScheduleConfig, aggSvc *aggregate.Service, historySvc *history.Service, oracleSvc *oracle.Service) error {
	tasks := []struct {
		name     string
		schedule string
		fn       scheduler.TaskFunc
	}{
		{"price_cycle", schedule.PriceCycle, aggSvc.RunCycle},
		{"history_bulk", schedule.HistoryBulk, historySvc.RunBulk},
		{"history_increment", schedule.HistoryIncrement, historySvc.RunIncremental},
		{"submission_check", schedule.SubmissionCheck, oracleSvc.CheckAndSubmit},
	}
	for _, t := range tasks {
		if err := sched.Register(t.name, t.schedule, t.fn); err != nil {
			return fmt.Errorf("failed to register task %s: %w", t.name, err)
		}
	}
	return nil
}
