// Package main is the entry point for the Stockfolio portfolio tracker.
// It wires configuration, the three SQLite databases, the market data
// provider chain, background jobs and the HTTP server, then runs until
// it receives an interrupt signal.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkoukos/stockfolio/internal/clients/alphavantage"
	"github.com/pkoukos/stockfolio/internal/clients/fmp"
	"github.com/pkoukos/stockfolio/internal/clients/marketstack"
	"github.com/pkoukos/stockfolio/internal/clients/twelvedata"
	"github.com/pkoukos/stockfolio/internal/clients/yahoo"
	"github.com/pkoukos/stockfolio/internal/config"
	"github.com/pkoukos/stockfolio/internal/database"
	"github.com/pkoukos/stockfolio/internal/marketdata"
	"github.com/pkoukos/stockfolio/internal/modules/auth"
	"github.com/pkoukos/stockfolio/internal/modules/charts"
	"github.com/pkoukos/stockfolio/internal/modules/history"
	"github.com/pkoukos/stockfolio/internal/modules/ledger"
	"github.com/pkoukos/stockfolio/internal/modules/portfolio"
	"github.com/pkoukos/stockfolio/internal/modules/simulation"
	"github.com/pkoukos/stockfolio/internal/modules/universe"
	"github.com/pkoukos/stockfolio/internal/reliability"
	"github.com/pkoukos/stockfolio/internal/scheduler"
	"github.com/pkoukos/stockfolio/internal/server"
	"github.com/pkoukos/stockfolio/pkg/logger"
)

const (
	// Weekdays at 22:30, after US markets close
	priceSyncSchedule = "30 22 * * MON-FRI"
	cacheCleanupCron  = "@hourly"
	backupCron        = "@weekly"

	priceSyncDaysBack = 30
	cacheGrace        = 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Stockfolio")

	// Three-database layout: portfolio.db holds users, stocks and the
	// transaction ledger; history.db holds daily prices; cache.db holds
	// ephemeral quote data and can be lost without consequence.
	portfolioDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolio.db"),
		Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	historyDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"),
		Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	databases := map[string]*database.DB{
		"portfolio": portfolioDB,
		"history":   historyDB,
		"cache":     cacheDB,
	}
	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Migration failed")
		}
	}

	// Repositories
	stockRepo := universe.NewStockRepository(portfolioDB.Conn(), log)
	priceRepo := history.NewPriceRepository(historyDB.Conn(), log)
	txRepo := ledger.NewTransactionRepository(portfolioDB.Conn(), stockRepo, log)
	userRepo := auth.NewUserRepository(portfolioDB.Conn(), log)

	// Market data: Yahoo first (also the history and search source), then the
	// keyed providers in fixed fallback order.
	yahooClient := yahoo.NewClient(log)
	quoteCache := marketdata.NewQuoteCache(cacheDB.Conn())

	marketSvc := marketdata.NewService(yahooClient, quoteCache, stockRepo, priceRepo, log)
	marketSvc.AddProvider("yahoo", yahooClient)
	marketSvc.AddProvider("twelvedata", twelvedata.NewClient(cfg.TwelveDataKey, log))
	marketSvc.AddProvider("alphavantage", alphavantage.NewClient(cfg.AlphaVantageKey, log))
	marketSvc.AddProvider("fmp", fmp.NewClient(cfg.FMPKey, log))
	marketSvc.AddProvider("marketstack", marketstack.NewClient(cfg.MarketStackKey, log))

	// Services
	authSvc := auth.NewService(userRepo, cfg.JWTSecret, log)
	portfolioSvc := portfolio.NewService(txRepo, marketSvc, stockRepo, log)
	simulationSvc := simulation.NewService(priceRepo, marketSvc, log)
	chartsSvc := charts.NewService(portfolioSvc, priceRepo, marketSvc, stockRepo, log)

	// Background jobs
	sched := scheduler.New(log)
	priceSyncJob := scheduler.NewPriceSyncJob(txRepo, marketSvc, priceSyncDaysBack, log)
	if err := sched.AddJob(priceSyncSchedule, priceSyncJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule price sync")
	}
	if err := sched.AddJob(cacheCleanupCron, scheduler.NewCacheCleanupJob(quoteCache, cacheGrace, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache cleanup")
	}

	var backupSvc *reliability.BackupService
	if cfg.Backup.Enabled() {
		storage, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}

		backupSvc = reliability.NewBackupService(storage, databases, cfg.DataDir, cfg.Backup.Keep, log)
		if err := sched.AddJob(backupCron, scheduler.NewBackupJob(backupSvc, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backups enabled")
	} else {
		log.Info().Msg("Cloud backups disabled (no bucket configured)")
	}

	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:                log,
		Cfg:                cfg,
		AuthService:        authSvc,
		AuthHandlers:       auth.NewHandlers(authSvc, log),
		LedgerHandlers:     ledger.NewHandlers(txRepo, log),
		PortfolioHandlers:  portfolio.NewHandlers(portfolioSvc, log),
		SimulationHandlers: simulation.NewHandlers(simulationSvc, log),
		ChartsHandlers:     charts.NewHandlers(chartsSvc, log),
		MarketHandlers:     marketdata.NewHandlers(marketSvc, txRepo, log),
		SystemHandlers:     server.NewSystemHandlers(cfg.DataDir, databases, log),
		AdminHandlers:      server.NewAdminHandlers(userRepo, sched, priceSyncJob, backupSvc, log),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Stockfolio started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stopped")
}
