package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SymbolSource lists every symbol the ledger references. Implemented by the
// ledger repository.
type SymbolSource interface {
	SymbolsInUse() ([]string, error)
}

// PriceUpdater refreshes stored prices for one symbol. Implemented by the
// market data service.
type PriceUpdater interface {
	UpdateStockPrices(symbol string, daysBack int) (int, error)
}

// PriceSyncJob refreshes stored prices for every held symbol. A failing
// symbol is skipped; the batch continues.
type PriceSyncJob struct {
	symbols  SymbolSource
	updater  PriceUpdater
	daysBack int
	log      zerolog.Logger
}

// NewPriceSyncJob creates the daily price sync job
func NewPriceSyncJob(symbols SymbolSource, updater PriceUpdater, daysBack int, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		symbols:  symbols,
		updater:  updater,
		daysBack: daysBack,
		log:      log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string { return "price_sync" }

// Run updates prices for all symbols in use
func (j *PriceSyncJob) Run() error {
	symbols, err := j.symbols.SymbolsInUse()
	if err != nil {
		return err
	}

	updated, failed := 0, 0
	for _, symbol := range symbols {
		count, err := j.updater.UpdateStockPrices(symbol, j.daysBack)
		if err != nil {
			failed++
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Price sync failed for symbol")
			continue
		}
		updated += count
	}

	j.log.Info().
		Int("symbols", len(symbols)).
		Int("rows", updated).
		Int("failed", failed).
		Msg("Price sync finished")

	return nil
}

// CacheCleaner removes expired cache rows. Implemented by the quote cache.
type CacheCleaner interface {
	DeleteExpired(olderThan time.Duration) (int64, error)
}

// CacheCleanupJob prunes expired quotes, keeping a grace window so the stale
// fallback still has something to serve.
type CacheCleanupJob struct {
	cache CacheCleaner
	grace time.Duration
	log   zerolog.Logger
}

// NewCacheCleanupJob creates the hourly cache cleanup job
func NewCacheCleanupJob(cache CacheCleaner, grace time.Duration, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache: cache,
		grace: grace,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

// Run deletes quotes that expired longer than the grace window ago
func (j *CacheCleanupJob) Run() error {
	deleted, err := j.cache.DeleteExpired(j.grace)
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Expired quotes removed")
	}
	return nil
}

// Backupper creates and uploads a backup archive. Implemented by the
// reliability backup service.
type Backupper interface {
	Backup(ctx context.Context) (string, error)
}

// BackupJob runs the weekly database backup
type BackupJob struct {
	backups Backupper
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the weekly backup job
func NewBackupJob(backups Backupper, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string { return "backup" }

// Run creates and uploads a backup archive
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key, err := j.backups.Backup(ctx)
	if err != nil {
		return err
	}

	j.log.Info().Str("key", key).Msg("Backup uploaded")
	return nil
}
