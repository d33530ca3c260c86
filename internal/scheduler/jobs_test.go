package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSymbols struct {
	symbols []string
	err     error
}

func (f *fakeSymbols) SymbolsInUse() ([]string, error) {
	return f.symbols, f.err
}

type fakeUpdater struct {
	failures map[string]bool
	updated  []string
}

func (f *fakeUpdater) UpdateStockPrices(symbol string, daysBack int) (int, error) {
	if f.failures[symbol] {
		return 0, errors.New("provider down")
	}
	f.updated = append(f.updated, symbol)
	return 1, nil
}

func TestPriceSyncJob_ContinuesPastFailures(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	updater := &fakeUpdater{failures: map[string]bool{"MSFT": true}}
	job := NewPriceSyncJob(&fakeSymbols{symbols: []string{"AAPL", "MSFT", "GOOGL"}}, updater, 30, log)

	err := job.Run()

	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "GOOGL"}, updater.updated)
}

func TestPriceSyncJob_SymbolListFails(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	job := NewPriceSyncJob(&fakeSymbols{err: errors.New("db closed")}, &fakeUpdater{}, 30, log)

	assert.Error(t, job.Run())
}

type fakeCleaner struct {
	deleted int64
	got     time.Duration
	err     error
}

func (f *fakeCleaner) DeleteExpired(olderThan time.Duration) (int64, error) {
	f.got = olderThan
	return f.deleted, f.err
}

func TestCacheCleanupJob(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cleaner := &fakeCleaner{deleted: 3}
	job := NewCacheCleanupJob(cleaner, time.Hour, log)

	require.NoError(t, job.Run())
	assert.Equal(t, time.Hour, cleaner.got)

	cleaner.err = errors.New("db closed")
	assert.Error(t, job.Run())
}

type fakeBackupper struct {
	key string
	err error
}

func (f *fakeBackupper) Backup(ctx context.Context) (string, error) {
	return f.key, f.err
}

func TestBackupJob(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	job := NewBackupJob(&fakeBackupper{key: "backups/2024.tar.gz"}, log)
	assert.NoError(t, job.Run())

	job = NewBackupJob(&fakeBackupper{err: errors.New("bucket denied")}, log)
	assert.Error(t, job.Run())
}

func TestSchedulerAddJob_BadSchedule(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	s := New(log)

	err := s.AddJob("not a schedule", NewCacheCleanupJob(&fakeCleaner{}, time.Hour, log))
	assert.Error(t, err)
}

func TestSchedulerRunNow(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	s := New(log)

	cleaner := &fakeCleaner{}
	require.NoError(t, s.RunNow(NewCacheCleanupJob(cleaner, time.Hour, log)))
	assert.Equal(t, time.Hour, cleaner.got)
}

func TestSchedulerTracksJobOutcomes(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	s := New(log)

	cleaner := &fakeCleaner{}
	job := NewCacheCleanupJob(cleaner, time.Hour, log)
	require.NoError(t, s.AddJob("@hourly", job))

	entries := s.Jobs()
	require.Len(t, entries, 1)
	assert.Equal(t, "cache_cleanup", entries[0].Name)
	assert.Equal(t, "@hourly", entries[0].Schedule)
	assert.Nil(t, entries[0].LastRun)

	require.NoError(t, s.RunNow(job))
	entries = s.Jobs()
	require.NotNil(t, entries[0].LastRun)
	assert.Empty(t, entries[0].LastErr)

	cleaner.err = errors.New("db closed")
	assert.Error(t, s.RunNow(job))
	entries = s.Jobs()
	assert.Equal(t, "db closed", entries[0].LastErr)
}
