package history

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/pkoukos/stockfolio/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE stock_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			date TEXT NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			UNIQUE(symbol, date)
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) (*PriceRepository, *sql.DB) {
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewPriceRepository(db, log), db
}

func point(symbol, date string, close float64) domain.PricePoint {
	return domain.PricePoint{
		Symbol: symbol,
		Date:   date,
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1000,
	}
}

func TestUpsert_ReplacesExistingRow(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	require.NoError(t, repo.Upsert(point("AAPL", "2024-03-01", 170)))
	require.NoError(t, repo.Upsert(point("AAPL", "2024-03-01", 172.5)))

	latest, err := repo.GetLatest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 172.5, latest.Close)

	count, err := repo.CountForSymbol("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsert_RequiresSymbolAndDate(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	assert.Error(t, repo.Upsert(domain.PricePoint{Symbol: "AAPL"}))
	assert.Error(t, repo.Upsert(domain.PricePoint{Date: "2024-03-01"}))
}

func TestInsertMissing_SkipsExistingRows(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	require.NoError(t, repo.Upsert(point("AAPL", "2024-03-01", 170)))

	inserted, err := repo.InsertMissing([]domain.PricePoint{
		point("AAPL", "2024-03-01", 999), // already stored, must not overwrite
		point("AAPL", "2024-03-04", 171),
		point("AAPL", "2024-03-05", 173),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	existing, err := repo.GetLastOnOrBefore("AAPL", "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, 170.0, existing.Close)
}

func TestInsertMissing_FailedBatchLeavesNoRows(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	// CHECK constraint makes the second row fail mid-batch
	_, err = db.Exec(`
		CREATE TABLE stock_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			date TEXT NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL CHECK(close > 0),
			volume INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			UNIQUE(symbol, date)
		)
	`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewPriceRepository(db, log)

	_, err = repo.InsertMissing([]domain.PricePoint{
		point("AAPL", "2024-03-01", 170),
		point("AAPL", "2024-03-04", -1),
	})
	require.Error(t, err)

	// The whole batch rolled back, including the valid first row
	count, err := repo.CountForSymbol("AAPL")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsertMissing_EmptyBatch(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	inserted, err := repo.InsertMissing(nil)

	assert.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestGetLatest_NoData(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	latest, err := repo.GetLatest("AAPL")

	assert.NoError(t, err)
	assert.Nil(t, latest)
}

func TestGetFirstOnOrAfter_SkipsWeekend(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	// Friday and Monday rows; Saturday has no trading data
	require.NoError(t, repo.Upsert(point("AAPL", "2024-03-01", 170)))
	require.NoError(t, repo.Upsert(point("AAPL", "2024-03-04", 171)))

	got, err := repo.GetFirstOnOrAfter("AAPL", "2024-03-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2024-03-04", got.Date)

	// Exact match wins when the date exists
	got, err = repo.GetFirstOnOrAfter("AAPL", "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2024-03-01", got.Date)
}

func TestGetLastOnOrBefore(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	require.NoError(t, repo.Upsert(point("AAPL", "2024-03-01", 170)))
	require.NoError(t, repo.Upsert(point("AAPL", "2024-03-04", 171)))

	got, err := repo.GetLastOnOrBefore("AAPL", "2024-03-03")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2024-03-01", got.Date)

	// Nothing at or before the cutoff
	got, err = repo.GetLastOnOrBefore("AAPL", "2024-02-28")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRange_InclusiveAndOrdered(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	for _, p := range []domain.PricePoint{
		point("AAPL", "2024-03-05", 173),
		point("AAPL", "2024-03-01", 170),
		point("AAPL", "2024-03-04", 171),
		point("MSFT", "2024-03-04", 410),
	} {
		require.NoError(t, repo.Upsert(p))
	}

	points, err := repo.GetRange("AAPL", "2024-03-01", "2024-03-04")

	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-03-01", points[0].Date)
	assert.Equal(t, "2024-03-04", points[1].Date)
}

func TestSymbolNormalization(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	require.NoError(t, repo.Upsert(point(" aapl ", "2024-03-01", 170)))

	latest, err := repo.GetLatest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "AAPL", latest.Symbol)
}
