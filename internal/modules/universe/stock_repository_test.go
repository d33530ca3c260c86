package universe

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE stocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE,
			company_name TEXT NOT NULL DEFAULT '',
			sector TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) (*StockRepository, *sql.DB) {
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewStockRepository(db, log), db
}

func TestGetBySymbol_NotFound(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	stock, err := repo.GetBySymbol("AAPL")

	assert.NoError(t, err)
	assert.Nil(t, stock)
}

func TestGetOrCreate_CreatesOnFirstReference(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	stock, err := repo.GetOrCreate("aapl")

	require.NoError(t, err)
	require.NotNil(t, stock)
	assert.Equal(t, "AAPL", stock.Symbol)
	assert.NotZero(t, stock.ID)

	// Second call returns the same row
	again, err := repo.GetOrCreate("AAPL")
	require.NoError(t, err)
	assert.Equal(t, stock.ID, again.ID)
}

func TestGetOrCreate_AssignsKnownSector(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	stock, err := repo.GetOrCreate("AAPL")
	require.NoError(t, err)
	require.NotNil(t, stock.Sector)
	assert.Equal(t, "Technology", *stock.Sector)

	// The sector survives the round trip through the database
	stored, err := repo.GetBySymbol("AAPL")
	require.NoError(t, err)
	require.NotNil(t, stored.Sector)
	assert.Equal(t, "Technology", *stored.Sector)

	// Unmapped symbols stay without a sector
	other, err := repo.GetOrCreate("ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, other.Sector)
}

func TestGetOrCreate_EmptySymbol(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	_, err := repo.GetOrCreate("   ")

	assert.Error(t, err)
}

func TestUpdateCompanyInfo(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	_, err := repo.GetOrCreate("MSFT")
	require.NoError(t, err)

	sector := "Technology"
	err = repo.UpdateCompanyInfo("MSFT", "Microsoft Corporation", &sector)
	require.NoError(t, err)

	stock, err := repo.GetBySymbol("MSFT")
	require.NoError(t, err)
	require.NotNil(t, stock)
	assert.Equal(t, "Microsoft Corporation", stock.CompanyName)
	require.NotNil(t, stock.Sector)
	assert.Equal(t, "Technology", *stock.Sector)
}

func TestUpdateCompanyInfo_EmptyValuesLeaveExisting(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	_, err := repo.GetOrCreate("MSFT")
	require.NoError(t, err)

	sector := "Technology"
	require.NoError(t, repo.UpdateCompanyInfo("MSFT", "Microsoft Corporation", &sector))

	// Empty name and nil sector should not clobber what we have
	require.NoError(t, repo.UpdateCompanyInfo("MSFT", "", nil))

	stock, err := repo.GetBySymbol("MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft Corporation", stock.CompanyName)
	require.NotNil(t, stock.Sector)
	assert.Equal(t, "Technology", *stock.Sector)
}

func TestList_OrderedBySymbol(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	for _, s := range []string{"MSFT", "AAPL", "GOOGL"} {
		_, err := repo.GetOrCreate(s)
		require.NoError(t, err)
	}

	stocks, err := repo.List()

	require.NoError(t, err)
	require.Len(t, stocks, 3)
	assert.Equal(t, "AAPL", stocks[0].Symbol)
	assert.Equal(t, "GOOGL", stocks[1].Symbol)
	assert.Equal(t, "MSFT", stocks[2].Symbol)
}
