// Package history provides access to stored daily price data.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/database"
	"github.com/pkoukos/stockfolio/internal/domain"
)

// PriceRepository handles stock price database operations
type PriceRepository struct {
	db  *sql.DB // history.db - stock_prices table
	log zerolog.Logger
}

// pricesColumns is the list of columns for the stock_prices table.
// Column order must match the scan helpers below.
const pricesColumns = `symbol, date, open, high, low, close, volume`

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "price").Logger(),
	}
}

// Upsert writes a price row, replacing any existing row for (symbol, date).
func (r *PriceRepository) Upsert(p domain.PricePoint) error {
	if p.Symbol == "" || p.Date == "" {
		return fmt.Errorf("symbol and date are required")
	}

	query := `
		INSERT INTO stock_prices (symbol, date, open, high, low, close, volume, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`

	_, err := r.db.Exec(query,
		normalizeSymbol(p.Symbol), p.Date, p.Open, p.High, p.Low, p.Close, p.Volume,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s on %s: %w", p.Symbol, p.Date, err)
	}

	return nil
}

// InsertMissing writes price rows only for (symbol, date) pairs that do not
// exist yet. Historical backfills never overwrite stored rows.
// Returns the number of rows inserted.
func (r *PriceRepository) InsertMissing(points []domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	inserted := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO stock_prices (symbol, date, open, high, low, close, volume, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, p := range points {
			res, err := stmt.Exec(normalizeSymbol(p.Symbol), p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, now)
			if err != nil {
				return fmt.Errorf("failed to insert price for %s on %s: %w", p.Symbol, p.Date, err)
			}
			affected, _ := res.RowsAffected()
			inserted += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetLatest returns the most recent price row for a symbol, or nil when no
// prices are stored.
func (r *PriceRepository) GetLatest(symbol string) (*domain.PricePoint, error) {
	query := "SELECT " + pricesColumns + " FROM stock_prices WHERE symbol = ? ORDER BY date DESC LIMIT 1"
	return r.queryOne(query, normalizeSymbol(symbol))
}

// GetFirstOnOrAfter returns the earliest price row at or after the given date.
// Used to resolve simulation start prices across weekends and holidays.
func (r *PriceRepository) GetFirstOnOrAfter(symbol, date string) (*domain.PricePoint, error) {
	query := "SELECT " + pricesColumns + " FROM stock_prices WHERE symbol = ? AND date >= ? ORDER BY date ASC LIMIT 1"
	return r.queryOne(query, normalizeSymbol(symbol), date)
}

// GetLastOnOrBefore returns the latest price row at or before the given date.
func (r *PriceRepository) GetLastOnOrBefore(symbol, date string) (*domain.PricePoint, error) {
	query := "SELECT " + pricesColumns + " FROM stock_prices WHERE symbol = ? AND date <= ? ORDER BY date DESC LIMIT 1"
	return r.queryOne(query, normalizeSymbol(symbol), date)
}

// GetRange returns price rows for a symbol between two dates inclusive,
// ordered by date ascending.
func (r *PriceRepository) GetRange(symbol, startDate, endDate string) ([]domain.PricePoint, error) {
	query := "SELECT " + pricesColumns + ` FROM stock_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`

	rows, err := r.db.Query(query, normalizeSymbol(symbol), startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query price range: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return points, nil
}

// CountForSymbol returns how many price rows exist for a symbol.
func (r *PriceRepository) CountForSymbol(symbol string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM stock_prices WHERE symbol = ?",
		normalizeSymbol(symbol),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prices for %s: %w", symbol, err)
	}
	return count, nil
}

func (r *PriceRepository) queryOne(query string, args ...interface{}) (*domain.PricePoint, error) {
	row := r.db.QueryRow(query, args...)
	p, err := scanPrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query price: %w", err)
	}
	return &p, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrice(row rowScanner) (domain.PricePoint, error) {
	var p domain.PricePoint
	var volume sql.NullInt64

	err := row.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume)
	if err != nil {
		return domain.PricePoint{}, err
	}

	if volume.Valid {
		p.Volume = volume.Int64
	}

	return p, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
