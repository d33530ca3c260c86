// Package universe manages the set of tracked stocks.
package universe

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// StockRepository handles stock database operations
type StockRepository struct {
	db  *sql.DB // portfolio.db - stocks table
	log zerolog.Logger
}

// stocksColumns is the list of columns for the stocks table.
// Used to avoid SELECT * which can break when schema changes.
const stocksColumns = `id, symbol, company_name, sector, created_at, updated_at`

// NewStockRepository creates a new stock repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repo", "stock").Logger(),
	}
}

// GetBySymbol returns a stock by symbol, or nil when not found.
func (r *StockRepository) GetBySymbol(symbol string) (*domain.Stock, error) {
	query := "SELECT " + stocksColumns + " FROM stocks WHERE symbol = ?"

	row := r.db.QueryRow(query, normalizeSymbol(symbol))
	stock, err := scanStock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock by symbol: %w", err)
	}

	return &stock, nil
}

// GetOrCreate returns the stock for a symbol, creating it on first reference.
func (r *StockRepository) GetOrCreate(symbol string) (*domain.Stock, error) {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	stock, err := r.GetBySymbol(normalized)
	if err != nil {
		return nil, err
	}
	if stock != nil {
		return stock, nil
	}

	now := time.Now().Unix()
	sector := sectorForSymbol(normalized)
	res, err := r.db.Exec(
		"INSERT INTO stocks (symbol, company_name, sector, created_at, updated_at) VALUES (?, '', ?, ?, ?)",
		normalized, sector, now, now,
	)
	if err != nil {
		// Lost a race with a concurrent insert; read it back
		if strings.Contains(err.Error(), "UNIQUE") {
			return r.GetBySymbol(normalized)
		}
		return nil, fmt.Errorf("failed to create stock %s: %w", normalized, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get stock id: %w", err)
	}

	r.log.Info().Str("symbol", normalized).Msg("Stock created")

	created := time.Unix(now, 0)
	return &domain.Stock{
		ID:        id,
		Symbol:    normalized,
		Sector:    sector,
		CreatedAt: created,
		UpdatedAt: created,
	}, nil
}

// UpdateCompanyInfo sets the company name and sector for a symbol.
// Empty values leave the existing ones untouched.
func (r *StockRepository) UpdateCompanyInfo(symbol, companyName string, sector *string) error {
	normalized := normalizeSymbol(symbol)

	if companyName != "" {
		_, err := r.db.Exec(
			"UPDATE stocks SET company_name = ?, updated_at = ? WHERE symbol = ?",
			companyName, time.Now().Unix(), normalized,
		)
		if err != nil {
			return fmt.Errorf("failed to update company name for %s: %w", normalized, err)
		}
	}

	if sector != nil && *sector != "" {
		_, err := r.db.Exec(
			"UPDATE stocks SET sector = ?, updated_at = ? WHERE symbol = ?",
			*sector, time.Now().Unix(), normalized,
		)
		if err != nil {
			return fmt.Errorf("failed to update sector for %s: %w", normalized, err)
		}
	}

	return nil
}

// List returns all tracked stocks ordered by symbol.
func (r *StockRepository) List() ([]domain.Stock, error) {
	query := "SELECT " + stocksColumns + " FROM stocks ORDER BY symbol"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		stock, err := scanStockFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}

	return stocks, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStock(row rowScanner) (domain.Stock, error) {
	var s domain.Stock
	var sector sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&s.ID, &s.Symbol, &s.CompanyName, &sector, &createdAt, &updatedAt)
	if err != nil {
		return domain.Stock{}, err
	}

	if sector.Valid {
		s.Sector = &sector.String
	}
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)

	return s, nil
}

func scanStockFromRows(rows *sql.Rows) (domain.Stock, error) {
	return scanStock(rows)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
