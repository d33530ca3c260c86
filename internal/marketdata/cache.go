// Package marketdata selects among free market data providers with ordered
// fallback and caches successful quotes.
package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// TTLCurrentPrice bounds how long a cached quote is considered fresh.
const TTLCurrentPrice = 10 * time.Minute

// QuoteCache stores provider quotes as msgpack blobs with expiration
// timestamps in cache.db. Expired rows are kept until cleanup so they can
// serve as a stale fallback when every provider fails.
type QuoteCache struct {
	db *sql.DB
}

// NewQuoteCache creates a new quote cache backed by the cache database.
func NewQuoteCache(db *sql.DB) *QuoteCache {
	return &QuoteCache{db: db}
}

// Store saves a quote with expiration = now + ttl.
func (c *QuoteCache) Store(quote *domain.Quote, ttl time.Duration) error {
	blob, err := msgpack.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO current_prices (symbol, data, expires_at) VALUES (?, ?, ?)",
		quote.Symbol, blob, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store quote for %s: %w", quote.Symbol, err)
	}

	return nil
}

// GetFresh returns a cached quote only if it has not expired.
// Returns nil, nil when the symbol is missing or stale.
func (c *QuoteCache) GetFresh(symbol string) (*domain.Quote, error) {
	return c.get(symbol, true)
}

// GetStale returns a cached quote regardless of expiration.
// Used as a last resort when all providers fail.
func (c *QuoteCache) GetStale(symbol string) (*domain.Quote, error) {
	return c.get(symbol, false)
}

func (c *QuoteCache) get(symbol string, freshOnly bool) (*domain.Quote, error) {
	query := "SELECT data FROM current_prices WHERE symbol = ?"
	args := []interface{}{symbol}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, time.Now().Unix())
	}

	var blob []byte
	err := c.db.QueryRow(query, args...).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quote cache for %s: %w", symbol, err)
	}

	var quote domain.Quote
	if err := msgpack.Unmarshal(blob, &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached quote for %s: %w", symbol, err)
	}

	return &quote, nil
}

// DeleteExpired removes quotes that expired before the given cutoff.
// Returns the number of rows deleted.
func (c *QuoteCache) DeleteExpired(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	res, err := c.db.Exec("DELETE FROM current_prices WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired quotes: %w", err)
	}

	return res.RowsAffected()
}
