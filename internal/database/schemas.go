package database

// schemas maps database names to their embedded schema SQL.
// All statements are idempotent so Migrate can run on every startup.
var schemas = map[string]string{
	"portfolio": portfolioSchema,
	"history":   historySchema,
	"cache":     cacheSchema,
}

const portfolioSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stocks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL UNIQUE,
	company_name TEXT NOT NULL DEFAULT '',
	sector TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stocks_symbol ON stocks(symbol);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	portfolio_name TEXT NOT NULL DEFAULT 'My Investment Portfolio',
	stock_id INTEGER NOT NULL REFERENCES stocks(id) ON DELETE CASCADE,
	side TEXT NOT NULL CHECK(side IN ('BUY','SELL')),
	quantity REAL NOT NULL CHECK(quantity > 0),
	price_per_share REAL NOT NULL CHECK(price_per_share > 0),
	transaction_date TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, portfolio_name);
CREATE INDEX IF NOT EXISTS idx_transactions_stock ON transactions(stock_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date);
`

const historySchema = `
CREATE TABLE IF NOT EXISTS stock_prices (
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
);

CREATE INDEX IF NOT EXISTS idx_stock_prices_symbol_date ON stock_prices(symbol, date);
`

const cacheSchema = `
CREATE TABLE IF NOT EXISTS current_prices (
	symbol TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
`
