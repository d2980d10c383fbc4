package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder appends trade events to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the server writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trade_events (
			id           TEXT PRIMARY KEY,
			recorded_at  INTEGER NOT NULL,
			sim_time     INTEGER NOT NULL,
			user         TEXT NOT NULL,
			drink        TEXT NOT NULL,
			side         TEXT NOT NULL,
			qty          INTEGER NOT NULL,
			unit_price   TEXT NOT NULL,
			market_price TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_events_drink ON trade_events(drink, sim_time)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordTrade appends one executed trade. Prices are stored as their exact
// decimal string representation.
func (r *SQLiteRecorder) RecordTrade(evt *TradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trade_events
		(id, recorded_at, sim_time, user, drink, side, qty, unit_price, market_price)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.ID, time.Now().Unix(), evt.SimTime, evt.User, evt.Drink,
		evt.Side, evt.Qty, evt.UnitPrice.String(), evt.MarketPrice.String(),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
