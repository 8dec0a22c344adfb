package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ashare-trader/internal/errors"
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed session store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Trading sessions table
	CREATE TABLE IF NOT EXISTS trading_sessions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		mode TEXT NOT NULL,
		config TEXT,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Positions table
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		current_price REAL NOT NULL,
		stop_loss REAL,
		take_profit REAL,
		entry_time DATETIME NOT NULL,
		entry_date TEXT NOT NULL,
		exit_time DATETIME,
		status TEXT NOT NULL,
		realized_pnl REAL DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES trading_sessions(id)
	);

	-- Emitted signals table
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		strength TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		notes TEXT,
		timestamp DATETIME NOT NULL
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON trading_sessions(state);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON trading_sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_positions_session ON positions(session_id);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
	CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
	CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);
	CREATE INDEX IF NOT EXISTS idx_signals_timestamp ON signals(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Session Methods
// ============================================================================

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, rec *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trading_sessions (id, state, mode, config, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.State, rec.Mode, rec.Config, rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return errors.NewStoreError("create", "session", err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var config, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, state, mode, config, error_message, created_at, updated_at
		FROM trading_sessions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.State, &rec.Mode, &config, &errMsg, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.NewStoreError("get", "session", err)
	}
	rec.Config = config.String
	rec.ErrorMessage = errMsg.String
	return rec, nil
}

// UpdateSessionState writes the session's new state. The write must succeed
// before the transition takes effect in memory.
func (s *SQLiteStore) UpdateSessionState(ctx context.Context, id, state, errorMessage string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE trading_sessions SET state = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, state, errorMessage, time.Now(), id)
	if err != nil {
		return errors.NewStoreError("update", "session", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewStoreError("update", "session", err)
	}
	if affected == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// GetSessions retrieves sessions matching the filter, most recent first.
func (s *SQLiteStore) GetSessions(ctx context.Context, filter SessionFilter) ([]*SessionRecord, error) {
	query := `SELECT id, state, mode, config, error_message, created_at, updated_at
		FROM trading_sessions WHERE 1=1`
	args := []interface{}{}

	if len(filter.States) > 0 {
		placeholders := strings.Repeat("?,", len(filter.States))
		query += " AND state IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, state := range filter.States {
			args = append(args, state)
		}
	}
	if filter.Mode != "" {
		query += " AND mode = ?"
		args = append(args, filter.Mode)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("list", "session", err)
	}
	defer rows.Close()

	var sessions []*SessionRecord
	for rows.Next() {
		rec := &SessionRecord{}
		var config, errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.State, &rec.Mode, &config, &errMsg, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, errors.NewStoreError("scan", "session", err)
		}
		rec.Config = config.String
		rec.ErrorMessage = errMsg.String
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list", "session", err)
	}
	return sessions, nil
}

// DeleteSessionsBefore removes sessions created before the cutoff, along
// with their positions, and returns the number of sessions removed.
func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStoreError("cleanup", "session", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM positions WHERE session_id IN
			(SELECT id FROM trading_sessions WHERE created_at < ?)
	`, cutoff)
	if err != nil {
		return 0, errors.NewStoreError("cleanup", "position", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM trading_sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, errors.NewStoreError("cleanup", "session", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewStoreError("cleanup", "session", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStoreError("cleanup", "session", err)
	}
	return deleted, nil
}

// ============================================================================
// Position Methods
// ============================================================================

// CreatePosition inserts a new position row.
func (s *SQLiteStore) CreatePosition(ctx context.Context, rec *PositionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, session_id, symbol, quantity, entry_price, current_price, stop_loss, take_profit, entry_time, entry_date, exit_time, status, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SessionID, rec.Symbol, rec.Quantity, rec.EntryPrice, rec.CurrentPrice, rec.StopLoss, rec.TakeProfit, rec.EntryTime, rec.EntryDate, rec.ExitTime, rec.Status, rec.RealizedPnL)
	if err != nil {
		return errors.NewStoreError("create", "position", err)
	}
	return nil
}

// GetOpenPositions retrieves a session's open positions.
func (s *SQLiteStore) GetOpenPositions(ctx context.Context, sessionID string) ([]*PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, symbol, quantity, entry_price, current_price, stop_loss, take_profit, entry_time, entry_date, exit_time, status, realized_pnl
		FROM positions WHERE session_id = ? AND status = 'OPEN'
		ORDER BY entry_time ASC
	`, sessionID)
	if err != nil {
		return nil, errors.NewStoreError("list", "position", err)
	}
	defer rows.Close()

	var positions []*PositionRecord
	for rows.Next() {
		rec := &PositionRecord{}
		var stopLoss, takeProfit sql.NullFloat64
		var exitTime sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Symbol, &rec.Quantity, &rec.EntryPrice, &rec.CurrentPrice, &stopLoss, &takeProfit, &rec.EntryTime, &rec.EntryDate, &exitTime, &rec.Status, &rec.RealizedPnL); err != nil {
			return nil, errors.NewStoreError("scan", "position", err)
		}
		rec.StopLoss = stopLoss.Float64
		rec.TakeProfit = takeProfit.Float64
		if exitTime.Valid {
			t := exitTime.Time
			rec.ExitTime = &t
		}
		positions = append(positions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list", "position", err)
	}
	return positions, nil
}

// UpdatePositionPrice records the latest traded price for a position.
func (s *SQLiteStore) UpdatePositionPrice(ctx context.Context, id string, price float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE positions SET current_price = ? WHERE id = ?
	`, price, id)
	if err != nil {
		return errors.NewStoreError("update", "position", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewStoreError("update", "position", err)
	}
	if affected == 0 {
		return errors.ErrPositionNotFound
	}
	return nil
}

// ClosePosition marks a position closed with its realized result.
func (s *SQLiteStore) ClosePosition(ctx context.Context, id string, exitTime time.Time, realizedPnL float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE positions SET status = 'CLOSED', exit_time = ?, realized_pnl = ? WHERE id = ?
	`, exitTime, realizedPnL, id)
	if err != nil {
		return errors.NewStoreError("close", "position", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewStoreError("close", "position", err)
	}
	if affected == 0 {
		return errors.ErrPositionNotFound
	}
	return nil
}

// ============================================================================
// Signal Methods
// ============================================================================

// SaveSignal records an emitted signal.
func (s *SQLiteStore) SaveSignal(ctx context.Context, rec *SignalRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals (id, symbol, direction, strength, entry_price, stop_loss, take_profit, notes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Symbol, rec.Direction, rec.Strength, rec.EntryPrice, rec.StopLoss, rec.TakeProfit, rec.Notes, rec.Timestamp)
	if err != nil {
		return errors.NewStoreError("save", "signal", err)
	}
	return nil
}

// GetRecentSignals retrieves the most recently emitted signals.
func (s *SQLiteStore) GetRecentSignals(ctx context.Context, limit int) ([]*SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, direction, strength, entry_price, stop_loss, take_profit, notes, timestamp
		FROM signals ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewStoreError("list", "signal", err)
	}
	defer rows.Close()

	var signals []*SignalRecord
	for rows.Next() {
		rec := &SignalRecord{}
		var notes sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Direction, &rec.Strength, &rec.EntryPrice, &rec.StopLoss, &rec.TakeProfit, &notes, &rec.Timestamp); err != nil {
			return nil, errors.NewStoreError("scan", "signal", err)
		}
		rec.Notes = notes.String
		signals = append(signals, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list", "signal", err)
	}
	return signals, nil
}
