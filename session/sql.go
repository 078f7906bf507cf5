package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/smarter-sh/smarter-sub001/core"
)

// DefaultTable is the table SQLStore uses unless configured otherwise.
const DefaultTable = "chat_history"

// SQLOptions configure a SQLStore.
type SQLOptions struct {
	// Driver selects the bind placeholder style: "postgres" and "pgx" use
	// $n, everything else uses ?.
	Driver string
	Table  string
	// Now stamps appended rows. Defaults to time.Now.
	Now func() time.Time
}

// SQLStore is a HistoryStore over database/sql. Each message is one row
// keyed by (session_key, seq) holding the JSON encoded message; the primary
// key rejects concurrent appends that race for the same sequence numbers.
type SQLStore struct {
	db   *sql.DB
	opts SQLOptions

	selectThread string
	selectMaxSeq string
	insertRow    string
}

// NewSQLStore wraps an open database. Call Migrate to create the table.
func NewSQLStore(db *sql.DB, optFns ...func(o *SQLOptions)) (*SQLStore, error) {
	if db == nil {
		return nil, core.Errorf(core.ErrConfiguration, "session.sql", "database is required")
	}
	opts := SQLOptions{Driver: "sqlite", Table: DefaultTable, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !validIdent(opts.Table) {
		return nil, core.Errorf(core.ErrConfiguration, "session.sql", "invalid table name %q", opts.Table)
	}

	s := &SQLStore{db: db, opts: opts}
	s.selectThread = s.bind(fmt.Sprintf("SELECT message FROM %s WHERE session_key = ? ORDER BY seq", opts.Table))
	s.selectMaxSeq = s.bind(fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) FROM %s WHERE session_key = ?", opts.Table))
	s.insertRow = s.bind(fmt.Sprintf("INSERT INTO %s (session_key, seq, role, message, created_at) VALUES (?, ?, ?, ?, ?)", opts.Table))
	return s, nil
}

// Open opens driver/dsn and returns a migrated store. optFns apply after
// the driver is set.
func Open(ctx context.Context, driver, dsn string, optFns ...func(o *SQLOptions)) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrConfiguration, "session.open", fmt.Errorf("failed to open database: %w", err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrConfiguration, "session.open", fmt.Errorf("failed to ping database: %w", err))
	}
	s, err := NewSQLStore(db, append([]func(o *SQLOptions){func(o *SQLOptions) { o.Driver = driver }}, optFns...)...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the history table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	session_key TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_key, seq)
)`, s.opts.Table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.opts.Table, err)
	}
	return nil
}

// LatestMessages implements HistoryStore.
func (s *SQLStore) LatestMessages(ctx context.Context, key string) ([]core.Message, bool, error) {
	rows, err := s.db.QueryContext(ctx, s.selectThread, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, false, fmt.Errorf("failed to scan message: %w", err)
		}
		var m core.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, false, fmt.Errorf("failed to decode message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate history: %w", err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

// Append implements HistoryStore. All messages are written in one
// transaction.
func (s *SQLStore) Append(ctx context.Context, key string, messages ...core.Message) error {
	if key == "" {
		return core.Errorf(core.ErrInput, "session.append", "session key is required")
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, s.selectMaxSeq, key).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	now := s.opts.Now().UTC()
	for _, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		seq++
		if _, err := tx.ExecContext(ctx, s.insertRow, key, seq, string(m.Role), string(raw), now); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}

// DB exposes the underlying connection.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the underlying connection.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) bind(q string) string {
	if s.opts.Driver != "postgres" && s.opts.Driver != "pgx" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
