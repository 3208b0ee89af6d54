package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of a SQL ledger. Its value is also the
// database/sql driver name.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
)

type dialectQueries struct {
	schema  string
	expire  string
	claim   string
	release string
}

var queries = map[Dialect]dialectQueries{
	Postgres: {
		schema: `
		CREATE TABLE IF NOT EXISTS notification_ledger (
			event_key  TEXT PRIMARY KEY,
			payload    JSONB,
			claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		expire: `DELETE FROM notification_ledger WHERE event_key = $1 AND claimed_at < $2`,
		claim: `
		INSERT INTO notification_ledger (event_key, payload, claimed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_key) DO NOTHING`,
		release: `DELETE FROM notification_ledger WHERE event_key = $1`,
	},
	SQLite: {
		schema: `
		CREATE TABLE IF NOT EXISTS notification_ledger (
			event_key  TEXT PRIMARY KEY,
			payload    TEXT,
			claimed_at DATETIME NOT NULL
		)`,
		expire: `DELETE FROM notification_ledger WHERE event_key = ? AND claimed_at < ?`,
		claim: `
		INSERT OR IGNORE INTO notification_ledger (event_key, payload, claimed_at)
		VALUES (?, ?, ?)`,
		release: `DELETE FROM notification_ledger WHERE event_key = ?`,
	},
	MySQL: {
		schema: `
		CREATE TABLE IF NOT EXISTS notification_ledger (
			event_key  VARCHAR(64) PRIMARY KEY,
			payload    JSON NULL,
			claimed_at DATETIME NOT NULL
		)`,
		expire: `DELETE FROM notification_ledger WHERE event_key = ? AND claimed_at < ?`,
		claim: `
		INSERT IGNORE INTO notification_ledger (event_key, payload, claimed_at)
		VALUES (?, ?, ?)`,
		release: `DELETE FROM notification_ledger WHERE event_key = ?`,
	},
}

// SQL is a Ledger stored in a notification_ledger table. The primary key on
// event_key makes Claim atomic; a claim inserted zero rows when the key was
// already there. A claim older than the ttl is dropped before the insert, so
// keys expire like they do in the other backends.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	q       dialectQueries
	ttl     time.Duration // <= 0 keeps claims forever
	now     func() time.Time
}

// OpenSQL opens dsn with the driver for dialect, pings it and creates the
// table if needed.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string, ttl time.Duration) (*SQL, error) {
	if _, ok := queries[dialect]; !ok {
		return nil, fmt.Errorf("ledger: unknown sql dialect %q", dialect)
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", dialect, err)
	}

	if dialect == SQLite {
		// one writer; also keeps a ":memory:" database alive across calls
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	l, err := NewSQL(ctx, conn, dialect, ttl)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// NewSQL wraps an already-open database.
func NewSQL(ctx context.Context, conn *sql.DB, dialect Dialect, ttl time.Duration) (*SQL, error) {
	q, ok := queries[dialect]
	if !ok {
		return nil, fmt.Errorf("ledger: unknown sql dialect %q", dialect)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ledger: ping %s: %w", dialect, err)
	}
	if _, err := conn.ExecContext(ctx, q.schema); err != nil {
		return nil, fmt.Errorf("ledger: create %s table: %w", dialect, err)
	}

	return &SQL{db: conn, dialect: dialect, q: q, ttl: ttl, now: time.Now}, nil
}

func (s *SQL) Claim(ctx context.Context, key Key, payload []byte) (bool, error) {
	// A body that is not JSON is not worth failing the claim over.
	raw := pqtype.NullRawMessage{RawMessage: json.RawMessage(payload), Valid: json.Valid(payload)}

	now := s.now().UTC()
	if s.ttl > 0 {
		if _, err := s.db.ExecContext(ctx, s.q.expire, string(key), now.Add(-s.ttl)); err != nil {
			return false, fmt.Errorf("ledger: %s expire: %w", s.dialect, err)
		}
	}

	res, err := s.db.ExecContext(ctx, s.q.claim, string(key), raw, now)
	if err != nil {
		return false, fmt.Errorf("ledger: %s claim: %w", s.dialect, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger: %s claim rows: %w", s.dialect, err)
	}
	return n == 1, nil
}

func (s *SQL) Release(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, s.q.release, string(key)); err != nil {
		return fmt.Errorf("ledger: %s release: %w", s.dialect, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	return s.db.Close()
}
