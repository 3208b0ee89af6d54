package db_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/nyashahama/unitrade-notifications/internal/db"
)

// openTestDB returns a *sql.DB from DATABASE_URL. Skips if the env var is
// not set so the suite still passes without a Postgres instance.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping db integration tests")
	}
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := pool.PingContext(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestGetProfile_UnknownIDReturnsErrNoRows(t *testing.T) {
	pool := openTestDB(t)
	q := db.New(pool)

	_, err := q.GetProfile(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestGetListing_UnknownIDReturnsErrNoRows(t *testing.T) {
	pool := openTestDB(t)
	q := db.New(pool)

	_, err := q.GetListing(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
