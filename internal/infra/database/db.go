package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Pool limits for the history mirror. Writes arrive one sent message at a
// time from the job queue.
const (
	mirrorMaxOpenConns = 5
	mirrorMaxIdleConns = 2
	mirrorConnLifetime = 30 * time.Minute
	mirrorConnIdleTime = 5 * time.Minute
)

// OpenHistoryDB connects to the Postgres database that mirrors SMS history.
// The returned pool has been pinged; callers own Close.
func OpenHistoryDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	configurePool(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history database unreachable: %w", err)
	}
	return db, nil
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(mirrorMaxOpenConns)
	db.SetMaxIdleConns(mirrorMaxIdleConns)
	db.SetConnMaxLifetime(mirrorConnLifetime)
	db.SetConnMaxIdleTime(mirrorConnIdleTime)
}
