package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/chatsounds/soundboard-server/internal/config"
)

// DB wraps the Postgres pool shared by every repository.
type DB struct {
	*sqlx.DB
}

// Connect opens the pool and fails unless Postgres answers a ping within
// config.DBPingTimeout.
func Connect(databaseURL string) (*DB, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(config.DBConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{db}, nil
}

// Health is the database half of the health endpoint.
type Health struct {
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	OpenConns int    `json:"openConns"`
	Error     string `json:"error,omitempty"`
}

func (db *DB) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()

	start := time.Now()
	err := db.PingContext(ctx)
	h := Health{
		OK:        err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
		OpenConns: db.Stats().OpenConnections,
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}

func (db *DB) Close() error {
	return db.DB.Close()
}
