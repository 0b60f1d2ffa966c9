// Package storage persists study state as JSON documents in a SQLite
// key-value table.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// Collection keys.
const (
	CardsKey      = "cards"
	ReviewLogsKey = "reviewLogs"
	SessionsKey   = "sessions"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the value stored under key. The boolean is false when the key
// has never been written.
func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Put stores value under key, replacing any previous value.
func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	return put(ctx, db.conn, key, value)
}

func put(ctx context.Context, ex execer, key string, value []byte) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// LoadCards returns all stored cards.
func (db *DB) LoadCards(ctx context.Context) ([]domain.Card, error) {
	var cards []domain.Card
	if err := db.load(ctx, CardsKey, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// SaveCards replaces the stored cards. A nil slice is stored as empty, so
// LoadCards only returns nil before the first save.
func (db *DB) SaveCards(ctx context.Context, cards []domain.Card) error {
	if cards == nil {
		cards = []domain.Card{}
	}
	return db.save(ctx, db.conn, CardsKey, cards)
}

// LoadReviewLogs returns the review history.
func (db *DB) LoadReviewLogs(ctx context.Context) ([]domain.ReviewLog, error) {
	var logs []domain.ReviewLog
	if err := db.load(ctx, ReviewLogsKey, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// SaveReviewLogs replaces the review history.
func (db *DB) SaveReviewLogs(ctx context.Context, logs []domain.ReviewLog) error {
	return db.save(ctx, db.conn, ReviewLogsKey, logs)
}

// SaveReview replaces the cards and the review history in one transaction.
func (db *DB) SaveReview(ctx context.Context, cards []domain.Card, logs []domain.ReviewLog) error {
	if cards == nil {
		cards = []domain.Card{}
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.save(ctx, tx, CardsKey, cards); err != nil {
		return err
	}
	if err := db.save(ctx, tx, ReviewLogsKey, logs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

// LoadSessions returns all study sessions.
func (db *DB) LoadSessions(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	if err := db.load(ctx, SessionsKey, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SaveSessions replaces the stored study sessions.
func (db *DB) SaveSessions(ctx context.Context, sessions []domain.Session) error {
	return db.save(ctx, db.conn, SessionsKey, sessions)
}

func (db *DB) load(ctx context.Context, key string, dst any) error {
	raw, ok, err := db.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (db *DB) save(ctx context.Context, ex execer, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return put(ctx, ex, key, raw)
}
