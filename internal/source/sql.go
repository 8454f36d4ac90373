// Package source loads draw pools from the places comments live: CSV
// exports and the blog's comment store.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"prizedraw/internal/models"
)

var ErrUnknownDriver = errors.New("unknown comment store driver")

// PoolSource loads the entries of one draw pool. ref names the pool, for
// the comment store it is the post ID.
type PoolSource interface {
	LoadPool(ctx context.Context, ref string) ([]models.Entry, error)
}

// Store reads comments joined with their authors. It expects
//
//	app_user(id, display_name, email)
//	comment(id, post_id, user_id, body, created_at)
//
// user_id may be NULL for anonymous comments; those rows come back with a
// blank participant ID.
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps an open database. driver is the database/sql driver name,
// "postgres" or "sqlite".
func NewStore(db *sql.DB, driver string) (*Store, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return &Store{db: db, driver: driver}, nil
}

// Open opens the comment store and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open comment store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping comment store: %w", err)
	}
	store, err := NewStore(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadPool returns every comment on post ref in posting order.
func (s *Store) LoadPool(ctx context.Context, ref string) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.poolQuery(), ref)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		var userID, name, email, body, createdAt sql.NullString
		if err := rows.Scan(&userID, &name, &email, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}

		entry := models.Entry{
			ParticipantID:  userID.String,
			DisplayName:    name.String,
			ContactHandle:  email.String,
			ContentSnippet: body.String,
		}
		if createdAt.Valid && createdAt.String != "" {
			ts, err := parseTimestamp(createdAt.String)
			if err != nil {
				return nil, fmt.Errorf("comment timestamp: %w", err)
			}
			entry.Timestamp = &ts
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return entries, nil
}

func (s *Store) poolQuery() string {
	placeholder := "$1"
	if s.driver == "sqlite" {
		placeholder = "?"
	}
	return `
		SELECT CAST(c.user_id AS TEXT), u.display_name, u.email, c.body, c.created_at
		FROM comment c
		LEFT JOIN app_user u ON u.id = c.user_id
		WHERE c.post_id = ` + placeholder + `
		ORDER BY c.created_at, c.id
	`
}

// Timestamp layouts seen from lib/pq (time.Time scanned into a string),
// modernc sqlite and CSV exports.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
