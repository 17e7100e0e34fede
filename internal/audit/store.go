// Package audit persists lifecycle events to a local sqlite database so
// publish/retire/unload history survives restarts.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vineetp6/serving/internal/serving"
)

// Store is a durable serving.EventPublisher.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the event database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Publish records one lifecycle event. Fire-and-forget: failures are
// dropped rather than propagated into the request or lifecycle path.
func (s *Store) Publish(e serving.Event) {
	if s.db == nil {
		return
	}
	var fields []byte
	if len(e.Fields) > 0 {
		fields, _ = json.Marshal(e.Fields)
	}
	_, _ = s.db.Exec(
		"INSERT INTO lifecycle_events (at, name, model, version, fields) VALUES (?, ?, ?, ?, ?);",
		time.Now().UTC(), e.Name, e.Model, e.Version, string(fields),
	)
}

// Record is one persisted lifecycle event.
type Record struct {
	At      time.Time
	Name    string
	Model   string
	Version int64
	Fields  map[string]any
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT at, name, model, version, fields FROM lifecycle_events ORDER BY id DESC LIMIT ?;", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var fields string
		if err := rows.Scan(&r.At, &r.Name, &r.Model, &r.Version, &fields); err != nil {
			return nil, err
		}
		if fields != "" {
			_ = json.Unmarshal([]byte(fields), &r.Fields)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS lifecycle_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at DATETIME NOT NULL,
  name TEXT NOT NULL,
  model TEXT NOT NULL,
  version INTEGER NOT NULL,
  fields TEXT NOT NULL DEFAULT ''
);
`)
	return err
}
