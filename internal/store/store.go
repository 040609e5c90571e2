package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a create would violate the unique
	// name constraint.
	ErrDuplicate = errors.New("name already exists")
)

// Store persists services and deployments in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and initializes
// the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			team TEXT NOT NULL,
			service_type TEXT NOT NULL,
			environment TEXT NOT NULL,
			description TEXT,
			tags TEXT NOT NULL,
			configuration TEXT NOT NULL,
			infrastructure_config TEXT NOT NULL,
			monitoring_config TEXT NOT NULL,
			status TEXT NOT NULL,
			cicd_status TEXT NOT NULL,
			infrastructure_status TEXT NOT NULL,
			monitoring_status TEXT NOT NULL,
			repository_url TEXT,
			deployment_url TEXT,
			monitoring_url TEXT,
			logs_url TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create services table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_services_team
		ON services(team)
	`)
	if err != nil {
		return fmt.Errorf("failed to create services index: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			team TEXT NOT NULL,
			environment TEXT NOT NULL,
			service_type TEXT NOT NULL,
			configuration TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deployments table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deployments_team
		ON deployments(team)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deployments index: %w", err)
	}

	return nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

// isUniqueViolation detects a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return string(data), nil
}

func unmarshalObject(data string) (map[string]any, error) {
	if data == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to decode JSON column: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func unmarshalTags(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags column: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return t, nil
}

func parseNullTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
