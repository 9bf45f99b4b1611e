package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagebeacon/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "pagebeacon.db"

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// DB provides SQLite-based storage for storage scopes and collected events.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database inside dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d := &DB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := d.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) createTables() error {
	schema := `
	-- Scoped key/value storage (persistent and session scopes)
	CREATE TABLE IF NOT EXISTS kv (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(scope, key)
	);

	-- Events received by the collector
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		received_at DATETIME NOT NULL,
		provider TEXT NOT NULL,
		name TEXT NOT NULL,
		tracking_id TEXT,
		client_id TEXT,
		session_id TEXT,
		session_count INTEGER DEFAULT 0,
		first_visit INTEGER DEFAULT 0,
		session_start INTEGER DEFAULT 0,
		location TEXT,
		title TEXT,
		referrer TEXT,
		engagement_seconds INTEGER DEFAULT 0,
		params TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(client_id, session_id);
	CREATE INDEX IF NOT EXISTS idx_events_received ON events(received_at);
	`

	_, err := d.db.ExecContext(context.Background(), schema)
	return err
}

// GetValue returns the value stored under key in scope.
// It returns ErrNotFound when the key is absent.
func (d *DB) GetValue(ctx context.Context, scope, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE scope = ? AND key = ?`, scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get value: %w", err)
	}
	return value, nil
}

// SetValue inserts or replaces the value stored under key in scope.
func (d *DB) SetValue(ctx context.Context, scope, key, value string) error {
	query := `
	INSERT INTO kv (scope, key, value) VALUES (?, ?, ?)
	ON CONFLICT(scope, key) DO UPDATE SET
		value = excluded.value,
		updated_at = CURRENT_TIMESTAMP
	`
	if _, err := d.db.ExecContext(ctx, query, scope, key, value); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

// DeleteValue removes key from scope. Removing a missing key is not an error.
func (d *DB) DeleteValue(ctx context.Context, scope, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM kv WHERE scope = ? AND key = ?`, scope, key); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

// ClearScope removes every key in scope.
func (d *DB) ClearScope(ctx context.Context, scope string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM kv WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("failed to clear scope: %w", err)
	}
	return nil
}

// CountScope returns the number of keys in scope.
func (d *DB) CountScope(ctx context.Context, scope string) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE scope = ?`, scope).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scope: %w", err)
	}
	return count, nil
}

// InsertEvent stores a collected event. Missing IDs and receive times are filled in.
func (d *DB) InsertEvent(ctx context.Context, ev *model.Event) error {
	if ev.ID == "" {
		ev.ID = model.NewEventID()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}

	paramsJSON, err := json.Marshal(ev.Params)
	if err != nil {
		return fmt.Errorf("failed to serialize params: %w", err)
	}

	query := `
	INSERT INTO events (id, received_at, provider, name, tracking_id, client_id, session_id,
		session_count, first_visit, session_start, location, title, referrer, engagement_seconds, params)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.ExecContext(ctx, query,
		ev.ID,
		ev.ReceivedAt.UTC().Format(timestampLayout),
		string(ev.Provider),
		ev.Name,
		ev.TrackingID,
		ev.ClientID,
		ev.SessionID,
		ev.SessionCount,
		boolToInt(ev.FirstVisit),
		boolToInt(ev.SessionStart),
		ev.Location,
		ev.Title,
		ev.Referrer,
		ev.EngagementSeconds,
		string(paramsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Name       string
	TrackingID string
	ClientID   string
	SessionID  string
	Since      time.Time
	Limit      int
}

// ListEvents returns events matching filter, oldest first.
func (d *DB) ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error) {
	query := `
	SELECT id, received_at, provider, name, tracking_id, client_id, session_id,
		session_count, first_visit, session_start, location, title, referrer, engagement_seconds, params
	FROM events
	WHERE 1=1
	`
	args := make([]any, 0)

	if filter.Name != "" {
		query += " AND name = ?"
		args = append(args, filter.Name)
	}
	if filter.TrackingID != "" {
		query += " AND tracking_id = ?"
		args = append(args, filter.TrackingID)
	}
	if filter.ClientID != "" {
		query += " AND client_id = ?"
		args = append(args, filter.ClientID)
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if !filter.Since.IsZero() {
		query += " AND received_at >= ?"
		args = append(args, filter.Since.UTC().Format(timestampLayout))
	}

	query += " ORDER BY received_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var results []model.Event
	for rows.Next() {
		var (
			ev           model.Event
			receivedAt   string
			provider     string
			firstVisit   int
			sessionStart int
			paramsJSON   sql.NullString
			trackingID   sql.NullString
			clientID     sql.NullString
			sessionID    sql.NullString
			location     sql.NullString
			title        sql.NullString
			referrer     sql.NullString
		)
		err := rows.Scan(
			&ev.ID,
			&receivedAt,
			&provider,
			&ev.Name,
			&trackingID,
			&clientID,
			&sessionID,
			&ev.SessionCount,
			&firstVisit,
			&sessionStart,
			&location,
			&title,
			&referrer,
			&ev.EngagementSeconds,
			&paramsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.ReceivedAt = parseTimestamp(receivedAt)
		ev.Provider = model.Provider(provider)
		ev.TrackingID = trackingID.String
		ev.ClientID = clientID.String
		ev.SessionID = sessionID.String
		ev.FirstVisit = firstVisit != 0
		ev.SessionStart = sessionStart != 0
		ev.Location = location.String
		ev.Title = title.String
		ev.Referrer = referrer.String
		if paramsJSON.Valid && paramsJSON.String != "" && paramsJSON.String != "null" {
			if err := json.Unmarshal([]byte(paramsJSON.String), &ev.Params); err != nil {
				return nil, fmt.Errorf("failed to parse params: %w", err)
			}
		}
		results = append(results, ev)
	}

	return results, rows.Err()
}

// CountEventsByName returns the number of stored events per event name.
func (d *DB) CountEventsByName(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name, COUNT(*) FROM events GROUP BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

// Summary loads the events matching filter and summarizes them.
func (d *DB) Summary(ctx context.Context, filter EventFilter) (*model.Summary, error) {
	events, err := d.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return model.Summarize(events, time.Now().UTC()), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampLayout is fixed width so stored times sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the formats SQLite may hand back.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts each known format and returns zero time when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
