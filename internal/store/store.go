// ABOUTME: Upload history persisted with sqlx on SQLite, PostgreSQL or MySQL
// ABOUTME: Records one row per upload outcome and lists recent rows per station
package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/harperreed/radiowatch/internal/sampling"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	DefaultLimit = 50
	MaxLimit     = 500
)

var schemas = map[string]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS sample_uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		segment_id TEXT NOT NULL,
		station_id TEXT NOT NULL,
		captured_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		filename TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		error_message TEXT NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sample_uploads_station ON sample_uploads (station_id, captured_at);`,

	DriverPostgres: `CREATE TABLE IF NOT EXISTS sample_uploads (
		id BIGSERIAL PRIMARY KEY,
		segment_id VARCHAR(64) NOT NULL,
		station_id VARCHAR(128) NOT NULL,
		captured_at BIGINT NOT NULL,
		duration_ms BIGINT NOT NULL,
		filename VARCHAR(255) NOT NULL,
		bytes BIGINT NOT NULL,
		status_code INTEGER NOT NULL,
		error_message TEXT NOT NULL,
		finished_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sample_uploads_station ON sample_uploads (station_id, captured_at);`,

	DriverMySQL: `CREATE TABLE IF NOT EXISTS sample_uploads (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		segment_id VARCHAR(64) NOT NULL,
		station_id VARCHAR(128) NOT NULL,
		captured_at BIGINT NOT NULL,
		duration_ms BIGINT NOT NULL,
		filename VARCHAR(255) NOT NULL,
		bytes BIGINT NOT NULL,
		status_code INT NOT NULL,
		error_message TEXT NOT NULL,
		finished_at BIGINT NOT NULL,
		INDEX idx_sample_uploads_station (station_id, captured_at)
	)`,
}

// Config selects the database
type Config struct {
	Driver string
	DSN    string
}

// Validate checks the driver name
func (c Config) Validate() error {
	if _, ok := schemas[c.Driver]; !ok {
		return fmt.Errorf("unsupported store driver: %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("store dsn is required")
	}
	return nil
}

// Record is one stored upload outcome
type Record struct {
	ID         int64     `db:"id" json:"id"`
	SegmentID  string    `db:"segment_id" json:"segmentId"`
	StationID  string    `db:"station_id" json:"stationId"`
	CapturedMS int64     `db:"captured_at" json:"-"`
	DurationMS int64     `db:"duration_ms" json:"durationMs"`
	Filename   string    `db:"filename" json:"filename"`
	Bytes      int64     `db:"bytes" json:"bytes"`
	StatusCode int       `db:"status_code" json:"statusCode"`
	Error      string    `db:"error_message" json:"error,omitempty"`
	FinishedMS int64     `db:"finished_at" json:"-"`
	CapturedAt time.Time `db:"-" json:"capturedAt"`
	FinishedAt time.Time `db:"-" json:"finishedAt"`
}

// OK reports whether the upload succeeded
func (r Record) OK() bool {
	return r.Error == ""
}

// Store persists upload outcomes
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects and ensures the schema exists
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite && isSQLiteFile(cfg.DSN) {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// Every connection to ":memory:" is its own database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db, cfg.Driver); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Upload history stored in %s database", cfg.Driver)
	return &Store{db: db, driver: cfg.Driver}, nil
}

// isSQLiteFile reports whether dsn names a plain file path
func isSQLiteFile(dsn string) bool {
	return dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

func migrate(ctx context.Context, db *sqlx.DB, driver string) error {
	for _, stmt := range strings.Split(schemas[driver], ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one outcome
func (s *Store) Record(ctx context.Context, o sampling.Outcome) error {
	row := Record{
		SegmentID:  o.SegmentID,
		StationID:  o.StationID,
		CapturedMS: o.CapturedAt.UnixMilli(),
		DurationMS: o.Duration.Milliseconds(),
		Filename:   o.Filename,
		Bytes:      int64(o.Bytes),
		StatusCode: o.StatusCode,
		FinishedMS: o.FinishedAt.UnixMilli(),
	}
	if o.Err != nil {
		row.Error = o.Err.Error()
	}

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO sample_uploads
		(segment_id, station_id, captured_at, duration_ms, filename, bytes, status_code, error_message, finished_at)
		VALUES (:segment_id, :station_id, :captured_at, :duration_ms, :filename, :bytes, :status_code, :error_message, :finished_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to record upload %s: %w", o.SegmentID, err)
	}
	return nil
}

// Recent returns a station's latest outcomes, newest first
func (s *Store) Recent(ctx context.Context, stationID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	query := s.db.Rebind(`SELECT id, segment_id, station_id, captured_at, duration_ms, filename,
		bytes, status_code, error_message, finished_at
		FROM sample_uploads WHERE station_id = ? ORDER BY captured_at DESC, id DESC LIMIT ?`)

	var rows []Record
	if err := s.db.SelectContext(ctx, &rows, query, stationID, limit); err != nil {
		return nil, fmt.Errorf("failed to list uploads for %s: %w", stationID, err)
	}

	for i := range rows {
		rows[i].CapturedAt = time.UnixMilli(rows[i].CapturedMS).UTC()
		rows[i].FinishedAt = time.UnixMilli(rows[i].FinishedMS).UTC()
	}
	return rows, nil
}

// Totals counts successful and failed uploads of a station
func (s *Store) Totals(ctx context.Context, stationID string) (ok, failed int, err error) {
	query := s.db.Rebind(`SELECT
		COALESCE(SUM(CASE WHEN error_message = '' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN error_message <> '' THEN 1 ELSE 0 END), 0)
		FROM sample_uploads WHERE station_id = ?`)

	if err := s.db.QueryRowxContext(ctx, query, stationID).Scan(&ok, &failed); err != nil {
		return 0, 0, fmt.Errorf("failed to count uploads for %s: %w", stationID, err)
	}
	return ok, failed, nil
}
