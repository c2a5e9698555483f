package entitlement

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store provides durable phone -> premium entitlement state backed by SQLite.
//
// Writes are serialized through a single connection so concurrent Set calls
// for the same phone cannot lose updates. The premium flag is monotonic: no
// method on this type ever writes premium=0 over an existing record.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the entitlement database in dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create entitlement dir: %w", err)
	}

	dbPath := filepath.Join(dir, "entitlements.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(FULL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open entitlement db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entitlements (
		phone      TEXT PRIMARY KEY,
		premium    INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init entitlement schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity (used for readiness probes).
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get reports whether phone has a premium entitlement. Missing records and
// storage faults both read as false: entitlement decisions fail closed, the
// fault is logged and the client can retry.
func (s *Store) Get(phone string) bool {
	var premium int
	err := s.db.QueryRow(`SELECT premium FROM entitlements WHERE phone = ?`, phone).Scan(&premium)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("entitlement read failed, degrading to false")
		return false
	}
	return premium != 0
}

// Set marks phone as premium. Idempotent: re-delivered events converge to the
// same row, and premium is never lowered by the upsert.
func (s *Store) Set(phone string) error {
	now := time.Now().UTC().Unix()
	_, err := s.db.Exec(`
		INSERT INTO entitlements (phone, premium, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			premium = MAX(premium, excluded.premium),
			updated_at = excluded.updated_at`,
		phone, now, now,
	)
	if err != nil {
		return fmt.Errorf("set entitlement for %s: %w", phone, err)
	}
	return nil
}

// GetRecord retrieves the full entitlement record for phone, or nil if absent.
func (s *Store) GetRecord(phone string) (*Record, error) {
	row := s.db.QueryRow(`SELECT phone, premium, created_at, updated_at FROM entitlements WHERE phone = ?`, phone)
	return scanRecord(row)
}

// List returns all entitlement records, newest first.
func (s *Store) List() ([]*Record, error) {
	rows, err := s.db.Query(`SELECT phone, premium, created_at, updated_at FROM entitlements ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountPremium returns the number of premium entitlements on record.
func (s *Store) CountPremium() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entitlements WHERE premium = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count premium entitlements: %w", err)
	}
	return count, nil
}

func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	var premium int
	var createdAt, updatedAt int64
	err := row.Scan(&rec.Phone, &premium, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan entitlement: %w", err)
	}
	rec.Premium = premium != 0
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rec, nil
}

func scanRecordRow(rows *sql.Rows) (*Record, error) {
	var rec Record
	var premium int
	var createdAt, updatedAt int64
	if err := rows.Scan(&rec.Phone, &premium, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan entitlement: %w", err)
	}
	rec.Premium = premium != 0
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rec, nil
}
