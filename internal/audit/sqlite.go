// Package audit records per-request prediction audit rows in a local
// SQLite database. The log answers one question retrospectively:
// which predictions ran with defaulted features rather than fully
// supplied inputs, and what did they return.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/drug-risk-ml-server/internal/domain"
)

// SQLiteStore implements the AuditStore interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		log:    logger,
	}, nil
}

// NewStoreWithDB wraps an existing connection; used by tests.
func NewStoreWithDB(db *sql.DB, logger *logrus.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, log: logger}
}

// createSchema creates the audit table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS prediction_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		drug_name TEXT NOT NULL,
		mode TEXT NOT NULL,
		probability REAL NOT NULL,
		risk_level TEXT NOT NULL,
		confidence TEXT NOT NULL,
		defaulted_features TEXT DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_request_id ON prediction_audit(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON prediction_audit(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts one audit row.
func (s *SQLiteStore) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO prediction_audit (
			request_id, drug_name, mode, probability,
			risk_level, confidence, defaulted_features, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		entry.RequestID,
		entry.DrugName,
		string(entry.Mode),
		entry.Probability,
		string(entry.RiskLevel),
		string(entry.Confidence),
		strings.Join(entry.DefaultedFeatures, ","),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit row: %w", err)
	}
	return nil
}

// RecentByRequest returns audit rows for one request ID, newest first.
func (s *SQLiteStore) RecentByRequest(ctx context.Context, requestID string) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, request_id, drug_name, mode, probability,
			   risk_level, confidence, defaulted_features, created_at
		FROM prediction_audit
		WHERE request_id = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying audit rows: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var mode, riskLevel, confidence, defaulted string
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.DrugName,
			&mode,
			&entry.Probability,
			&riskLevel,
			&confidence,
			&defaulted,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		entry.Mode = domain.ModelMode(mode)
		entry.RiskLevel = domain.RiskLevel(riskLevel)
		entry.Confidence = domain.ConfidenceBand(confidence)
		if defaulted != "" {
			entry.DefaultedFeatures = strings.Split(defaulted, ",")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AsyncStore decorates an AuditStore with fire-and-forget recording.
// Audit is best-effort; a failed write logs a warning and never
// surfaces to the request path.
type AsyncStore struct {
	inner domain.AuditStore
	log   *logrus.Logger
}

// NewAsyncStore wraps inner with asynchronous best-effort recording.
func NewAsyncStore(inner domain.AuditStore, logger *logrus.Logger) *AsyncStore {
	return &AsyncStore{inner: inner, log: logger}
}

// Record writes the entry in the background. The request context is
// deliberately not reused: the audit write should survive the request
// finishing first.
func (s *AsyncStore) Record(_ context.Context, entry *domain.AuditEntry) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.inner.Record(ctx, entry); err != nil {
			s.log.WithError(err).WithField("request_id", entry.RequestID).
				Warn("Audit write failed")
		}
	}()
	return nil
}

// Close closes the wrapped store.
func (s *AsyncStore) Close() error {
	return s.inner.Close()
}
