package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// Postgres driver registration.
	_ "github.com/lib/pq"
)

// PostgresSink persists audit entries to PostgreSQL.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink creates a sink over an existing database handle.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// OpenPostgresSink opens a connection from a DSN and wraps it.
func OpenPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS admission_audit (
	id UUID PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL,
	principal TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	engine TEXT NOT NULL,
	action TEXT NOT NULL,
	stage TEXT NOT NULL,
	allowed BOOLEAN NOT NULL,
	reason TEXT,
	audit_level TEXT
);
CREATE INDEX IF NOT EXISTS idx_admission_audit_tenant_time ON admission_audit(tenant_id, timestamp);
`

// Init creates the audit table.
func (s *PostgresSink) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record inserts one entry. A zero ID or Timestamp is filled in here.
func (s *PostgresSink) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admission_audit (id, timestamp, principal, tenant_id, engine, action, stage, allowed, reason, audit_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.Timestamp, entry.Principal, entry.TenantID, entry.Engine,
		entry.Action, entry.Stage, entry.Allowed, entry.Reason, entry.AuditLevel)
	if err != nil {
		return fmt.Errorf("audit: record entry: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
