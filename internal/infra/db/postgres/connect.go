package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS users (
  id BIGINT PRIMARY KEY,
  username VARCHAR(150) NOT NULL UNIQUE,
  email VARCHAR(254) NOT NULL DEFAULT '',
  total_documents_saved BIGINT NOT NULL DEFAULT 0 CHECK (total_documents_saved >= 0),
  total_documents_processed BIGINT NOT NULL DEFAULT 0 CHECK (total_documents_processed >= 0),
  total_documents_shared BIGINT NOT NULL DEFAULT 0 CHECK (total_documents_shared >= 0),
  total_sensitive_items_detected BIGINT NOT NULL DEFAULT 0 CHECK (total_sensitive_items_detected >= 0),
  total_non_detected_items BIGINT NOT NULL DEFAULT 0 CHECK (total_non_detected_items >= 0),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, `
CREATE TABLE IF NOT EXISTS documents (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  title VARCHAR(255) NOT NULL,
  file_type VARCHAR(64) NOT NULL,
  file_key VARCHAR(1024) NOT NULL DEFAULT '',
  processed BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user_created ON documents (user_id, created_at)`, `
CREATE TABLE IF NOT EXISTS document_scans (
  id BIGSERIAL PRIMARY KEY,
  document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  risk_level VARCHAR(10) NOT NULL CHECK (risk_level IN ('low','medium','high')),
  processing_time DOUBLE PRECISION NOT NULL DEFAULT 0,
  scan_date TIMESTAMPTZ NOT NULL,
  artifact_url VARCHAR(1024) NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_document_date ON document_scans (document_id, scan_date)`, `
CREATE TABLE IF NOT EXISTS sensitive_items (
  id BIGSERIAL PRIMARY KEY,
  scan_id BIGINT NOT NULL REFERENCES document_scans(id) ON DELETE CASCADE,
  type VARCHAR(64) NOT NULL,
  confidence DOUBLE PRECISION NOT NULL,
  location JSONB NULL,
  count INTEGER NOT NULL DEFAULT 1,
  redacted BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE INDEX IF NOT EXISTS idx_items_scan ON sensitive_items (scan_id)`, `
CREATE TABLE IF NOT EXISTS detection_models (
  id BIGSERIAL PRIMARY KEY,
  name VARCHAR(100) NOT NULL UNIQUE,
  model_type VARCHAR(20) NOT NULL,
  version VARCHAR(50) NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS detection_jobs (
  id BIGSERIAL PRIMARY KEY,
  document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  model_id BIGINT NULL REFERENCES detection_models(id) ON DELETE SET NULL,
  scan_id BIGINT NULL REFERENCES document_scans(id) ON DELETE SET NULL,
  status VARCHAR(20) NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ NULL,
  error_message TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_document_started ON detection_jobs (document_id, started_at)`,
}
