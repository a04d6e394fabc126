package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables when they do not exist yet. Statements run one
// at a time because the driver rejects multi-statement strings by default.
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
  id BIGINT NOT NULL PRIMARY KEY,
  username VARCHAR(150) NOT NULL,
  email VARCHAR(254) NOT NULL DEFAULT '',
  total_documents_saved BIGINT NOT NULL DEFAULT 0,
  total_documents_processed BIGINT NOT NULL DEFAULT 0,
  total_documents_shared BIGINT NOT NULL DEFAULT 0,
  total_sensitive_items_detected BIGINT NOT NULL DEFAULT 0,
  total_non_detected_items BIGINT NOT NULL DEFAULT 0,
  created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
  UNIQUE KEY uq_users_username (username)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS documents (
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  user_id BIGINT NOT NULL,
  title VARCHAR(255) NOT NULL,
  file_type VARCHAR(64) NOT NULL,
  file_key VARCHAR(1024) NOT NULL DEFAULT '',
  processed TINYINT(1) NOT NULL DEFAULT 0,
  created_at DATETIME(6) NOT NULL,
  updated_at DATETIME(6) NOT NULL,
  KEY idx_documents_user_created (user_id, created_at),
  CONSTRAINT fk_documents_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS document_scans (
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  document_id BIGINT NOT NULL,
  risk_level ENUM('low','medium','high') NOT NULL,
  processing_time DOUBLE NOT NULL DEFAULT 0,
  scan_date DATETIME(6) NOT NULL,
  artifact_url VARCHAR(1024) NOT NULL DEFAULT '',
  KEY idx_scans_document_date (document_id, scan_date),
  CONSTRAINT fk_scans_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS sensitive_items (
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  scan_id BIGINT NOT NULL,
  type VARCHAR(64) NOT NULL,
  confidence DOUBLE NOT NULL,
  location JSON NULL,
  count INT NOT NULL DEFAULT 1,
  redacted TINYINT(1) NOT NULL DEFAULT 0,
  KEY idx_items_scan (scan_id),
  CONSTRAINT fk_items_scan FOREIGN KEY (scan_id) REFERENCES document_scans(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS detection_models (
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  name VARCHAR(100) NOT NULL,
  model_type VARCHAR(20) NOT NULL,
  version VARCHAR(50) NOT NULL DEFAULT '',
  active TINYINT(1) NOT NULL DEFAULT 1,
  created_at DATETIME(6) NOT NULL,
  updated_at DATETIME(6) NOT NULL,
  UNIQUE KEY uq_detection_models_name (name)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS detection_jobs (
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  document_id BIGINT NOT NULL,
  model_id BIGINT NULL,
  scan_id BIGINT NULL,
  status VARCHAR(20) NOT NULL,
  started_at DATETIME(6) NOT NULL,
  completed_at DATETIME(6) NULL,
  error_message TEXT NOT NULL,
  KEY idx_jobs_document_started (document_id, started_at),
  CONSTRAINT fk_jobs_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
  CONSTRAINT fk_jobs_model FOREIGN KEY (model_id) REFERENCES detection_models(id) ON DELETE SET NULL,
  CONSTRAINT fk_jobs_scan FOREIGN KEY (scan_id) REFERENCES document_scans(id) ON DELETE SET NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
