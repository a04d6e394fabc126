// Package testutil holds shared fixtures for repository and HTTP tests. The
// mysql repositories run against an on-disk SQLite database because their
// SQL sticks to the portable subset.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	total_documents_saved INTEGER NOT NULL DEFAULT 0,
	total_documents_processed INTEGER NOT NULL DEFAULT 0,
	total_documents_shared INTEGER NOT NULL DEFAULT 0,
	total_sensitive_items_detected INTEGER NOT NULL DEFAULT 0,
	total_non_detected_items INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_key TEXT NOT NULL DEFAULT '',
	processed BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX idx_documents_user_created ON documents(user_id, created_at);

CREATE TABLE document_scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	risk_level TEXT NOT NULL CHECK (risk_level IN ('low', 'medium', 'high')),
	processing_time REAL NOT NULL DEFAULT 0,
	scan_date DATETIME NOT NULL,
	artifact_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE sensitive_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id INTEGER NOT NULL REFERENCES document_scans(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	confidence REAL NOT NULL,
	location TEXT NULL,
	count INTEGER NOT NULL DEFAULT 1,
	redacted BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX idx_items_scan ON sensitive_items(scan_id);

CREATE TABLE detection_models (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	model_type TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE detection_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	model_id INTEGER NULL REFERENCES detection_models(id) ON DELETE SET NULL,
	scan_id INTEGER NULL REFERENCES document_scans(id) ON DELETE SET NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	completed_at DATETIME NULL,
	error_message TEXT NOT NULL DEFAULT ''
);
`

// SetupTestDB creates a fresh SQLite database with the full schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db := openTestDB(t, "")
	// one writer at a time, like a row lock would enforce
	db.SetMaxOpenConns(1)
	return db
}

// SetupConcurrentTestDB is SetupTestDB with a WAL journal and a pool of
// connections, so transactions really interleave. A transaction that reads
// a row and then writes it after another connection committed fails with
// SQLITE_BUSY instead of silently overwriting, which makes lost updates
// visible to concurrency tests.
func SetupConcurrentTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db := openTestDB(t, "&_pragma=journal_mode(WAL)")
	db.SetMaxOpenConns(8)
	return db
}

func openTestDB(t *testing.T, pragmas string) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_time_format=sqlite" + pragmas
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

// CreateTestUser inserts a user with zeroed counters.
func CreateTestUser(t *testing.T, db *sql.DB, id int64, username string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO users (id, username, email, created_at)
		VALUES (?, ?, ?, ?)
	`, id, username, username+"@example.com", time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
}

// CreateTestDocument inserts a document and returns its id.
func CreateTestDocument(t *testing.T, db *sql.DB, userID int64, title, fileType string, processed bool) int64 {
	t.Helper()

	now := time.Now().UTC()
	res, err := db.Exec(`
		INSERT INTO documents (user_id, title, file_type, file_key, processed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userID, title, fileType, "", processed, now, now)
	if err != nil {
		t.Fatalf("Failed to create test document: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read document id: %v", err)
	}
	return id
}

// CountRows returns SELECT COUNT(*) for table, optionally filtered.
func CountRows(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// Clock is a settable clock for deterministic timestamps.
type Clock struct {
	mu sync.Mutex
	T  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{T: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.T = c.T.Add(d)
	c.mu.Unlock()
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
