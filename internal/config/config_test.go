package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimal = `
database:
  name: docguard
auth:
  users:
    - id: 1
      username: alice
      apiKey: key-alice
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Driver != DriverMySQL || cfg.Database.Port != 3306 {
		t.Errorf("Expected mysql on 3306, got %s on %d", cfg.Database.Driver, cfg.Database.Port)
	}
	if cfg.Detection.Engine != EngineNone {
		t.Errorf("Expected engine none, got %q", cfg.Detection.Engine)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level info, got %q", cfg.Log.Level)
	}
}

func TestParseFull(t *testing.T) {
	data := `
server:
  port: 9000
  readTimeout: 5s
database:
  driver: postgres
  host: db
  user: app
  password: "p@ss word"
  name: docguard
minio:
  endpoint: minio:9000
detection:
  engine: pattern
  models:
    - name: bert-pii
      type: ml
      version: "3.1"
auth:
  users:
    - id: 1
      username: alice
      apiKey: key-alice
      admin: true
    - id: 2
      username: bob
      apiKey: key-bob
rateLimit:
  capacity: 5
  refillRate: 1
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Expected read timeout 5s, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected postgres default port 5432, got %d", cfg.Database.Port)
	}
	want := "postgres://app:p%40ss%20word@db:5432/docguard?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("Expected DSN %q, got %q", want, got)
	}
	if len(cfg.Detection.Models) != 1 || cfg.Detection.Models[0] != (Model{Name: "bert-pii", Type: "ml", Version: "3.1"}) {
		t.Errorf("Unexpected detection models: %+v", cfg.Detection.Models)
	}
	if !cfg.Auth.Users[0].Admin || cfg.Auth.Users[1].Admin {
		t.Errorf("Unexpected admin flags: %+v", cfg.Auth.Users)
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg.Database.User = "root"
	cfg.Database.Password = "secret"
	want := "root:secret@tcp(localhost:3306)/docguard?parseTime=true&charset=utf8mb4&loc=UTC"
	if got := cfg.DSN(); got != want {
		t.Errorf("Expected DSN %q, got %q", want, got)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "database: {driver: oracle, name: x}\n" + usersYAML, "database.driver"},
		{"missing name", usersYAML, "database.name is required"},
		{"openai without key", "database: {name: x}\ndetection: {engine: openai}\n" + usersYAML, "openai.apiKey"},
		{"pattern without minio", "database: {name: x}\ndetection: {engine: pattern}\n" + usersYAML, "minio.endpoint"},
		{"unknown engine", "database: {name: x}\ndetection: {engine: magic}\n" + usersYAML, "detection.engine"},
		{"no users", "database: {name: x}\n", "auth.users needs at least one user"},
		{"model without name", "database: {name: x}\ndetection: {models: [{type: ml}]}\n" + usersYAML, "detection.models[0].name is required"},
		{"model bad type", "database: {name: x}\ndetection: {models: [{name: bert, type: quantum}]}\n" + usersYAML, "detection.models[0].type"},
		{"duplicate model", "database: {name: x}\ndetection: {models: [{name: bert, type: ml}, {name: bert, type: ml}]}\n" + usersYAML, "detection.models[1].name \"bert\" is duplicated"},
		{"duplicate key", `database: {name: x}
auth:
  users:
    - {id: 1, username: a, apiKey: k}
    - {id: 2, username: b, apiKey: k}
`, "apiKey is duplicated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

const usersYAML = `auth:
  users:
    - {id: 1, username: alice, apiKey: key-alice}
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimal), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Name != "docguard" {
		t.Errorf("Expected database name docguard, got %q", cfg.Database.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
