package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	EngineOpenAI  = "openai"
	EnginePattern = "pattern"
	EngineNone    = "none"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Detection struct {
		// Engine is openai, pattern or none.
		Engine string `yaml:"engine"`
		// Models are registered next to the configured engine, e.g. the
		// external ML services that post results to /v1/analyze.
		Models []Model `yaml:"models"`
	} `yaml:"detection"`

	Auth struct {
		Users []User `yaml:"users"`
	} `yaml:"auth"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// User is an account provisioned from config together with its API key.
type User struct {
	ID       int64  `yaml:"id"`
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	APIKey   string `yaml:"apiKey"`
	Admin    bool   `yaml:"admin"`
}

// Model is a detection model listed in config.
type Model struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Version string `yaml:"version"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		if c.Database.Driver == DriverPostgres {
			c.Database.Port = 5432
		} else {
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "documents"
	}
	if c.Detection.Engine == "" {
		c.Detection.Engine = EngineNone
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 100
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the settings that have no sensible default.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be mysql or postgres, got %q", c.Database.Driver))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}

	switch c.Detection.Engine {
	case EngineNone:
	case EngineOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.apiKey is required for the openai engine"))
		}
	case EnginePattern:
		if c.Minio.Endpoint == "" {
			errs = append(errs, errors.New("minio.endpoint is required for the pattern engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("detection.engine must be openai, pattern or none, got %q", c.Detection.Engine))
	}

	names := map[string]bool{}
	for i, m := range c.Detection.Models {
		switch {
		case m.Name == "":
			errs = append(errs, fmt.Errorf("detection.models[%d].name is required", i))
		case names[m.Name]:
			errs = append(errs, fmt.Errorf("detection.models[%d].name %q is duplicated", i, m.Name))
		case len(m.Name) > 100:
			errs = append(errs, fmt.Errorf("detection.models[%d].name is longer than 100 characters", i))
		}
		names[m.Name] = true
		switch m.Type {
		case "regex", "llm", "ml":
		default:
			errs = append(errs, fmt.Errorf("detection.models[%d].type must be regex, llm or ml, got %q", i, m.Type))
		}
	}

	if len(c.Auth.Users) == 0 {
		errs = append(errs, errors.New("auth.users needs at least one user"))
	}
	ids := map[int64]bool{}
	keys := map[string]bool{}
	for i, u := range c.Auth.Users {
		switch {
		case u.ID <= 0:
			errs = append(errs, fmt.Errorf("auth.users[%d].id must be positive", i))
		case ids[u.ID]:
			errs = append(errs, fmt.Errorf("auth.users[%d].id %d is duplicated", i, u.ID))
		}
		ids[u.ID] = true
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].username is required", i))
		}
		switch {
		case u.APIKey == "":
			errs = append(errs, fmt.Errorf("auth.users[%d].apiKey is required", i))
		case keys[u.APIKey]:
			errs = append(errs, fmt.Errorf("auth.users[%d].apiKey is duplicated", i))
		}
		keys[u.APIKey] = true
	}
	return errors.Join(errs...)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == DriverPostgres {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a postgres:// URL for lib/pq.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     c.Database.Host + ":" + strconv.Itoa(c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}
