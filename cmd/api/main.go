package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/docguard/internal/application"
	"github.com/bryanwahyu/docguard/internal/application/analysis"
	appdetection "github.com/bryanwahyu/docguard/internal/application/detection"
	appdocs "github.com/bryanwahyu/docguard/internal/application/documents"
	"github.com/bryanwahyu/docguard/internal/application/stats"
	"github.com/bryanwahyu/docguard/internal/config"
	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/domain/users"
	"github.com/bryanwahyu/docguard/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/docguard/internal/infra/db/mysql"
	"github.com/bryanwahyu/docguard/internal/infra/db/postgres"
	"github.com/bryanwahyu/docguard/internal/infra/detection/pattern"
	"github.com/bryanwahyu/docguard/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/docguard/internal/infra/storage"
	"github.com/bryanwahyu/docguard/internal/logging"
	"github.com/bryanwahyu/docguard/internal/middleware"
)

type repositories struct {
	users     users.Repository
	documents documents.Repository
	scans     scans.Repository
	models    detection.ModelRepository
	jobs      detection.JobRepository
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load error", "err", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.Log.Level)

	ctx := context.Background()

	db, repos, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Error("database init error", "driver", cfg.Database.Driver, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := provisionUsers(ctx, repos.users, cfg.Auth.Users); err != nil {
		log.Error("provision users error", "err", err)
		os.Exit(1)
	}

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	// init minio, optional
	var store *minioStore.Store
	if cfg.Minio.Endpoint != "" {
		store, err = minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Error("minio init error", "err", err)
			os.Exit(1)
		}
		checkers["object_store"] = store
	}

	clock := application.SystemClock{}
	statsSvc := &stats.Service{Repo: repos.users}
	detectionSvc := &appdetection.Service{Models: repos.models, Jobs: repos.jobs, Clock: clock}
	modelID, err := registerModels(ctx, detectionSvc, cfg)
	if err != nil {
		log.Error("register detection models error", "err", err)
		os.Exit(1)
	}
	analysisSvc := &analysis.Service{
		Documents: repos.documents,
		Scans:     repos.scans,
		Stats:     statsSvc,
		Engine:    newEngine(cfg, store),
		Jobs:      repos.jobs,
		ModelID:   modelID,
		Clock:     clock,
	}
	if store != nil {
		analysisSvc.Artifacts = store
	}
	docsSvc := &appdocs.Service{
		Repo:  repos.documents,
		Scans: repos.scans,
		Stats: statsSvc,
		Clock: clock,
	}

	keys := make(map[string]middleware.Principal, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		keys[u.APIKey] = middleware.Principal{UserID: u.ID, Admin: u.Admin}
	}

	// the sweeper stops with the server
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	go limiter.Run(runCtx, 5*time.Minute, 10*time.Minute)

	handler := httpserver.NewRouter(httpserver.Deps{
		Documents:      docsSvc,
		Analysis:       analysisSvc,
		Stats:          statsSvc,
		Detection:      detectionSvc,
		APIKeys:        keys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter:    limiter,
		Checkers:       checkers,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info("server listening", "addr", addr, "driver", cfg.Database.Driver, "engine", cfg.Detection.Engine)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")
	stopRun()

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", "err", err)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, repositories, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, repositories{}, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			users:     postgres.NewUserRepository(db),
			documents: postgres.NewDocumentRepository(db),
			scans:     postgres.NewScanRepository(db),
			models:    postgres.NewModelRepository(db),
			jobs:      postgres.NewJobRepository(db),
		}, nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, repositories{}, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			users:     mysqlp.NewUserRepository(db),
			documents: mysqlp.NewDocumentRepository(db),
			scans:     mysqlp.NewScanRepository(db),
			models:    mysqlp.NewModelRepository(db),
			jobs:      mysqlp.NewJobRepository(db),
		}, nil
	}
}

// provisionUsers makes sure every configured API-key owner has a user row.
func provisionUsers(ctx context.Context, repo users.Repository, list []config.User) error {
	now := time.Now().UTC()
	for _, u := range list {
		if err := repo.Upsert(ctx, &users.User{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: now}); err != nil {
			return fmt.Errorf("user %d: %w", u.ID, err)
		}
	}
	return nil
}

// registerModels records the configured engine and the models listed in
// config. It returns the engine's model ID, 0 when no engine runs.
func registerModels(ctx context.Context, svc *appdetection.Service, cfg *config.Config) (int64, error) {
	for _, m := range cfg.Detection.Models {
		rec := &detection.Model{Name: m.Name, ModelType: detection.ModelType(m.Type), Version: m.Version}
		if err := svc.Register(ctx, rec); err != nil {
			return 0, fmt.Errorf("model %q: %w", m.Name, err)
		}
	}

	var engine *detection.Model
	switch cfg.Detection.Engine {
	case config.EngineOpenAI:
		name := cfg.OpenAI.Model
		if name == "" {
			name = openai.DefaultModel
		}
		engine = &detection.Model{Name: "openai:" + name, ModelType: detection.ModelLLM, Version: name}
	case config.EnginePattern:
		engine = &detection.Model{Name: "pattern", ModelType: detection.ModelRegex, Version: pattern.Version}
	default:
		return 0, nil
	}
	if err := svc.Register(ctx, engine); err != nil {
		return 0, fmt.Errorf("engine model: %w", err)
	}
	return engine.ID, nil
}

func newEngine(cfg *config.Config, store *minioStore.Store) detection.Engine {
	switch cfg.Detection.Engine {
	case config.EngineOpenAI:
		if store == nil {
			return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, nil)
		}
		return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, store)
	case config.EnginePattern:
		return pattern.New(store)
	}
	return nil
}
