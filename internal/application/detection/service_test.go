package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/infra/db/mysql"
	"github.com/bryanwahyu/docguard/internal/testutil"
)

func setup(t *testing.T) *Service {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	return &Service{
		Models: mysql.NewModelRepository(db),
		Jobs:   mysql.NewJobRepository(db),
		Clock:  testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)),
	}
}

func TestRegister(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	m := &domain.Model{Name: "  pattern ", ModelType: domain.ModelRegex, Version: "1"}
	if err := svc.Register(ctx, m); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if m.ID == 0 || m.Name != "pattern" || m.CreatedAt.IsZero() {
		t.Errorf("Unexpected model: %+v", m)
	}

	err := svc.Register(ctx, &domain.Model{Name: "", ModelType: "quantum"})
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if len(ve.Fields["name"]) == 0 || len(ve.Fields["model_type"]) == 0 {
		t.Errorf("Expected name and model_type errors, got %v", ve.Fields)
	}

	got, err := svc.GetModel(ctx, m.ID)
	if err != nil || got.Name != "pattern" {
		t.Errorf("GetModel: got %+v / %v", got, err)
	}
	list, err := svc.ListModels(ctx, domain.ModelFilter{})
	if err != nil || len(list) != 1 {
		t.Errorf("ListModels: got %v / %v", list, err)
	}
}

func TestFilterValidation(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"model type", func() error {
			_, err := svc.ListModels(ctx, domain.ModelFilter{ModelType: "quantum"})
			return err
		}, "model_type"},
		{"model ordering", func() error {
			_, err := svc.ListModels(ctx, domain.ModelFilter{Ordering: "version"})
			return err
		}, "ordering"},
		{"job status", func() error {
			_, err := svc.ListJobs(ctx, 1, domain.JobFilter{Status: "queued"})
			return err
		}, "status"},
		{"job ordering", func() error {
			_, err := svc.ListJobs(ctx, 1, domain.JobFilter{Ordering: "-error_message"})
			return err
		}, "ordering"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *errs.ValidationError
			if err := tt.call(); !errors.As(err, &ve) || len(ve.Fields[tt.field]) == 0 {
				t.Errorf("Expected %s validation error, got %v", tt.field, err)
			}
		})
	}

	page, err := svc.ListJobs(ctx, 1, domain.JobFilter{Ordering: "-completed_at"})
	if err != nil || page.Total != 0 {
		t.Errorf("Expected empty job page, got %+v / %v", page, err)
	}
	if _, err := svc.GetJob(ctx, 1, 42); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
