package detection

import (
	"context"
	"slices"
	"strings"

	"github.com/bryanwahyu/docguard/internal/application"
	domain "github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/logging"
)

// Service exposes the model registry and the caller's detection jobs.
type Service struct {
	Models domain.ModelRepository
	Jobs   domain.JobRepository
	Clock  application.Clock
}

// Register records m as an active model and fills its ID.
func (s *Service) Register(ctx context.Context, m *domain.Model) error {
	v := &errs.ValidationError{}
	if strings.TrimSpace(m.Name) == "" {
		v.Add("name", "This field may not be blank.")
	}
	if !m.ModelType.Valid() {
		v.Add("model_type", "\""+string(m.ModelType)+"\" is not a valid choice.")
	}
	if err := v.OrNil(); err != nil {
		return err
	}

	now := s.Clock.Now().UTC()
	m.Name = strings.TrimSpace(m.Name)
	m.CreatedAt, m.UpdatedAt = now, now
	if err := s.Models.Register(ctx, m); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("detection model registered", "model_id", m.ID, "name", m.Name, "model_type", m.ModelType)
	return nil
}

// ListModels returns the active models.
func (s *Service) ListModels(ctx context.Context, f domain.ModelFilter) ([]*domain.Model, error) {
	if f.ModelType != "" && !f.ModelType.Valid() {
		return nil, errs.NewValidationError("model_type", "Select a valid choice. "+string(f.ModelType)+" is not one of the available choices.")
	}
	if f.Ordering == "" {
		f.Ordering = domain.DefaultModelOrdering
	}
	if !validOrdering(f.Ordering, domain.ModelOrderingFields) {
		return nil, errs.NewValidationError("ordering", "Invalid ordering field: "+f.Ordering)
	}
	return s.Models.List(ctx, f)
}

// GetModel returns one active model.
func (s *Service) GetModel(ctx context.Context, id int64) (*domain.Model, error) {
	return s.Models.Get(ctx, id)
}

// ListJobs pages through jobs run on the user's documents.
func (s *Service) ListJobs(ctx context.Context, userID int64, f domain.JobFilter) (domain.JobPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return domain.JobPage{}, errs.NewValidationError("status", "Select a valid choice. "+string(f.Status)+" is not one of the available choices.")
	}
	if f.Ordering == "" {
		f.Ordering = domain.DefaultJobOrdering
	}
	if !validOrdering(f.Ordering, domain.JobOrderingFields) {
		return domain.JobPage{}, errs.NewValidationError("ordering", "Invalid ordering field: "+f.Ordering)
	}
	return s.Jobs.Paginate(ctx, userID, f)
}

// GetJob returns one job of the user's documents.
func (s *Service) GetJob(ctx context.Context, userID, id int64) (*domain.Job, error) {
	return s.Jobs.GetOwned(ctx, userID, id)
}

func validOrdering(o string, fields []string) bool {
	return slices.Contains(fields, strings.TrimPrefix(o, "-"))
}
