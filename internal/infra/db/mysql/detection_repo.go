package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	domain "github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
)

const modelColumns = `id, name, model_type, version, active, created_at, updated_at`

var modelOrdering = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

type ModelRepository struct {
	db *sql.DB
}

func NewModelRepository(db *sql.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// Register updates the row named m.Name or inserts it, then reads it back.
// The update runs first because RowsAffected is 0 for unchanged MySQL rows.
func (r *ModelRepository) Register(ctx context.Context, m *domain.Model) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
UPDATE detection_models
SET model_type = ?, version = ?, active = ?, updated_at = ?
WHERE name = ?;`,
		m.ModelType, m.Version, true, m.UpdatedAt, m.Name,
	); err != nil {
		return fmt.Errorf("update model: %w", err)
	}

	got, err := scanModel(tx.QueryRowContext(ctx, "SELECT "+modelColumns+" FROM detection_models WHERE name = ? LIMIT 1;", m.Name))
	switch {
	case err == nil:
		*m = *got
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
INSERT INTO detection_models (name, model_type, version, active, created_at, updated_at)
VALUES (?,?,?,?,?,?);`,
			m.Name, m.ModelType, m.Version, true, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert model: %w", err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		m.Active = true
	default:
		return fmt.Errorf("read model: %w", err)
	}
	return tx.Commit()
}

// Get an active model by ID
func (r *ModelRepository) Get(ctx context.Context, id int64) (*domain.Model, error) {
	q := "SELECT " + modelColumns + " FROM detection_models WHERE id = ? AND active = ? LIMIT 1;"
	m, err := scanModel(r.db.QueryRowContext(ctx, q, id, true))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// List active models, optionally of one type.
func (r *ModelRepository) List(ctx context.Context, f domain.ModelFilter) ([]*domain.Model, error) {
	q := "SELECT " + modelColumns + " FROM detection_models WHERE active = ?"
	args := []any{true}
	if f.ModelType != "" {
		q += " AND model_type = ?"
		args = append(args, f.ModelType)
	}
	q += " ORDER BY " + orderClause(f.Ordering, modelOrdering, "id", "name ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying models: %w", err)
	}
	defer rows.Close()

	out := []*domain.Model{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanModel(row rowScanner) (*domain.Model, error) {
	var m domain.Model
	if err := row.Scan(&m.ID, &m.Name, &m.ModelType, &m.Version, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

const jobColumns = `j.id, j.document_id, j.model_id, j.scan_id, j.status, j.started_at, j.completed_at, j.error_message`

var jobOrdering = map[string]string{
	"started_at":   "j.started_at",
	"completed_at": "j.completed_at",
}

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts j and fills j.ID.
func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO detection_jobs (document_id, model_id, scan_id, status, started_at, completed_at, error_message)
VALUES (?,?,?,?,?,?,?);`,
		j.DocumentID, j.ModelID, j.ScanID, j.Status, j.StartedAt, j.CompletedAt, j.ErrorMessage,
	)
	if err != nil {
		return err
	}
	j.ID, err = res.LastInsertId()
	return err
}

// Finish records the outcome of j.
func (r *JobRepository) Finish(ctx context.Context, j *domain.Job) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE detection_jobs
SET status = ?, scan_id = ?, completed_at = ?, error_message = ?
WHERE id = ?;`,
		j.Status, j.ScanID, j.CompletedAt, j.ErrorMessage, j.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %d: %w", j.ID, errs.ErrNotFound)
	}
	return nil
}

// GetOwned loads a job whose document belongs to userID.
func (r *JobRepository) GetOwned(ctx context.Context, userID, id int64) (*domain.Job, error) {
	q := `
SELECT ` + jobColumns + `
FROM detection_jobs j
JOIN documents d ON d.id = j.document_id
WHERE d.user_id = ? AND j.id = ? LIMIT 1;`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, userID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return j, nil
}

// Paginate jobs across all documents of userID.
func (r *JobRepository) Paginate(ctx context.Context, userID int64, f domain.JobFilter) (domain.JobPage, error) {
	page, pageSize, offset := pageBounds(f.Page, f.PageSize)

	where := `
FROM detection_jobs j
JOIN documents d ON d.id = j.document_id
WHERE d.user_id = ?`
	args := []any{userID}
	if f.Status != "" {
		where += " AND j.status = ?"
		args = append(args, f.Status)
	}
	if f.DocumentID != 0 {
		where += " AND j.document_id = ?"
		args = append(args, f.DocumentID)
	}

	order := orderClause(f.Ordering, jobOrdering, "j.id", "j.started_at DESC, j.id DESC")
	q := "SELECT " + jobColumns + where + "\n ORDER BY " + order + "\n LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, pageSize, offset)...)
	if err != nil {
		return domain.JobPage{}, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return domain.JobPage{}, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return domain.JobPage{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return domain.JobPage{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.JobPage{
		Data:       jobs,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j         domain.Job
		modelID   sql.NullInt64
		scanID    sql.NullInt64
		completed sql.NullTime
	)
	if err := row.Scan(&j.ID, &j.DocumentID, &modelID, &scanID, &j.Status, &j.StartedAt, &completed, &j.ErrorMessage); err != nil {
		return nil, err
	}
	if modelID.Valid {
		j.ModelID = &modelID.Int64
	}
	if scanID.Valid {
		j.ScanID = &scanID.Int64
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return &j, nil
}
