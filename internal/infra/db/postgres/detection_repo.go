package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	domain "github.com/bryanwahyu/docguard/internal/domain/detection"
)

const modelColumns = `id, name, model_type, version, active, created_at, updated_at`

var modelOrdering = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

type ModelRepository struct{ db *sql.DB }

func NewModelRepository(db *sql.DB) *ModelRepository { return &ModelRepository{db: db} }

// Register upserts m by name and reads the stored row back.
func (r *ModelRepository) Register(ctx context.Context, m *domain.Model) error {
	const q = `
INSERT INTO detection_models (name, model_type, version, active, created_at, updated_at)
VALUES ($1,$2,$3,TRUE,$4,$5)
ON CONFLICT (name) DO UPDATE SET
 model_type = EXCLUDED.model_type,
 version = EXCLUDED.version,
 active = TRUE,
 updated_at = EXCLUDED.updated_at
RETURNING ` + modelColumns + `;`
	got, err := scanModel(r.db.QueryRowContext(ctx, q, m.Name, m.ModelType, m.Version, m.CreatedAt, m.UpdatedAt))
	if err != nil {
		return mapErr(err)
	}
	*m = *got
	return nil
}

func (r *ModelRepository) Get(ctx context.Context, id int64) (*domain.Model, error) {
	q := "SELECT " + modelColumns + " FROM detection_models WHERE id = $1 AND active LIMIT 1;"
	m, err := scanModel(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return m, nil
}

func (r *ModelRepository) List(ctx context.Context, f domain.ModelFilter) ([]*domain.Model, error) {
	var p params
	q := "SELECT " + modelColumns + " FROM detection_models WHERE active"
	if f.ModelType != "" {
		q += " AND model_type = " + p.add(f.ModelType)
	}
	q += " ORDER BY " + orderClause(f.Ordering, modelOrdering, "id", "name ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, q, p.vals...)
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

type JobRepository struct{ db *sql.DB }

func NewJobRepository(db *sql.DB) *JobRepository { return &JobRepository{db: db} }

// Create inserts j and fills j.ID. A missing document is errs.ErrNotFound.
func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO detection_jobs (document_id, model_id, scan_id, status, started_at, completed_at, error_message)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	return mapErr(r.db.QueryRowContext(ctx, q,
		j.DocumentID, j.ModelID, j.ScanID, j.Status, j.StartedAt, j.CompletedAt, j.ErrorMessage,
	).Scan(&j.ID))
}

func (r *JobRepository) Finish(ctx context.Context, j *domain.Job) error {
	const q = `
UPDATE detection_jobs
SET status = $1, scan_id = $2, completed_at = $3, error_message = $4
WHERE id = $5
RETURNING id;`
	var id int64
	if err := r.db.QueryRowContext(ctx, q, j.Status, j.ScanID, j.CompletedAt, j.ErrorMessage, j.ID).Scan(&id); err != nil {
		return fmt.Errorf("job %d: %w", j.ID, mapErr(err))
	}
	return nil
}

func (r *JobRepository) GetOwned(ctx context.Context, userID, id int64) (*domain.Job, error) {
	q := `
SELECT ` + jobColumns + `
FROM detection_jobs j
JOIN documents d ON d.id = j.document_id
WHERE d.user_id = $1 AND j.id = $2 LIMIT 1;`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, userID, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return j, nil
}

func (r *JobRepository) Paginate(ctx context.Context, userID int64, f domain.JobFilter) (domain.JobPage, error) {
	page, pageSize, offset := pageBounds(f.Page, f.PageSize)

	var p params
	where := `
FROM detection_jobs j
JOIN documents d ON d.id = j.document_id
WHERE d.user_id = ` + p.add(userID)
	if f.Status != "" {
		where += " AND j.status = " + p.add(f.Status)
	}
	if f.DocumentID != 0 {
		where += " AND j.document_id = " + p.add(f.DocumentID)
	}
	filterArgs := append([]any(nil), p.vals...)

	order := orderClause(f.Ordering, jobOrdering, "j.id", "j.started_at DESC, j.id DESC")
	q := "SELECT " + jobColumns + where + "\n ORDER BY " + order +
		"\n LIMIT " + p.add(pageSize) + " OFFSET " + p.add(offset)
	rows, err := r.db.QueryContext(ctx, q, p.vals...)
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
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, filterArgs...).Scan(&total); err != nil {
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
