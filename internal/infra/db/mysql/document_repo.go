package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/docguard/internal/domain/documents"
)

const documentColumns = `id, user_id, title, file_type, file_key, processed, created_at, updated_at`

var documentOrdering = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
}

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts d and fills d.ID.
func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents (user_id, title, file_type, file_key, processed, created_at, updated_at)
VALUES (?,?,?,?,?,?,?);`
	res, err := r.db.ExecContext(ctx, q,
		d.UserID, d.Title, d.FileType, d.FileKey, d.Processed, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// Get by ID
func (r *DocumentRepository) Get(ctx context.Context, id int64) (*domain.Document, error) {
	q := "SELECT " + documentColumns + " FROM documents WHERE id=? LIMIT 1;"
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// GetOwned by ID + owner
func (r *DocumentRepository) GetOwned(ctx context.Context, userID, id int64) (*domain.Document, error) {
	q := "SELECT " + documentColumns + " FROM documents WHERE user_id=? AND id=? LIMIT 1;"
	return scanDocument(r.db.QueryRowContext(ctx, q, userID, id))
}

// Update writes title, file_type and updated_at of d.
func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	const q = `
UPDATE documents
SET title = ?,
    file_type = ?,
    updated_at = ?
WHERE user_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q, d.Title, d.FileType, d.UpdatedAt, d.UserID, d.ID)
	return err
}

// SetProcessed flips the flag only when the stored value differs, so of
// several concurrent callers exactly one sees changed == true.
func (r *DocumentRepository) SetProcessed(ctx context.Context, userID, id int64, processed bool, at time.Time) (bool, error) {
	const q = `
UPDATE documents
SET processed = ?,
    updated_at = ?
WHERE user_id = ? AND id = ? AND processed <> ?;`
	res, err := r.db.ExecContext(ctx, q, processed, at, userID, id, processed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Paginate with offset + limit (classic pagination)
func (r *DocumentRepository) Paginate(ctx context.Context, userID int64, f domain.Filter) (domain.PaginatedResult, error) {
	page, pageSize, offset := pageBounds(f.Page, f.PageSize)
	where, args := documentWhere(userID, f)

	query := "SELECT " + documentColumns + " FROM documents" + where +
		"\n ORDER BY " + orderClause(f.Ordering, documentOrdering, "id", "created_at DESC, id DESC") +
		"\n LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents"+where, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       docs,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func documentWhere(userID int64, f domain.Filter) (string, []any) {
	where := " WHERE user_id = ?"
	args := []any{userID}
	if f.FileType != "" {
		where += " AND file_type = ?"
		args = append(args, f.FileType)
	}
	if f.Processed != nil {
		where += " AND processed = ?"
		args = append(args, *f.Processed)
	}
	if f.Search != "" {
		where += " AND title LIKE ? ESCAPE '!'"
		args = append(args, "%"+escapeLikePattern(f.Search)+"%")
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	if err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.FileType, &d.FileKey, &d.Processed, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}
