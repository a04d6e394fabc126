package postgres

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

type DocumentRepository struct{ db *sql.DB }

func NewDocumentRepository(db *sql.DB) *DocumentRepository { return &DocumentRepository{db: db} }

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents (user_id, title, file_type, file_key, processed, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	return mapErr(r.db.QueryRowContext(ctx, q,
		d.UserID, d.Title, d.FileType, d.FileKey, d.Processed, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID))
}

func (r *DocumentRepository) Get(ctx context.Context, id int64) (*domain.Document, error) {
	q := "SELECT " + documentColumns + " FROM documents WHERE id=$1 LIMIT 1;"
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

func (r *DocumentRepository) GetOwned(ctx context.Context, userID, id int64) (*domain.Document, error) {
	q := "SELECT " + documentColumns + " FROM documents WHERE user_id=$1 AND id=$2 LIMIT 1;"
	return scanDocument(r.db.QueryRowContext(ctx, q, userID, id))
}

func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	const q = `
UPDATE documents
SET title = $1,
    file_type = $2,
    updated_at = $3
WHERE user_id = $4 AND id = $5;`
	_, err := r.db.ExecContext(ctx, q, d.Title, d.FileType, d.UpdatedAt, d.UserID, d.ID)
	return err
}

// SetProcessed flips the flag only when the stored value differs. The row
// lock taken by UPDATE makes concurrent callers re-check the predicate, so
// exactly one of them sees changed == true.
func (r *DocumentRepository) SetProcessed(ctx context.Context, userID, id int64, processed bool, at time.Time) (bool, error) {
	const q = `
UPDATE documents
SET processed = $1,
    updated_at = $2
WHERE user_id = $3 AND id = $4 AND processed IS DISTINCT FROM $1;`
	res, err := r.db.ExecContext(ctx, q, processed, at, userID, id)
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

	var p params
	where := " WHERE user_id = " + p.add(userID)
	if f.FileType != "" {
		where += " AND file_type = " + p.add(f.FileType)
	}
	if f.Processed != nil {
		where += " AND processed = " + p.add(*f.Processed)
	}
	if f.Search != "" {
		where += " AND title ILIKE " + p.add("%"+escapeLikePattern(f.Search)+"%")
	}
	filterArgs := append([]any(nil), p.vals...)

	query := "SELECT " + documentColumns + " FROM documents" + where +
		"\n ORDER BY " + orderClause(f.Ordering, documentOrdering, "id", "created_at DESC, id DESC") +
		"\n LIMIT " + p.add(pageSize) + " OFFSET " + p.add(offset)
	rows, err := r.db.QueryContext(ctx, query, p.vals...)
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
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents"+where, filterArgs...).Scan(&total); err != nil {
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	if err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.FileType, &d.FileKey, &d.Processed, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}
