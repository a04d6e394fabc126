package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	domain "github.com/bryanwahyu/docguard/internal/domain/scans"
)

const scanColumns = `s.id, s.document_id, s.risk_level, s.processing_time, s.scan_date, s.artifact_url`

var scanOrdering = map[string]string{
	"scan_date": "s.scan_date",
}

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// CreateWithItems inserts the scan, its items and flips documents.processed
// in one transaction.
func (r *ScanRepository) CreateWithItems(ctx context.Context, s *domain.Scan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
INSERT INTO document_scans (document_id, risk_level, processing_time, scan_date, artifact_url)
VALUES (?,?,?,?,?);`,
		s.DocumentID, s.RiskLevel, s.ProcessingTime, s.ScanDate, s.ArtifactURL,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scan id: %w", err)
	}

	for i := range s.Items {
		it := &s.Items[i]
		res, err := tx.ExecContext(ctx, `
INSERT INTO sensitive_items (scan_id, type, confidence, location, count, redacted)
VALUES (?,?,?,?,?,?);`,
			scanID, it.Type, it.Confidence, nullJSON(it.Location), it.Count, it.Redacted,
		)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("item id: %w", err)
		}
		it.ScanID = scanID
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET processed = ?, updated_at = ? WHERE id = ?;`,
		true, s.ScanDate, s.DocumentID,
	); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.ID = scanID
	return nil
}

// GetOwned loads a scan whose document belongs to userID.
func (r *ScanRepository) GetOwned(ctx context.Context, userID, id int64) (*domain.Scan, error) {
	q := `
SELECT ` + scanColumns + `
FROM document_scans s
JOIN documents d ON d.id = s.document_id
WHERE d.user_id = ? AND s.id = ? LIMIT 1;`
	var s domain.Scan
	if err := r.db.QueryRowContext(ctx, q, userID, id).Scan(
		&s.ID, &s.DocumentID, &s.RiskLevel, &s.ProcessingTime, &s.ScanDate, &s.ArtifactURL,
	); err != nil {
		return nil, notFound(err)
	}
	out := []*domain.Scan{&s}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByDocument returns every scan of a document, newest first.
func (r *ScanRepository) ListByDocument(ctx context.Context, documentID int64) ([]*domain.Scan, error) {
	q := `
SELECT ` + scanColumns + `
FROM document_scans s
WHERE s.document_id = ?
ORDER BY s.scan_date DESC, s.id DESC;`
	out, err := r.query(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Paginate scans across all documents of userID.
func (r *ScanRepository) Paginate(ctx context.Context, userID int64, f domain.Filter) (domain.PaginatedResult, error) {
	page, pageSize, offset := pageBounds(f.Page, f.PageSize)

	where := `
FROM document_scans s
JOIN documents d ON d.id = s.document_id
WHERE d.user_id = ?`
	args := []any{userID}
	if f.RiskLevel != "" {
		where += " AND s.risk_level = ?"
		args = append(args, f.RiskLevel)
	}

	order := orderClause(f.Ordering, scanOrdering, "s.id", "s.scan_date DESC, s.id DESC")
	q := "SELECT " + scanColumns + where + "\n ORDER BY " + order + "\n LIMIT ? OFFSET ?"
	out, err := r.query(ctx, q, append(args, pageSize, offset)...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying scans: %w", err)
	}
	if err := r.attachItems(ctx, out); err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (r *ScanRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Scan, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Scan{}
	for rows.Next() {
		var s domain.Scan
		if err := rows.Scan(
			&s.ID, &s.DocumentID, &s.RiskLevel, &s.ProcessingTime, &s.ScanDate, &s.ArtifactURL,
		); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// attachItems loads the sensitive items of every scan with one IN query.
func (r *ScanRepository) attachItems(ctx context.Context, list []*domain.Scan) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Scan, len(list))
	args := make([]any, 0, len(list))
	for _, s := range list {
		s.Items = []domain.SensitiveItem{}
		byID[s.ID] = s
		args = append(args, s.ID)
	}

	q := `
SELECT id, scan_id, type, confidence, location, count, redacted
FROM sensitive_items
WHERE scan_id IN (` + placeholders(len(args)) + `)
ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.SensitiveItem
		var loc []byte
		if err := rows.Scan(&it.ID, &it.ScanID, &it.Type, &it.Confidence, &loc, &it.Count, &it.Redacted); err != nil {
			return fmt.Errorf("scanning item: %w", err)
		}
		if len(loc) > 0 {
			it.Location = loc
		}
		if s, ok := byID[it.ScanID]; ok {
			s.Items = append(s.Items, it)
		}
	}
	return rows.Err()
}
