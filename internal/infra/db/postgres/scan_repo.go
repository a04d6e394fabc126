package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/lib/pq"

	domain "github.com/bryanwahyu/docguard/internal/domain/scans"
)

const scanColumns = `s.id, s.document_id, s.risk_level, s.processing_time, s.scan_date, s.artifact_url`

var scanOrdering = map[string]string{
	"scan_date": "s.scan_date",
}

type ScanRepository struct{ db *sql.DB }

func NewScanRepository(db *sql.DB) *ScanRepository { return &ScanRepository{db: db} }

// CreateWithItems inserts the scan, its items and flips documents.processed
// in one transaction. A missing document surfaces as errs.ErrNotFound.
func (r *ScanRepository) CreateWithItems(ctx context.Context, s *domain.Scan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var scanID int64
	if err := tx.QueryRowContext(ctx, `
INSERT INTO document_scans (document_id, risk_level, processing_time, scan_date, artifact_url)
VALUES ($1,$2,$3,$4,$5)
RETURNING id;`,
		s.DocumentID, s.RiskLevel, s.ProcessingTime, s.ScanDate, s.ArtifactURL,
	).Scan(&scanID); err != nil {
		return fmt.Errorf("insert scan: %w", mapErr(err))
	}

	for i := range s.Items {
		it := &s.Items[i]
		if err := tx.QueryRowContext(ctx, `
INSERT INTO sensitive_items (scan_id, type, confidence, location, count, redacted)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id;`,
			scanID, it.Type, it.Confidence, nullJSON(it.Location), it.Count, it.Redacted,
		).Scan(&it.ID); err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
		it.ScanID = scanID
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET processed = TRUE, updated_at = $1 WHERE id = $2;`,
		s.ScanDate, s.DocumentID,
	); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.ID = scanID
	return nil
}

func (r *ScanRepository) GetOwned(ctx context.Context, userID, id int64) (*domain.Scan, error) {
	q := `
SELECT ` + scanColumns + `
FROM document_scans s
JOIN documents d ON d.id = s.document_id
WHERE d.user_id = $1 AND s.id = $2 LIMIT 1;`
	var s domain.Scan
	if err := r.db.QueryRowContext(ctx, q, userID, id).Scan(
		&s.ID, &s.DocumentID, &s.RiskLevel, &s.ProcessingTime, &s.ScanDate, &s.ArtifactURL,
	); err != nil {
		return nil, mapErr(err)
	}
	if err := r.attachItems(ctx, []*domain.Scan{&s}); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScanRepository) ListByDocument(ctx context.Context, documentID int64) ([]*domain.Scan, error) {
	q := `
SELECT ` + scanColumns + `
FROM document_scans s
WHERE s.document_id = $1
ORDER BY s.scan_date DESC, s.id DESC;`
	out, err := r.query(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	return out, r.attachItems(ctx, out)
}

// Paginate scans across all documents of userID.
func (r *ScanRepository) Paginate(ctx context.Context, userID int64, f domain.Filter) (domain.PaginatedResult, error) {
	page, pageSize, offset := pageBounds(f.Page, f.PageSize)

	var p params
	where := `
FROM document_scans s
JOIN documents d ON d.id = s.document_id
WHERE d.user_id = ` + p.add(userID)
	if f.RiskLevel != "" {
		where += " AND s.risk_level = " + p.add(f.RiskLevel)
	}
	filterArgs := append([]any(nil), p.vals...)

	q := "SELECT " + scanColumns + where +
		"\n ORDER BY " + orderClause(f.Ordering, scanOrdering, "s.id", "s.scan_date DESC, s.id DESC") +
		"\n LIMIT " + p.add(pageSize) + " OFFSET " + p.add(offset)
	out, err := r.query(ctx, q, p.vals...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying scans: %w", err)
	}
	if err := r.attachItems(ctx, out); err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, filterArgs...).Scan(&total); err != nil {
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

// attachItems loads items for all scans with scan_id = ANY($1).
func (r *ScanRepository) attachItems(ctx context.Context, list []*domain.Scan) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Scan, len(list))
	ids := make([]int64, 0, len(list))
	for _, s := range list {
		s.Items = []domain.SensitiveItem{}
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	const q = `
SELECT id, scan_id, type, confidence, location, count, redacted
FROM sensitive_items
WHERE scan_id = ANY($1)
ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, q, pq.Array(ids))
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
