package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/docguard/internal/domain/users"
)

const counterColumns = `total_documents_saved, total_documents_processed, total_documents_shared,
       total_sensitive_items_detected, total_non_detected_items`

type UserRepository struct{ db *sql.DB }

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

// Upsert inserts or updates the profile columns of a user.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (id, username, email, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET
 username = EXCLUDED.username,
 email = EXCLUDED.email;`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Username, u.Email, u.CreatedAt)
	return err
}

// Get by ID
func (r *UserRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	q := `
SELECT id, username, email, ` + counterColumns + `, created_at
FROM users WHERE id=$1 LIMIT 1;`
	var u domain.User
	c := &u.Counters
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.Email,
		&c.DocumentsSaved, &c.DocumentsProcessed, &c.DocumentsShared,
		&c.SensitiveItemsDetected, &c.NonDetectedItems,
		&u.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// AddCounters applies col = col + $n for each delta and returns the new
// values via RETURNING, so one statement is both write and read.
func (r *UserRepository) AddCounters(ctx context.Context, userID int64, deltas map[domain.Counter]int64) (domain.Counters, error) {
	if len(deltas) == 0 {
		return domain.Counters{}, fmt.Errorf("no counters to update")
	}
	var p params
	sets := make([]string, 0, len(deltas))
	for _, name := range domain.AllCounters {
		d, ok := deltas[name]
		if !ok {
			continue
		}
		col := name.Column()
		sets = append(sets, fmt.Sprintf("%s = %s + %s", col, col, p.add(d)))
	}
	if len(sets) != len(deltas) {
		return domain.Counters{}, fmt.Errorf("unknown counter in %v", deltas)
	}
	q := "UPDATE users SET " + strings.Join(sets, ", ") +
		" WHERE id = " + p.add(userID) + " RETURNING " + counterColumns

	var c domain.Counters
	if err := r.db.QueryRowContext(ctx, q, p.vals...).Scan(
		&c.DocumentsSaved, &c.DocumentsProcessed, &c.DocumentsShared,
		&c.SensitiveItemsDetected, &c.NonDetectedItems,
	); err != nil {
		return domain.Counters{}, mapErr(err)
	}
	return c, nil
}

// ResetCounters sets all five counters to zero.
func (r *UserRepository) ResetCounters(ctx context.Context, userID int64) error {
	const q = `
UPDATE users
SET total_documents_saved = 0,
    total_documents_processed = 0,
    total_documents_shared = 0,
    total_sensitive_items_detected = 0,
    total_non_detected_items = 0
WHERE id = $1
RETURNING id;`
	var id int64
	return mapErr(r.db.QueryRowContext(ctx, q, userID).Scan(&id))
}
