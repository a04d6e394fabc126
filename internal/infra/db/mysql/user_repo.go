package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/docguard/internal/domain/users"
)

const counterColumns = `total_documents_saved, total_documents_processed, total_documents_shared,
       total_sensitive_items_detected, total_non_detected_items`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts or updates the profile columns of a user. Counters are
// never touched here.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (id, username, email, created_at)
VALUES (?,?,?,?)
ON DUPLICATE KEY UPDATE
 username=VALUES(username), email=VALUES(email);
`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Username, u.Email, u.CreatedAt)
	return err
}

// Get by ID
func (r *UserRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	q := `
SELECT id, username, email, ` + counterColumns + `, created_at
FROM users WHERE id=? LIMIT 1;`
	var u domain.User
	c := &u.Counters
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.Email,
		&c.DocumentsSaved, &c.DocumentsProcessed, &c.DocumentsShared,
		&c.SensitiveItemsDetected, &c.NonDetectedItems,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// AddCounters increments counters in place (col = col + ?) and reads the
// committed values back inside the same transaction.
func (r *UserRepository) AddCounters(ctx context.Context, userID int64, deltas map[domain.Counter]int64) (domain.Counters, error) {
	if len(deltas) == 0 {
		return domain.Counters{}, fmt.Errorf("no counters to update")
	}
	sets := make([]string, 0, len(deltas))
	args := make([]any, 0, len(deltas)+1)
	// AllCounters fixes the column order so concurrent statements lock alike.
	for _, name := range domain.AllCounters {
		d, ok := deltas[name]
		if !ok {
			continue
		}
		col := name.Column()
		sets = append(sets, fmt.Sprintf("%s = %s + ?", col, col))
		args = append(args, d)
	}
	if len(sets) != len(deltas) {
		return domain.Counters{}, fmt.Errorf("unknown counter in %v", deltas)
	}
	args = append(args, userID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Counters{}, err
	}
	defer tx.Rollback()

	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return domain.Counters{}, err
	}
	c, err := readCounters(ctx, tx, userID)
	if err != nil {
		return domain.Counters{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Counters{}, err
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
WHERE id = ?;`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, q, userID); err != nil {
		return err
	}
	// RowsAffected is 0 for unchanged rows in MySQL, so check existence explicitly.
	if _, err := readCounters(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func readCounters(ctx context.Context, tx *sql.Tx, userID int64) (domain.Counters, error) {
	var c domain.Counters
	err := tx.QueryRowContext(ctx, "SELECT "+counterColumns+" FROM users WHERE id = ?", userID).Scan(
		&c.DocumentsSaved, &c.DocumentsProcessed, &c.DocumentsShared,
		&c.SensitiveItemsDetected, &c.NonDetectedItems,
	)
	if err != nil {
		return c, notFound(err)
	}
	return c, nil
}
