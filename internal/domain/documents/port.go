package documents

import (
	"context"
	"time"
)

// Repository port for document persistence. Owner-scoped reads return
// errs.ErrNotFound for documents belonging to someone else.
type Repository interface {
	Create(ctx context.Context, d *Document) error
	// Get loads a document regardless of owner.
	Get(ctx context.Context, id int64) (*Document, error)
	GetOwned(ctx context.Context, userID, id int64) (*Document, error)
	// Update writes title, file_type and updated_at. The processed flag
	// only changes through SetProcessed.
	Update(ctx context.Context, d *Document) error
	// SetProcessed writes the flag only when it differs from the stored
	// value and reports whether this call changed it.
	SetProcessed(ctx context.Context, userID, id int64, processed bool, at time.Time) (bool, error)
	Paginate(ctx context.Context, userID int64, f Filter) (PaginatedResult, error)
}
