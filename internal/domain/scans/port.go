package scans

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	// CreateWithItems writes s, every item and the parent document's
	// processed flag as one transaction. On success s.ID, s.Items[i].ID and
	// s.Items[i].ScanID are filled in.
	CreateWithItems(ctx context.Context, s *Scan) error

	GetOwned(ctx context.Context, userID, id int64) (*Scan, error)
	ListByDocument(ctx context.Context, documentID int64) ([]*Scan, error)
	Paginate(ctx context.Context, userID int64, f Filter) (PaginatedResult, error)
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
