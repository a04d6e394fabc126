package detection

import (
	"context"
	"encoding/json"

	"github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
)

// Item is one finding reported by an engine.
type Item struct {
	Type       string          `json:"type"`
	Confidence float64         `json:"confidence"`
	Location   json.RawMessage `json:"location,omitempty"`
	Count      int             `json:"count,omitempty"`
}

// Result is what an engine reports for one document.
type Result struct {
	RiskLevel      scans.RiskLevel `json:"risk_level"`
	ProcessingTime float64         `json:"processing_time"`
	Items          []Item          `json:"sensitive_items"`
}

// Engine runs sensitive-information detection over a document.
type Engine interface {
	Detect(ctx context.Context, doc *documents.Document) (Result, error)
}

// Source reads the stored bytes of a document by object key.
type Source interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ModelRepository port for the detection model registry.
type ModelRepository interface {
	// Register inserts m or updates the row with the same name, marks it
	// active and fills m.ID and timestamps.
	Register(ctx context.Context, m *Model) error
	// Get and List only see active models.
	Get(ctx context.Context, id int64) (*Model, error)
	List(ctx context.Context, f ModelFilter) ([]*Model, error)
}

// JobRepository port for detection job records. Owner-scoped reads go
// through the job's document.
type JobRepository interface {
	Create(ctx context.Context, j *Job) error
	// Finish writes status, scan_id, completed_at and error_message.
	Finish(ctx context.Context, j *Job) error
	GetOwned(ctx context.Context, userID, id int64) (*Job, error)
	Paginate(ctx context.Context, userID int64, f JobFilter) (JobPage, error)
}
