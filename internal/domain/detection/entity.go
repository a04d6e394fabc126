package detection

import (
	"encoding/json"
	"time"
)

// ModelType enum
type ModelType string

const (
	ModelRegex ModelType = "regex"
	ModelLLM   ModelType = "llm"
	ModelML    ModelType = "ml"
)

var modelTypeDisplay = map[ModelType]string{
	ModelRegex: "Pattern Matching",
	ModelLLM:   "Large Language Model",
	ModelML:    "External ML Service",
}

// Valid reports whether t is a known model type.
func (t ModelType) Valid() bool {
	_, ok := modelTypeDisplay[t]
	return ok
}

// Display returns the human label for t.
func (t ModelType) Display() string {
	if d, ok := modelTypeDisplay[t]; ok {
		return d
	}
	return string(t)
}

// Model is a detection engine known to the service. Engines register
// themselves at startup; only active models are listed.
type Model struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ModelType ModelType `json:"model_type"`
	Version   string    `json:"version"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON adds model_type_display next to model_type.
func (m Model) MarshalJSON() ([]byte, error) {
	type alias Model
	return json.Marshal(struct {
		alias
		ModelTypeDisplay string `json:"model_type_display"`
	}{alias: alias(m), ModelTypeDisplay: m.ModelType.Display()})
}

// JobStatus enum
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

var jobStatusDisplay = map[JobStatus]string{
	JobRunning:   "Running",
	JobCompleted: "Completed",
	JobFailed:    "Failed",
}

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	_, ok := jobStatusDisplay[s]
	return ok
}

// Job records one engine run over a document, from start to its outcome.
// A failed job keeps the error the caller saw.
type Job struct {
	ID           int64      `json:"id"`
	DocumentID   int64      `json:"document_id"`
	ModelID      *int64     `json:"model_id"`
	ScanID       *int64     `json:"scan_id"`
	Status       JobStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage string     `json:"error_message"`
}

// MarshalJSON adds status_display next to status.
func (j Job) MarshalJSON() ([]byte, error) {
	type alias Job
	return json.Marshal(struct {
		alias
		StatusDisplay string `json:"status_display"`
	}{alias: alias(j), StatusDisplay: jobStatusDisplay[j.Status]})
}

// ModelFilter narrows a model listing.
type ModelFilter struct {
	ModelType ModelType
	Ordering  string
}

// DefaultModelOrdering lists models by name.
const DefaultModelOrdering = "name"

// ModelOrderingFields are the sortable model columns.
var ModelOrderingFields = []string{"name", "created_at"}

// JobFilter narrows a job listing. Zero values mean "any".
type JobFilter struct {
	Status     JobStatus
	DocumentID int64
	Ordering   string
	Page       int
	PageSize   int
}

// DefaultJobOrdering lists the most recently started jobs first.
const DefaultJobOrdering = "-started_at"

// JobOrderingFields are the sortable job columns.
var JobOrderingFields = []string{"started_at", "completed_at"}

// JobPage represents a page of jobs with paging metadata
type JobPage struct {
	Data       []*Job `json:"data"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	Total      int64  `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
}
