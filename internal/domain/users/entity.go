package users

import "time"

// Counter names one of the five usage counters kept on a user row.
type Counter string

const (
	CounterDocumentsSaved         Counter = "documents_saved"
	CounterDocumentsProcessed     Counter = "documents_processed"
	CounterDocumentsShared        Counter = "documents_shared"
	CounterSensitiveItemsDetected Counter = "sensitive_items_detected"
	CounterNonDetectedItems       Counter = "non_detected_items"
)

// AllCounters lists every counter in storage order.
var AllCounters = []Counter{
	CounterDocumentsSaved,
	CounterDocumentsProcessed,
	CounterDocumentsShared,
	CounterSensitiveItemsDetected,
	CounterNonDetectedItems,
}

// Column returns the users table column backing c, or "" for an unknown counter.
func (c Counter) Column() string {
	switch c {
	case CounterDocumentsSaved:
		return "total_documents_saved"
	case CounterDocumentsProcessed:
		return "total_documents_processed"
	case CounterDocumentsShared:
		return "total_documents_shared"
	case CounterSensitiveItemsDetected:
		return "total_sensitive_items_detected"
	case CounterNonDetectedItems:
		return "total_non_detected_items"
	}
	return ""
}

// Valid reports whether c is one of the known counters.
func (c Counter) Valid() bool { return c.Column() != "" }

// Counters is a value snapshot of the five usage counters.
type Counters struct {
	DocumentsSaved         int64 `json:"total_documents_saved"`
	DocumentsProcessed     int64 `json:"total_documents_processed"`
	DocumentsShared        int64 `json:"total_documents_shared"`
	SensitiveItemsDetected int64 `json:"total_sensitive_items_detected"`
	NonDetectedItems       int64 `json:"total_non_detected_items"`
}

// Get returns the value of counter c.
func (c Counters) Get(name Counter) int64 {
	switch name {
	case CounterDocumentsSaved:
		return c.DocumentsSaved
	case CounterDocumentsProcessed:
		return c.DocumentsProcessed
	case CounterDocumentsShared:
		return c.DocumentsShared
	case CounterSensitiveItemsDetected:
		return c.SensitiveItemsDetected
	case CounterNonDetectedItems:
		return c.NonDetectedItems
	}
	return 0
}

// DetectionAccuracy is sensitive / (sensitive + non_detected), 0 with no data.
func (c Counters) DetectionAccuracy() float64 {
	total := c.SensitiveItemsDetected + c.NonDetectedItems
	if total == 0 {
		return 0
	}
	return float64(c.SensitiveItemsDetected) / float64(total)
}

// User is the account that owns documents and carries the usage counters.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Counters  Counters  `json:"counters"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the read model returned by the stats snapshot.
type Stats struct {
	Counters
	DetectionAccuracy float64 `json:"detection_accuracy"`
}

// NewStats derives the accuracy ratio from c.
func NewStats(c Counters) Stats {
	return Stats{Counters: c, DetectionAccuracy: c.DetectionAccuracy()}
}
