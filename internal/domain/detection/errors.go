package detection

import "errors"

// ErrEngineUnavailable indicates no detection engine is configured.
var ErrEngineUnavailable = errors.New("detection engine unavailable")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("detection quota exceeded")

// EngineError carries the error indicator an engine returned for a document.
type EngineError struct {
	Message string
}

func (e *EngineError) Error() string { return e.Message }
