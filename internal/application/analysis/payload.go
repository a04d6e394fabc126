package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
)

// SourceMLModel is the only accepted value of an ML payload's source field.
const SourceMLModel = "ml_model"

// Payload is the closed set of analysis inputs: *DirectResult or *MLPayload.
type Payload interface {
	docID() int64
	validate() *errs.ValidationError
}

// ItemInput is a sensitive item as submitted. Pointer fields distinguish
// "absent" from zero so each protocol can apply its own defaults.
type ItemInput struct {
	Type       *string         `json:"type"`
	Confidence *float64        `json:"confidence"`
	Location   json.RawMessage `json:"location,omitempty"`
	Count      *int            `json:"count"`
}

// DirectResult is a detection engine's verdict: the risk level is taken as given.
type DirectResult struct {
	DocumentID     int64           `json:"document_id"`
	RiskLevel      scans.RiskLevel `json:"risk_level"`
	ProcessingTime float64         `json:"processing_time"`
	Items          []ItemInput     `json:"sensitive_items"`
}

// MLPayload is a report pushed by the external ML service. The risk level is
// derived from SensitiveItemsCount.
type MLPayload struct {
	DocumentID          int64       `json:"document_id"`
	DetectionTypes      []string    `json:"detection_types"`
	SensitiveItemsCount int         `json:"sensitive_items_count"`
	ProcessingTime      float64     `json:"processing_time"`
	Source              string      `json:"source"`
	Items               []ItemInput `json:"sensitive_items,omitempty"`
	// ItemsProvided is false when the payload had no sensitive_items key.
	ItemsProvided bool `json:"-"`
}

func (d *DirectResult) docID() int64 { return d.DocumentID }
func (m *MLPayload) docID() int64    { return m.DocumentID }

func (d *DirectResult) validate() *errs.ValidationError {
	v := &errs.ValidationError{}
	if d.DocumentID <= 0 {
		v.Add("document_id", "A valid integer is required.")
	}
	if !d.RiskLevel.Valid() {
		v.Add("risk_level", fmt.Sprintf("%q is not a valid choice.", d.RiskLevel))
	}
	if d.ProcessingTime < 0 {
		v.Add("processing_time", "Ensure this value is greater than or equal to 0.")
	}
	for i, it := range d.Items {
		iv := &errs.ValidationError{}
		if it.Type == nil || strings.TrimSpace(*it.Type) == "" {
			iv.Add("type", "This field is required.")
		}
		if it.Confidence == nil {
			iv.Add("confidence", "This field is required.")
		}
		validateItemRanges(it, iv)
		v.Merge(fmt.Sprintf("sensitive_items[%d].", i), iv)
	}
	return v
}

func (m *MLPayload) validate() *errs.ValidationError {
	v := &errs.ValidationError{}
	if m.DocumentID <= 0 {
		v.Add("document_id", "A valid integer is required.")
	}
	if m.Source != SourceMLModel {
		v.Add("source", "Source must be 'ml_model' for ML payloads")
	}
	if m.SensitiveItemsCount < 0 {
		v.Add("sensitive_items_count", "Ensure this value is greater than or equal to 0.")
	}
	if m.ProcessingTime < 0 {
		v.Add("processing_time", "Ensure this value is greater than or equal to 0.")
	}
	for i, it := range m.Items {
		iv := &errs.ValidationError{}
		validateItemRanges(it, iv)
		v.Merge(fmt.Sprintf("sensitive_items[%d].", i), iv)
	}
	return v
}

// validateItemRanges checks the bounds both protocols share, including the
// widths of the sensitive_items columns.
func validateItemRanges(it ItemInput, v *errs.ValidationError) {
	if it.Type != nil && utf8.RuneCountInString(strings.TrimSpace(*it.Type)) > scans.MaxItemTypeLen {
		v.Add("type", fmt.Sprintf("Ensure this field has no more than %d characters.", scans.MaxItemTypeLen))
	}
	if it.Confidence != nil && (*it.Confidence < 0 || *it.Confidence > 1) {
		v.Add("confidence", "Ensure this value is between 0 and 1.")
	}
	if it.Count != nil && *it.Count < 1 {
		v.Add("count", "Ensure this value is greater than or equal to 1.")
	}
	if it.Count != nil && *it.Count > scans.MaxItemCount {
		v.Add("count", fmt.Sprintf("Ensure this value is less than or equal to %d.", scans.MaxItemCount))
	}
	if len(it.Location) > 0 && !json.Valid(it.Location) {
		v.Add("location", "Value must be valid JSON.")
	}
}

// directItems converts validated Protocol A items; count defaults to 1.
func directItems(in []ItemInput) []scans.SensitiveItem {
	out := make([]scans.SensitiveItem, 0, len(in))
	for _, it := range in {
		count := 1
		if it.Count != nil {
			count = *it.Count
		}
		out = append(out, scans.SensitiveItem{
			Type:       scans.ItemType(strings.TrimSpace(*it.Type)),
			Confidence: *it.Confidence,
			Location:   normalizeLocation(it.Location),
			Count:      count,
		})
	}
	return out
}

// mlItems converts ML items with their lenient defaults. Redacted is always false.
func mlItems(in []ItemInput) []scans.SensitiveItem {
	out := make([]scans.SensitiveItem, 0, len(in))
	for _, it := range in {
		item := scans.SensitiveItem{Type: scans.TypeOther, Count: 1, Location: normalizeLocation(it.Location)}
		if it.Type != nil && strings.TrimSpace(*it.Type) != "" {
			item.Type = scans.ItemType(strings.TrimSpace(*it.Type))
		}
		if it.Confidence != nil {
			item.Confidence = *it.Confidence
		}
		if it.Count != nil {
			item.Count = *it.Count
		}
		out = append(out, item)
	}
	return out
}

func normalizeLocation(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// FromDetection wraps an engine result as a DirectResult for documentID.
func FromDetection(documentID int64, r detection.Result) *DirectResult {
	d := &DirectResult{
		DocumentID:     documentID,
		RiskLevel:      r.RiskLevel,
		ProcessingTime: r.ProcessingTime,
		Items:          make([]ItemInput, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		typ, conf := it.Type, it.Confidence
		in := ItemInput{Type: &typ, Confidence: &conf, Location: it.Location}
		if it.Count != 0 {
			c := it.Count
			in.Count = &c
		}
		d.Items = append(d.Items, in)
	}
	return d
}

// Request is the wire shape of POST /analyze. A body with a source field is
// an ML payload; without one it asks the detection engine to analyze
// DocumentID.
type Request struct {
	DocumentID          *int64       `json:"document_id"`
	Source              *string      `json:"source"`
	DetectionTypes      *[]string    `json:"detection_types"`
	SensitiveItemsCount *int         `json:"sensitive_items_count"`
	ProcessingTime      *float64     `json:"processing_time"`
	SensitiveItems      *[]ItemInput `json:"sensitive_items"`
}

// IsML reports whether the body is an ML-service payload.
func (r Request) IsML() bool { return r.Source != nil }

// TargetDocument returns the document id of an engine analysis request.
func (r Request) TargetDocument() (int64, error) {
	if r.DocumentID == nil {
		return 0, errs.NewValidationError("document_id", "This field is required.")
	}
	return *r.DocumentID, nil
}

// MLPayload checks required fields and returns the typed payload.
// Range and sentinel checks happen in Ingest.
func (r Request) MLPayload() (*MLPayload, error) {
	v := &errs.ValidationError{}
	required := func(ok bool, field string) {
		if !ok {
			v.Add(field, "This field is required.")
		}
	}
	required(r.DocumentID != nil, "document_id")
	required(r.DetectionTypes != nil, "detection_types")
	required(r.SensitiveItemsCount != nil, "sensitive_items_count")
	required(r.ProcessingTime != nil, "processing_time")
	required(r.Source != nil, "source")
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	p := &MLPayload{
		DocumentID:          *r.DocumentID,
		DetectionTypes:      *r.DetectionTypes,
		SensitiveItemsCount: *r.SensitiveItemsCount,
		ProcessingTime:      *r.ProcessingTime,
		Source:              *r.Source,
	}
	if r.SensitiveItems != nil {
		p.Items = *r.SensitiveItems
		p.ItemsProvided = true
	}
	return p, nil
}
