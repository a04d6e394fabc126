package scans

import (
	"encoding/json"
	"math"
	"time"
)

// Column limits of the sensitive_items table.
const (
	MaxItemTypeLen = 64
	MaxItemCount   = math.MaxInt32
)

// RiskLevel enum
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the three levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ClassifyRisk maps a sensitive-item count to a risk level:
// 0 is low, 1-2 medium, 3 or more high.
func ClassifyRisk(count int) RiskLevel {
	switch {
	case count <= 0:
		return RiskLow
	case count <= 2:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ItemType enum for detected content. Unknown values are stored verbatim.
type ItemType string

const (
	TypeEmail       ItemType = "email"
	TypePhone       ItemType = "phone"
	TypeSSN         ItemType = "ssn"
	TypeCreditCard  ItemType = "credit_card"
	TypeAddress     ItemType = "address"
	TypeName        ItemType = "name"
	TypeDateOfBirth ItemType = "date_of_birth"
	TypeAPIKey      ItemType = "api_key"
	TypePassword    ItemType = "password"
	TypeOther       ItemType = "other"
)

var typeDisplay = map[ItemType]string{
	TypeEmail:       "Email Address",
	TypePhone:       "Phone Number",
	TypeSSN:         "Social Security Number",
	TypeCreditCard:  "Credit Card Number",
	TypeAddress:     "Physical Address",
	TypeName:        "Personal Name",
	TypeDateOfBirth: "Date of Birth",
	TypeAPIKey:      "API Key",
	TypePassword:    "Password",
	TypeOther:       "Other",
}

// Display returns the human label for t.
func (t ItemType) Display() string {
	if d, ok := typeDisplay[t]; ok {
		return d
	}
	return string(t)
}

// SensitiveItem is one detected instance of sensitive content within a scan.
type SensitiveItem struct {
	ID         int64           `json:"id"`
	ScanID     int64           `json:"scan_id"`
	Type       ItemType        `json:"type"`
	Confidence float64         `json:"confidence"`
	Location   json.RawMessage `json:"location"`
	Count      int             `json:"count"`
	Redacted   bool            `json:"redacted"`
}

// MarshalJSON adds type_display next to type.
func (i SensitiveItem) MarshalJSON() ([]byte, error) {
	type alias SensitiveItem
	loc := i.Location
	if len(loc) == 0 {
		loc = json.RawMessage("null")
	}
	return json.Marshal(struct {
		alias
		Location    json.RawMessage `json:"location"`
		TypeDisplay string          `json:"type_display"`
	}{alias: alias(i), Location: loc, TypeDisplay: i.Type.Display()})
}

// Aggregate Root: Scan. Created once per completed analysis and never
// modified afterwards.
type Scan struct {
	ID             int64           `json:"id"`
	DocumentID     int64           `json:"document_id"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	ProcessingTime float64         `json:"processing_time"`
	ScanDate       time.Time       `json:"scan_date"`
	ArtifactURL    string          `json:"artifact_url,omitempty"`
	Items          []SensitiveItem `json:"sensitive_items"`
}
