package scans

// Filter narrows a scan listing. Zero values mean "any".
type Filter struct {
	RiskLevel RiskLevel
	Ordering  string
	Page      int
	PageSize  int
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Scan `json:"data"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	Total      int64   `json:"totalItems"`
	TotalPages int     `json:"totalPages"`
}

// DefaultOrdering lists newest scans first.
const DefaultOrdering = "-scan_date"

// OrderingFields are the sortable columns; prefix with "-" for descending.
var OrderingFields = []string{"scan_date"}
