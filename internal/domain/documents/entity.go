package documents

import (
	"strings"
	"time"
)

// Column limits of the documents table.
const (
	MaxTitleLen    = 255
	MaxFileTypeLen = 64
	MaxFileKeyLen  = 1024
)

// Document is an uploaded file's metadata. The bytes live in object storage
// under FileKey and are written by the upload path, not by this service.
type Document struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	FileType  string    `json:"file_type"`
	FileKey   string    `json:"file_key,omitempty"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch holds the mutable fields of an update; nil means unchanged.
type Patch struct {
	Title     *string `json:"title"`
	FileType  *string `json:"file_type"`
	Processed *bool   `json:"processed"`
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.FileType == nil && p.Processed == nil
}

// Normalize trims the title and lowercases the file type, the same way
// Create stores them.
func (p Patch) Normalize() Patch {
	if p.Title != nil {
		t := NormalizeTitle(*p.Title)
		p.Title = &t
	}
	if p.FileType != nil {
		ft := NormalizeFileType(*p.FileType)
		p.FileType = &ft
	}
	return p
}

func NormalizeTitle(s string) string { return strings.TrimSpace(s) }

func NormalizeFileType(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Apply writes the set fields of p onto d.
func (p Patch) Apply(d *Document) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.FileType != nil {
		d.FileType = *p.FileType
	}
	if p.Processed != nil {
		d.Processed = *p.Processed
	}
}

// Filter narrows a document listing. Zero values mean "any".
type Filter struct {
	FileType  string
	Processed *bool
	Search    string
	Ordering  string
	Page      int
	PageSize  int
}

// PaginatedResult represents a page of documents with paging metadata
type PaginatedResult struct {
	Data       []*Document `json:"data"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	Total      int64       `json:"totalItems"`
	TotalPages int         `json:"totalPages"`
}

// DefaultOrdering lists newest documents first.
const DefaultOrdering = "-created_at"

// OrderingFields are the sortable columns; prefix with "-" for descending.
var OrderingFields = []string{"created_at", "updated_at", "title"}
