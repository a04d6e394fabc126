package middleware

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bryanwahyu/docguard/internal/domain/errs"
)

// Input validation and sanitization utilities

// ParseID parses a positive int64 path parameter.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParsePage reads page and page_size from q. Bad values are reported on v;
// absent ones fall back to 1 and the default limit.
func ParsePage(q url.Values, v *errs.ValidationError) (page, pageSize int) {
	page = 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			v.Add("page", "A valid positive integer is required.")
		} else {
			page = n
		}
	}
	pageSize = ValidateLimit(0)
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			v.Add("page_size", "A valid positive integer is required.")
		} else {
			pageSize = ValidateLimit(n)
		}
	}
	return page, pageSize
}

// ParseBool reads an optional boolean query parameter.
func ParseBool(q url.Values, key string, v *errs.ValidationError) *bool {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		b := true
		return &b
	case "false", "0", "no":
		b := false
		return &b
	}
	v.Add(key, "Must be a valid boolean.")
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
