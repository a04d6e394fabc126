package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/bryanwahyu/docguard/internal/domain/errs"
)

func TestMapErr(t *testing.T) {
	other := errors.New("connection refused")
	tests := []struct {
		in   error
		want error
	}{
		{sql.ErrNoRows, errs.ErrNotFound},
		{fmt.Errorf("insert scan: %w", &pq.Error{Code: "23503"}), errs.ErrNotFound},
		{other, other},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := mapErr(tt.in); !errors.Is(got, tt.want) && got != tt.want {
			t.Errorf("mapErr(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	unique := &pq.Error{Code: "23505"}
	if got := mapErr(unique); got != error(unique) {
		t.Errorf("Expected unique violation to pass through, got %v", got)
	}
}

func TestParams(t *testing.T) {
	var p params
	if got := p.add(1) + "," + p.add("x") + "," + p.add(true); got != "$1,$2,$3" {
		t.Errorf("Unexpected placeholders: %s", got)
	}
	if len(p.vals) != 3 || p.vals[1] != "x" {
		t.Errorf("Unexpected values: %v", p.vals)
	}
}

func TestEscapeLikePattern(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"100%":    `100\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := escapeLikePattern(in); got != want {
			t.Errorf("escapeLikePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOrderClause(t *testing.T) {
	cols := map[string]string{"title": "title", "created_at": "created_at"}
	const def = "created_at DESC, id DESC"

	tests := []struct {
		ordering string
		want     string
	}{
		{"title", "title ASC, id ASC"},
		{"-created_at", "created_at DESC, id DESC"},
		{"user_id; DROP TABLE users", def},
		{"", def},
	}
	for _, tt := range tests {
		if got := orderClause(tt.ordering, cols, "id", def); got != tt.want {
			t.Errorf("orderClause(%q) = %q, want %q", tt.ordering, got, tt.want)
		}
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		page, size int
		want       [3]int
	}{
		{0, 0, [3]int{1, defaultPageSize, 0}},
		{3, 10, [3]int{3, 10, 20}},
		{2, 500, [3]int{2, maxPageSize, maxPageSize}},
	}
	for _, tt := range tests {
		p, s, o := pageBounds(tt.page, tt.size)
		if [3]int{p, s, o} != tt.want {
			t.Errorf("pageBounds(%d, %d) = %d, %d, %d", tt.page, tt.size, p, s, o)
		}
	}
}
