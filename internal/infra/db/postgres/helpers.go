package postgres

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/bryanwahyu/docguard/internal/domain/errs"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// foreign_key_violation
const pqForeignKeyViolation = "23503"

// mapErr turns missing rows and dangling references into errs.ErrNotFound.
func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return errs.ErrNotFound
	}
	return err
}

// params collects positional arguments and hands out $n placeholders.
type params struct {
	vals []any
}

func (p *params) add(v any) string {
	p.vals = append(p.vals, v)
	return "$" + strconv.Itoa(len(p.vals))
}

// escapeLikePattern escapes special characters in LIKE patterns
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

func orderClause(ordering string, columns map[string]string, idCol, def string) string {
	dir := "ASC"
	field := ordering
	if strings.HasPrefix(field, "-") {
		dir = "DESC"
		field = field[1:]
	}
	col, ok := columns[field]
	if !ok {
		return def
	}
	return col + " " + dir + ", " + idCol + " " + dir
}

func pageBounds(page, size int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, (page - 1) * size
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
