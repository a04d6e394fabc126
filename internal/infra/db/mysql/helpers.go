package mysql

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/bryanwahyu/docguard/internal/domain/errs"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// notFound maps sql.ErrNoRows onto the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}

// escapeLikePattern escapes LIKE wildcards using '!' as the escape
// character; queries must say ESCAPE '!'.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "!", "!!")
	s = strings.ReplaceAll(s, "%", "!%")
	s = strings.ReplaceAll(s, "_", "!_")
	return s
}

// orderClause turns "-field" / "field" into an ORDER BY list using only
// whitelisted columns, with idCol as tiebreak. Unknown fields fall back to def.
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

// pageBounds applies paging defaults and returns page, size and offset.
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

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// nullJSON stores an absent location as SQL NULL.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
