// Package pagination implements the keyset cursor shared by feeds, replies and notifications.
//
// A page is fetched with limit+1 rows ordered by (created_at DESC, id DESC). The extra row only
// signals that more items exist; the cursor handed back is the id of the last item kept, and the
// next page resumes strictly after that item in the same order.
package pagination

import (
	"strings"

	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// NormalizeLimit clamps a requested page size into [1, max], using def when unset.
func NormalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// ParseCursor decodes an opaque cursor. An empty string means the first page.
func ParseCursor(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Invalid("malformed cursor")
	}
	return &id, nil
}

// Trim cuts a limit+1 result down to limit and derives the next cursor.
func Trim[T any](rows []T, limit int, idOf func(T) uuid.UUID) (page []T, nextCursor *string, hasMore bool) {
	if len(rows) > limit {
		rows = rows[:limit]
		hasMore = true
	}
	if hasMore && len(rows) > 0 {
		next := idOf(rows[len(rows)-1]).String()
		nextCursor = &next
	}
	return rows, nextCursor, hasMore
}
