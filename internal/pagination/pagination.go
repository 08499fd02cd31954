// Package pagination implements the "take N+1, pop the last one" cursor
// pattern shared by every list operation.
//
// HOW IT WORKS:
// A store query is asked for limit+1 rows starting at the cursor row:
//
//	limit = 3, Fetch(3) = 4 rows:  [p9 p8 p7 p6]
//	page:                          [p9 p8 p7]   NextCursor = p6
//	next request, cursor = p6:     [p6 p5 p4 p3]
//
// If the extra row comes back it is dropped and its key becomes the cursor of
// the next page, so the next page starts exactly where this one stopped. If
// it does not come back there is nothing more to read and NextCursor stays
// nil. One query answers both "what is on this page" and "is there another
// page", with no COUNT(*).
package pagination

const (
	MinLimit = 1
	MaxLimit = 100
)

// Page is one slice of an ordered listing.
// NextCursor is nil when the listing is exhausted.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor *int64 `json:"nextCursor,omitempty"`
}

// Clamp normalises a requested page size: 0 or negative means def, and the
// result never leaves [MinLimit, MaxLimit].
func Clamp(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit < MinLimit {
		limit = MinLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

// Fetch is the number of rows to ask the store for.
func Fetch(limit int) int {
	return limit + 1
}

// Trim turns up to limit+1 rows into a page. key extracts the primary key
// used as the next cursor.
func Trim[T any](rows []T, limit int, key func(T) int64) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}

	next := key(rows[limit])
	return Page[T]{
		Items:      rows[:limit],
		NextCursor: &next,
	}
}
