package grid

import "github.com/refbase-dev/refbase-admin/pkg/schema"

// PageInfo is the pagination metadata for the current visible slice.
type PageInfo struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Window computes the visible slice for a one-based page over an already
// filtered and sorted collection, plus the total page count. It does not
// clamp: an out-of-range page yields an empty slice, and callers are
// expected to detect page > totalPages and reset. The result is recomputed
// on every call since the record set changes with every filter or sort.
func Window(records []schema.Record, page, pageSize int) ([]schema.Record, int) {
	total := len(records)
	if pageSize <= 0 {
		return nil, 0
	}
	totalPages := (total + pageSize - 1) / pageSize
	if page < 1 {
		return nil, totalPages
	}
	lo := (page - 1) * pageSize
	if lo >= total {
		return nil, totalPages
	}
	hi := lo + pageSize
	if hi > total {
		hi = total
	}
	return records[lo:hi], totalPages
}

// ClampPage folds an out-of-range page back into [1, totalPages]. With an
// empty collection it settles on page 1.
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		return 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
