package storage

import (
	"sort"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
)

// paginate applies the creation-time filter, sorts lexicographically by
// path and cuts the requested page out of the full entry set. Drivers
// without server-side paging share it.
func paginate(entries []adapter.Entry, filter adapter.ListFilter, page int) ([]adapter.Entry, bool) {
	if page < 1 {
		page = 1
	}

	filtered := entries[:0]
	for _, entry := range entries {
		if filter.Matches(entry.CreatedAt) {
			filtered = append(filtered, entry)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Path < filtered[j].Path
	})

	start := (page - 1) * adapter.PageSize
	if start >= len(filtered) {
		return nil, false
	}

	end := start + adapter.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], end < len(filtered)
}
