package tgui

import "fmt"

// PaginateSlice returns a sub-slice for the requested page and helper
// flags. page is 0-based.
func PaginateSlice[T any](items []T, page, size int) (sub []T, hasPrev, hasNext bool) {
	if size <= 0 {
		size = 10
	}
	if page < 0 {
		page = 0
	}
	total := len(items)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], page > 0, end < total
}

// PageLabel returns a compact pagination label. page is 0-based.
func PageLabel(page, size, total int) string {
	if size <= 0 {
		size = 10
	}
	if total <= 0 {
		return "Page 1/1"
	}
	pages := (total + size - 1) / size
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	from := page*size + 1
	to := (page + 1) * size
	if to > total {
		to = total
	}
	return fmt.Sprintf("Page %d/%d • %d–%d of %d", page+1, pages, from, to, total)
}
