// Package pagination slices lists into fixed size pages.
package pagination

// Meta describes one page of a list of Total items.
type Meta struct {
	Page       int
	Size       int
	Total      int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Offset is the index of the first item of the page.
func (m Meta) Offset() int { return m.Page * m.Size }

// FromTotal computes page metadata for total items without the items
// themselves. Negative pages are treated as 0 and sizes below 1 as 1.
func FromTotal(total, page, size int) Meta {
	if size < 1 {
		size = 1
	}
	if page < 0 {
		page = 0
	}
	if total < 0 {
		total = 0
	}
	return Meta{
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
		HasPrev:    page > 0,
		HasNext:    (page+1)*size < total,
	}
}

// Paginate returns items[page*size : page*size+size] clamped to the slice.
// Pages past the end yield an empty slice.
func Paginate[T any](items []T, page, size int) ([]T, Meta) {
	meta := FromTotal(len(items), page, size)
	start := meta.Offset()
	if start >= len(items) {
		return []T{}, meta
	}
	end := min(start+meta.Size, len(items))
	return items[start:end], meta
}
