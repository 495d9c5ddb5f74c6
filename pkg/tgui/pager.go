package tgui

import "fmt"

// Page is one window of a paginated list. Index is 0-based.
type Page[T any] struct {
	Items   []T
	Index   int
	Pages   int
	HasPrev bool
	HasNext bool
}

// Paginate returns page index of items, clamped to the valid range.
func Paginate[T any](items []T, index, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	pages := max(1, (len(items)+size-1)/size)
	index = min(max(index, 0), pages-1)
	start := index * size
	end := min(start+size, len(items))
	return Page[T]{
		Items:   items[start:end],
		Index:   index,
		Pages:   pages,
		HasPrev: index > 0,
		HasNext: end < len(items),
	}
}

func (p Page[T]) Label() string {
	return fmt.Sprintf("%d/%d", p.Index+1, p.Pages)
}
