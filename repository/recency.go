package repository

import "sort"

// SortByRecency orders items by publication date, newest first. Items without
// a known date go last. Equal dates keep their incoming order.
func SortByRecency[T any](items []T, date func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return newer(date(items[i]), date(items[j]))
	})
}

func newer(a, b string) bool {
	aKnown := a != "" && a != UnknownDate
	bKnown := b != "" && b != UnknownDate
	switch {
	case aKnown && bKnown:
		// YYYY-MM-DD compares lexically
		return a > b
	case aKnown:
		return true
	default:
		return false
	}
}
