package annotation

import (
	"golang.org/x/text/cases"
)

// Filter selects objects in a query. A nil Filter matches every object.
type Filter func(Object) bool

// Match applies the filter, treating nil as match-all.
func (f Filter) Match(o Object) bool {
	return f == nil || f(o)
}

// OfKind matches objects whose type tag is one of kinds.
func OfKind(kinds ...Kind) Filter {
	var set [256]bool
	for _, k := range kinds {
		set[k] = true
	}
	return func(o Object) bool {
		return set[o.Kind()]
	}
}

// TitleEquals matches objects whose title equals title under Unicode case
// folding.
func TitleEquals(title string) Filter {
	fold := cases.Fold()
	want := fold.String(title)
	return func(o Object) bool {
		// Casers keep state; a fresh one per call keeps the filter safe
		// for concurrent queries.
		return cases.Fold().String(o.Title()) == want
	}
}

// All matches objects accepted by every filter.
func All(filters ...Filter) Filter {
	return func(o Object) bool {
		for _, f := range filters {
			if !f.Match(o) {
				return false
			}
		}
		return true
	}
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return func(o Object) bool {
		return !f.Match(o)
	}
}
