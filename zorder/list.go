// Package zorder maintains paint order for a set of objects.
//
// A List is an ordered slice where an object's index is its stack position,
// bottom = 0. Lookups go through a table that is rebuilt lazily after
// insertions and removals and patched in place by moves. Every operation
// that shifts positions reports the changed range to the registered
// RangeFunc so that cached ranks can be refreshed for exactly that range.
package zorder

import (
	"slices"
	"sync"

	"github.com/gogpu/strata/annotation"
)

// RangeFunc is called after positions from..to inclusive changed. o is the
// object whose operation caused the change.
type RangeFunc func(o annotation.Object, from, to int)

// List is an ordered paint stack.
type List struct {
	mu    sync.RWMutex
	items []annotation.Object

	// lookupMu guards lookup, which is nil when it must be rebuilt.
	lookupMu sync.Mutex
	lookup   map[annotation.ID]int

	onChange RangeFunc
}

// New returns an empty list. onChange may be nil.
func New(onChange RangeFunc) *List {
	return &List{onChange: onChange}
}

// Len returns the number of objects.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// At returns the object at position i.
func (l *List) At(i int) annotation.Object {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[i]
}

// Items returns a copy of the list, bottom first.
func (l *List) Items() []annotation.Object {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Slice returns a copy of positions from..to inclusive, clamped to the list.
func (l *List) Slice(from, to int) []annotation.Object {
	l.mu.RLock()
	defer l.mu.RUnlock()
	from = max(from, 0)
	to = min(to, len(l.items)-1)
	if from > to {
		return nil
	}
	return slices.Clone(l.items[from : to+1])
}

// Contains reports whether the object with the given id is in the list.
func (l *List) Contains(id annotation.ID) bool {
	return l.IndexOf(id) >= 0
}

// IndexOf returns the stack position of id, or -1.
func (l *List) IndexOf(id annotation.ID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexLocked(id)
}

// ReverseIndexOf returns the distance of id from the top, or -1.
func (l *List) ReverseIndexOf(id annotation.ID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.indexLocked(id)
	if i < 0 {
		return -1
	}
	return len(l.items) - 1 - i
}

// IsTop reports whether id is the topmost object.
func (l *List) IsTop(id annotation.ID) bool {
	return l.ReverseIndexOf(id) == 0
}

// IsBottom reports whether id is the bottom object.
func (l *List) IsBottom(id annotation.ID) bool {
	return l.IndexOf(id) == 0
}

// indexLocked requires l.mu held for reading.
func (l *List) indexLocked(id annotation.ID) int {
	l.lookupMu.Lock()
	defer l.lookupMu.Unlock()
	if l.lookup == nil {
		l.lookup = make(map[annotation.ID]int, len(l.items))
		for i, o := range l.items {
			l.lookup[o.ID()] = i
		}
	}
	i, ok := l.lookup[id]
	if !ok {
		return -1
	}
	return i
}

func (l *List) invalidate() {
	l.lookupMu.Lock()
	l.lookup = nil
	l.lookupMu.Unlock()
}

// patch rewrites lookup entries for positions from..to. l.mu must be held
// for writing.
func (l *List) patch(from, to int) {
	l.lookupMu.Lock()
	defer l.lookupMu.Unlock()
	if l.lookup == nil {
		return
	}
	for i := from; i <= to; i++ {
		l.lookup[l.items[i].ID()] = i
	}
}

func (l *List) notify(o annotation.Object, from, to int) {
	if l.onChange != nil && from <= to {
		l.onChange(o, from, to)
	}
}

// Append puts o on top.
func (l *List) Append(o annotation.Object) int {
	l.mu.Lock()
	l.items = append(l.items, o)
	i := len(l.items) - 1
	l.lookupMu.Lock()
	if l.lookup != nil {
		l.lookup[o.ID()] = i
	}
	l.lookupMu.Unlock()
	l.mu.Unlock()
	return i
}

// Insert places o at position i, shifting the objects above it up. The
// changed range covers o and every shifted object.
func (l *List) Insert(o annotation.Object, i int) int {
	l.mu.Lock()
	i = min(max(i, 0), len(l.items))
	l.items = slices.Insert(l.items, i, o)
	last := len(l.items) - 1
	l.invalidate()
	l.mu.Unlock()

	l.notify(o, i, last)
	return i
}

// Remove deletes o and returns the range of positions that shifted down.
// ok is false when o was not in the list.
func (l *List) Remove(o annotation.Object) (from, to int, ok bool) {
	l.mu.Lock()
	i := l.indexLocked(o.ID())
	if i < 0 {
		l.mu.Unlock()
		return 0, -1, false
	}
	l.items = slices.Delete(l.items, i, i+1)
	to = len(l.items) - 1
	l.invalidate()
	l.mu.Unlock()

	l.notify(o, i, to)
	return i, to, true
}

// MoveUp swaps o with the object above it.
func (l *List) MoveUp(o annotation.Object) (from, to int, moved bool) {
	return l.move(o, func(i, n int) int { return min(i+1, n-1) })
}

// MoveDown swaps o with the object below it.
func (l *List) MoveDown(o annotation.Object) (from, to int, moved bool) {
	return l.move(o, func(i, _ int) int { return max(i-1, 0) })
}

// MoveTop puts o on top of the stack.
func (l *List) MoveTop(o annotation.Object) (from, to int, moved bool) {
	return l.move(o, func(_, n int) int { return n - 1 })
}

// MoveBottom puts o at the bottom of the stack.
func (l *List) MoveBottom(o annotation.Object) (from, to int, moved bool) {
	return l.move(o, func(int, int) int { return 0 })
}

// move relocates o to the position chosen by target and reports the range
// of positions whose occupant changed.
func (l *List) move(o annotation.Object, target func(i, n int) int) (from, to int, moved bool) {
	l.mu.Lock()
	i := l.indexLocked(o.ID())
	if i < 0 {
		l.mu.Unlock()
		return 0, -1, false
	}
	j := target(i, len(l.items))
	if i == j {
		l.mu.Unlock()
		return i, i, false
	}
	obj := l.items[i]
	if i < j {
		copy(l.items[i:j], l.items[i+1:j+1])
		from, to = i, j
	} else {
		copy(l.items[j+1:i+1], l.items[j:i])
		from, to = j, i
	}
	l.items[j] = obj
	l.patch(from, to)
	l.mu.Unlock()

	l.notify(o, from, to)
	return from, to, true
}

// SetOrder replaces the whole list with items, which is typically a
// permutation captured earlier. It reports the smallest range covering
// every position whose occupant changed.
func (l *List) SetOrder(items []annotation.Object) (from, to int, changed bool) {
	l.mu.Lock()
	old := l.items
	n := max(len(old), len(items))
	from, to = n, -1
	for i := range n {
		if i >= len(old) || i >= len(items) || old[i].ID() != items[i].ID() {
			from = min(from, i)
			to = i
		}
	}
	if to < 0 {
		l.mu.Unlock()
		return 0, -1, false
	}
	l.items = slices.Clone(items)
	to = min(to, len(l.items)-1)
	l.invalidate()
	l.mu.Unlock()

	if from <= to && len(items) > 0 {
		l.notify(items[from], from, to)
	}
	return from, to, true
}
