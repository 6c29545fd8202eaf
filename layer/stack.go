package layer

import (
	"errors"
	"math"
	"slices"
	"sync"
	"sync/atomic"
)

// zTolerance is the precision used when looking a layer up by depth.
const zTolerance = 1e-7

// Stack errors
var (
	// ErrUnknownLayer indicates that no layer with the given ID is in the stack.
	ErrUnknownLayer = errors.New("layer: unknown layer")

	// ErrDuplicateLayer indicates that a layer with the same ID is already present.
	ErrDuplicateLayer = errors.New("layer: duplicate layer")

	// ErrBadPlane indicates a non-positive plane width or height.
	ErrBadPlane = errors.New("layer: plane size must be positive")
)

// snapshot is an immutable view of the stack. Writers never modify a
// published snapshot; they build a replacement and swap it in.
type snapshot struct {
	layers []*Layer // sorted by Z, ties keep insertion order
	byID   map[ID]*Layer

	width, height float64
}

// Stack is the ordered sequence of layers, sorted by depth.
//
// Reads are lock-free: they load the current snapshot atomically and never
// observe a partially applied change. Writers are serialized by a mutex.
// The layer→position cache is cleared by every structural change and
// rebuilt lazily on the next IndexOf.
type Stack struct {
	cur atomic.Pointer[snapshot]
	mu  sync.Mutex // serializes writers

	idxMu  sync.Mutex
	idx    map[ID]int
	idxFor *snapshot // snapshot the cache was built from
}

// NewStack creates an empty stack whose new layers get the given plane size.
func NewStack(width, height float64) *Stack {
	s := &Stack{}
	s.cur.Store(&snapshot{byID: map[ID]*Layer{}, width: width, height: height})
	return s
}

// PlaneSize returns the plane dimensions shared by every layer.
func (s *Stack) PlaneSize() (width, height float64) {
	snap := s.cur.Load()
	return snap.width, snap.height
}

// Len returns the number of layers.
func (s *Stack) Len() int {
	return len(s.cur.Load().layers)
}

// Layers returns a copy of the layers, shallowest first.
func (s *Stack) Layers() []*Layer {
	return slices.Clone(s.cur.Load().layers)
}

// Get returns the layer with the given ID.
func (s *Stack) Get(id ID) (*Layer, bool) {
	l, ok := s.cur.Load().byID[id]
	return l, ok
}

// At returns the layer at position i, or nil if out of range.
func (s *Stack) At(i int) *Layer {
	layers := s.cur.Load().layers
	if i < 0 || i >= len(layers) {
		return nil
	}
	return layers[i]
}

// IndexOf returns the position of the layer in the stack, or -1.
func (s *Stack) IndexOf(id ID) int {
	snap := s.cur.Load()

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	if s.idxFor != snap {
		s.idx = make(map[ID]int, len(snap.layers))
		for i, l := range snap.layers {
			s.idx[l.id] = i
		}
		s.idxFor = snap
	}
	if i, ok := s.idx[id]; ok {
		return i
	}
	return -1
}

// Add inserts a layer at the position given by its depth.
func (s *Stack) Add(l *Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	if _, ok := old.byID[l.id]; ok {
		return ErrDuplicateLayer
	}
	s.publish(old, insertSorted(slices.Clone(old.layers), l))
	return nil
}

// Create adds a new layer at depth z using the stack's plane size.
func (s *Stack) Create(z, thickness float64) *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	l := New(z, thickness, old.width, old.height)
	s.publish(old, insertSorted(slices.Clone(old.layers), l))
	return l
}

// GetOrCreate returns the layer with the given depth and thickness, creating
// it when none matches.
func (s *Stack) GetOrCreate(z, thickness float64) (l *Layer, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	for _, la := range old.layers {
		if math.Abs(la.z-z) < zTolerance && math.Abs(la.thickness-thickness) < zTolerance {
			return la, false
		}
	}
	l = New(z, thickness, old.width, old.height)
	s.publish(old, insertSorted(slices.Clone(old.layers), l))
	return l, true
}

// Remove deletes the layer with the given ID.
func (s *Stack) Remove(id ID) (*Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	l, ok := old.byID[id]
	if !ok {
		return nil, ErrUnknownLayer
	}
	layers := slices.DeleteFunc(slices.Clone(old.layers), func(la *Layer) bool {
		return la.id == id
	})
	s.publish(old, layers)
	return l, nil
}

// Reposition moves a layer to a new depth, keeping its thickness, and
// returns the replacement value.
func (s *Stack) Reposition(id ID, z float64) (*Layer, error) {
	return s.place(id, func(l *Layer) *Layer { return l.placed(z, l.thickness) })
}

// Edit gives a layer a new depth and thickness and returns the replacement
// value.
func (s *Stack) Edit(id ID, z, thickness float64) (*Layer, error) {
	return s.place(id, func(l *Layer) *Layer { return l.placed(z, thickness) })
}

func (s *Stack) place(id ID, fn func(*Layer) *Layer) (*Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	l, ok := old.byID[id]
	if !ok {
		return nil, ErrUnknownLayer
	}
	moved := fn(l)
	layers := slices.DeleteFunc(slices.Clone(old.layers), func(la *Layer) bool {
		return la.id == id
	})
	s.publish(old, insertSorted(layers, moved))
	return moved, nil
}

// Resize gives the plane a new size, replacing every layer with a copy of
// that size. Layers created afterwards get it too.
func (s *Stack) Resize(width, height float64) error {
	if !(width > 0 && height > 0) {
		return ErrBadPlane
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	layers := make([]*Layer, len(old.layers))
	for i, l := range old.layers {
		layers[i] = l.resized(width, height)
	}
	s.cur.Store(newSnapshot(layers, width, height))
	s.clearIndex()
	return nil
}

// ByZ returns the first layer whose depth equals z within a small tolerance.
func (s *Stack) ByZ(z float64) (*Layer, bool) {
	for _, l := range s.cur.Load().layers {
		if math.Abs(l.z-z) < zTolerance {
			return l, true
		}
	}
	return nil, false
}

// Nearest returns the layer whose depth is closest to z, or nil when empty.
func (s *Stack) Nearest(z float64) *Layer {
	var closest *Layer
	best := math.MaxFloat64
	for _, l := range s.cur.Load().layers {
		if d := math.Abs(l.z - z); d < best {
			best = d
			closest = l
		}
	}
	return closest
}

// Next returns the layer after id, or the layer itself when it is the last.
func (s *Stack) Next(id ID) (*Layer, error) {
	return s.step(id, 1)
}

// Previous returns the layer before id, or the layer itself when it is the first.
func (s *Stack) Previous(id ID) (*Layer, error) {
	return s.step(id, -1)
}

func (s *Stack) step(id ID, delta int) (*Layer, error) {
	snap := s.cur.Load()
	i := slices.IndexFunc(snap.layers, func(l *Layer) bool { return l.id == id })
	if i < 0 {
		return nil, ErrUnknownLayer
	}
	j := i + delta
	if j < 0 || j >= len(snap.layers) {
		return snap.layers[i], nil
	}
	return snap.layers[j], nil
}

// Range returns the layers from first to last inclusive, in stack order.
// The bounds may be given in either order.
func (s *Stack) Range(first, last ID) ([]*Layer, error) {
	snap := s.cur.Load()
	i := slices.IndexFunc(snap.layers, func(l *Layer) bool { return l.id == first })
	j := slices.IndexFunc(snap.layers, func(l *Layer) bool { return l.id == last })
	if i < 0 || j < 0 {
		return nil, ErrUnknownLayer
	}
	if i > j {
		i, j = j, i
	}
	return slices.Clone(snap.layers[i : j+1]), nil
}

// publish swaps in a new snapshot with the plane size of old. Callers hold
// s.mu.
func (s *Stack) publish(old *snapshot, layers []*Layer) {
	s.cur.Store(newSnapshot(layers, old.width, old.height))
	s.clearIndex()
}

func newSnapshot(layers []*Layer, width, height float64) *snapshot {
	byID := make(map[ID]*Layer, len(layers))
	for _, l := range layers {
		byID[l.id] = l
	}
	return &snapshot{layers: layers, byID: byID, width: width, height: height}
}

func (s *Stack) clearIndex() {
	s.idxMu.Lock()
	s.idx = nil
	s.idxFor = nil
	s.idxMu.Unlock()
}

// insertSorted places l after every layer with a depth <= l.z.
func insertSorted(layers []*Layer, l *Layer) []*Layer {
	i, _ := slices.BinarySearchFunc(layers, l.z, func(la *Layer, z float64) int {
		if la.z <= z {
			return -1
		}
		return 1
	})
	return slices.Insert(layers, i, l)
}
