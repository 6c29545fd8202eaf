// Package history implements a bounded, linear undo/redo log of opaque
// edit steps.
//
// The log keeps archived steps ordered by a monotonically increasing
// sequence number, a per-subject secondary index into that log, a current
// step and a redo stack. Recording a new step after an undo discards the redo
// stack: history never branches. When the log grows past its depth, the
// oldest entries are evicted from the log and the subject index together.
//
// Steps capture state rather than deltas: applying a step in either
// direction restores the state it captured. A typical edit records a step
// for the state before the change and another for the state after it, so
// that Undo lands on the first and Redo on the second.
package history

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DefaultDepth is the default bound on archived steps.
const DefaultDepth = 32

// Errors returned by History.
var (
	// ErrEmptyHistory is returned by Undo when there is nothing to undo.
	ErrEmptyHistory = errors.New("history: nothing to undo")

	// ErrEmptyRedo is returned by Redo when there is nothing to redo.
	ErrEmptyRedo = errors.New("history: nothing to redo")

	// ErrStepFailed is returned when a step could not be applied.
	ErrStepFailed = errors.New("history: step could not be applied")
)

// Direction selects which way a step is applied.
type Direction uint8

// Direction constants.
const (
	// Undo restores the state captured by a step while walking back.
	Undo Direction = iota

	// Redo restores the state captured by a step while walking forward.
	Redo
)

// String returns "undo" or "redo".
func (d Direction) String() string {
	if d == Redo {
		return "redo"
	}
	return "undo"
}

// Step is an opaque, reversible record of one mutation.
type Step[K comparable] interface {
	// IsIdentical reports whether the step captures exactly the same state
	// as other, which may be another step or the subject of an edit.
	IsIdentical(other any) bool

	// Apply restores the captured state. It reports false on failure.
	Apply(d Direction) bool

	// Subject returns the object the step concerns, if any.
	Subject() (K, bool)

	// IsEmpty reports whether the step captured nothing.
	IsEmpty() bool
}

// Entry is an archived step.
type Entry[K comparable] struct {
	Seq  uint64
	At   time.Time
	Step Step[K]
}

// Option configures a History.
type Option func(*options)

type options struct {
	depth int
}

// WithDepth sets the bound on archived steps. Values below 1 are ignored.
func WithDepth(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.depth = n
		}
	}
}

// History is a bounded undo/redo log. It is safe for concurrent use.
type History[K comparable] struct {
	mu    sync.Mutex
	depth int
	seq   uint64

	log       []Entry[K]
	bySubject map[K][]uint64

	current *Entry[K]
	redo    []Entry[K] // top of stack last
}

// New returns an empty history.
func New[K comparable](opts ...Option) *History[K] {
	o := options{depth: DefaultDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return &History[K]{depth: o.depth, bySubject: make(map[K][]uint64)}
}

// Depth returns the bound on archived steps.
func (h *History[K]) Depth() int { return h.depth }

// PrepareStep reports whether a step describing subject should be recorded
// before an edit. It is false when the newest archived step already captures
// the same state, which keeps repeated triggers of one edit out of the log.
func (h *History[K]) PrepareStep(subject any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.log) == 0 || len(h.redo) > 0 {
		return true
	}
	return !h.log[len(h.log)-1].Step.IsIdentical(subject)
}

// Record makes step the current step, archiving the previous current step
// and discarding the redo stack. Nil, empty and duplicate steps are ignored;
// the result reports whether step was recorded.
func (h *History[K]) Record(step Step[K]) bool {
	if step == nil || step.IsEmpty() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil && step.IsIdentical(h.current.Step) {
		return false
	}
	if h.current != nil {
		h.archive(*h.current)
		h.evict()
	}
	h.seq++
	h.current = &Entry[K]{Seq: h.seq, At: time.Now(), Step: step}
	h.redo = nil
	return true
}

func (h *History[K]) archive(e Entry[K]) {
	h.log = append(h.log, e)
	if k, ok := e.Step.Subject(); ok {
		h.bySubject[k] = append(h.bySubject[k], e.Seq)
	}
}

func (h *History[K]) evict() {
	for len(h.log) > h.depth {
		h.unindex(h.log[0])
		h.log[0] = Entry[K]{}
		h.log = h.log[1:]
	}
}

func (h *History[K]) unindex(e Entry[K]) {
	k, ok := e.Step.Subject()
	if !ok {
		return
	}
	seqs := slices.DeleteFunc(h.bySubject[k], func(s uint64) bool { return s == e.Seq })
	if len(seqs) == 0 {
		delete(h.bySubject, k)
		return
	}
	h.bySubject[k] = seqs
}

// Undo steps back once: the current step moves to the redo stack and the
// newest archived step becomes current and is applied.
func (h *History[K]) Undo() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.log) == 0 {
		return ErrEmptyHistory
	}
	if h.current != nil {
		h.redo = append(h.redo, *h.current)
	}
	e := h.log[len(h.log)-1]
	h.log = h.log[:len(h.log)-1]
	h.unindex(e)
	h.current = &e

	if !e.Step.Apply(Undo) {
		return fmt.Errorf("%w: undo seq %d", ErrStepFailed, e.Seq)
	}
	return nil
}

// Redo steps forward once. With an empty redo stack it re-applies the
// current step, which is a no-op for state that is already current.
func (h *History[K]) Redo() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		if h.current == nil {
			return ErrEmptyRedo
		}
		if !h.current.Step.Apply(Redo) {
			return fmt.Errorf("%w: redo seq %d", ErrStepFailed, h.current.Seq)
		}
		return nil
	}
	if h.current != nil {
		h.archive(*h.current)
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.current = &e

	if !e.Step.Apply(Redo) {
		return fmt.Errorf("%w: redo seq %d", ErrStepFailed, e.Seq)
	}
	return nil
}

// CanUndo reports whether Undo has an archived step to go back to.
func (h *History[K]) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.log) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (h *History[K]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Current returns the current step.
func (h *History[K]) Current() (Step[K], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current.Step, true
}

// Len returns the number of archived steps.
func (h *History[K]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.log)
}

// RedoLen returns the depth of the redo stack.
func (h *History[K]) RedoLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo)
}

// Entries returns the archived steps, oldest first.
func (h *History[K]) Entries() []Entry[K] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.log)
}

// StepsFor returns the archived steps concerning subject, oldest first.
func (h *History[K]) StepsFor(subject K) []Step[K] {
	h.mu.Lock()
	defer h.mu.Unlock()
	seqs := h.bySubject[subject]
	out := make([]Step[K], 0, len(seqs))
	for _, s := range seqs {
		if i, ok := h.find(s); ok {
			out = append(out, h.log[i].Step)
		}
	}
	return out
}

func (h *History[K]) find(seq uint64) (int, bool) {
	return slices.BinarySearchFunc(h.log, seq, func(e Entry[K], s uint64) int {
		switch {
		case e.Seq < s:
			return -1
		case e.Seq > s:
			return 1
		}
		return 0
	})
}

// Forget drops every archived and redo step concerning subject. It returns
// the number of steps dropped. The current step is kept.
func (h *History[K]) Forget(subject K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	is := func(e Entry[K]) bool {
		k, ok := e.Step.Subject()
		return ok && k == subject
	}
	n := len(h.log) + len(h.redo)
	h.log = slices.DeleteFunc(h.log, is)
	h.redo = slices.DeleteFunc(h.redo, is)
	delete(h.bySubject, subject)
	return n - len(h.log) - len(h.redo)
}

// RemoveLast drops the newest archived step without applying it.
func (h *History[K]) RemoveLast() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.log) == 0 {
		return false
	}
	e := h.log[len(h.log)-1]
	h.log = h.log[:len(h.log)-1]
	h.unindex(e)
	return true
}

// Clear empties the log, the redo stack and the current step.
func (h *History[K]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = nil
	h.redo = nil
	h.current = nil
	clear(h.bySubject)
}
