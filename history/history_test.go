package history

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// state is a tiny object model: one integer per subject.
type state map[string]int

// setStep captures the value of one subject.
type setStep struct {
	st      state
	subject string
	value   int
	applied []Direction
	fail    bool
}

func (s *setStep) IsIdentical(other any) bool {
	switch o := other.(type) {
	case *setStep:
		return o.subject == s.subject && o.value == s.value
	case string:
		return o == s.subject && s.st[o] == s.value
	}
	return false
}

func (s *setStep) Apply(d Direction) bool {
	s.applied = append(s.applied, d)
	if s.fail {
		return false
	}
	s.st[s.subject] = s.value
	return true
}

func (s *setStep) Subject() (string, bool) { return s.subject, s.subject != "" }

func (s *setStep) IsEmpty() bool { return false }

// edit changes subject to v, recording before and after steps the way an
// editor does.
func edit(h *History[string], st state, subject string, v int) {
	if h.PrepareStep(subject) {
		h.Record(&setStep{st: st, subject: subject, value: st[subject]})
	}
	st[subject] = v
	h.Record(&setStep{st: st, subject: subject, value: v})
}

// ===== Scenario =====

func TestUndoTwiceRedoOnce(t *testing.T) {
	st := state{}
	h := New[string]()
	e1 := &setStep{st: st, subject: "a", value: 1}
	e2 := &setStep{st: st, subject: "a", value: 2}
	e3 := &setStep{st: st, subject: "a", value: 3}
	for _, e := range []*setStep{e1, e2, e3} {
		require.True(t, h.Record(e))
		st["a"] = e.value
	}

	require.NoError(t, h.Undo())
	require.NoError(t, h.Undo())
	require.NoError(t, h.Redo())

	cur, ok := h.Current()
	require.True(t, ok)
	assert.Same(t, e2, cur)
	assert.Equal(t, 2, st["a"])
	assert.Equal(t, []Direction{Undo, Redo}, e2.applied)
}

func TestNUndosRestoreInitialState(t *testing.T) {
	st := state{"a": 0, "b": 0}
	h := New[string]()
	edits := []struct {
		subject string
		v       int
	}{{"a", 1}, {"b", 5}, {"a", 7}, {"a", 9}, {"b", 2}}
	for _, e := range edits {
		edit(h, st, e.subject, e.v)
	}
	after := state{"a": 9, "b": 2}
	assert.Equal(t, after, st)

	for h.CanUndo() {
		require.NoError(t, h.Undo())
	}
	assert.Equal(t, state{"a": 0, "b": 0}, st)

	for h.CanRedo() {
		require.NoError(t, h.Redo())
	}
	assert.Equal(t, after, st)
}

func TestRedoAfterUndoReplays(t *testing.T) {
	st := state{"a": 0}
	h := New[string]()
	edit(h, st, "a", 4)

	require.NoError(t, h.Undo())
	assert.Equal(t, 0, st["a"])
	require.NoError(t, h.Redo())
	assert.Equal(t, 4, st["a"])
}

func TestNewEditClearsRedo(t *testing.T) {
	st := state{"a": 0}
	h := New[string]()
	edit(h, st, "a", 1)
	edit(h, st, "a", 2)
	require.NoError(t, h.Undo())
	require.True(t, h.CanRedo())

	edit(h, st, "a", 3)
	assert.False(t, h.CanRedo())
	assert.Equal(t, 0, h.RedoLen())
}

// ===== Bounds =====

func TestDepthBound(t *testing.T) {
	const depth = 4
	st := state{}
	h := New[string](WithDepth(depth))
	var steps []*setStep
	for i := range depth + 5 {
		s := &setStep{st: st, subject: "a", value: i}
		steps = append(steps, s)
		require.True(t, h.Record(s))
	}
	assert.Equal(t, depth, h.Len())
	assert.Len(t, h.StepsFor("a"), depth)

	// The newest archived step is the one before current; the oldest five
	// are gone.
	undone := 0
	for h.CanUndo() {
		require.NoError(t, h.Undo())
		undone++
	}
	assert.Equal(t, depth, undone)
	cur, _ := h.Current()
	assert.Same(t, steps[4], cur)
	assert.ErrorIs(t, h.Undo(), ErrEmptyHistory)
}

func TestWithDepthIgnoresInvalid(t *testing.T) {
	h := New[string](WithDepth(0))
	assert.Equal(t, DefaultDepth, h.Depth())
}

// ===== Recording =====

func TestRecordRejects(t *testing.T) {
	st := state{}
	h := New[string]()
	assert.False(t, h.Record(nil))

	s := &setStep{st: st, subject: "a", value: 1}
	require.True(t, h.Record(s))
	assert.False(t, h.Record(&setStep{st: st, subject: "a", value: 1}), "identical to current")
	assert.Equal(t, 0, h.Len())
}

func TestPrepareStep(t *testing.T) {
	st := state{"a": 1}
	h := New[string]()
	assert.True(t, h.PrepareStep("a"), "empty log")

	h.Record(&setStep{st: st, subject: "a", value: 1})
	h.Record(&setStep{st: st, subject: "b", value: 0})
	assert.False(t, h.PrepareStep("a"), "newest archived step already captures a=1")

	st["a"] = 2
	assert.True(t, h.PrepareStep("a"))
}

func TestEmptyStatuses(t *testing.T) {
	h := New[string]()
	assert.ErrorIs(t, h.Undo(), ErrEmptyHistory)
	assert.ErrorIs(t, h.Redo(), ErrEmptyRedo)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}

func TestRedoEmptyReappliesCurrent(t *testing.T) {
	st := state{}
	h := New[string]()
	s := &setStep{st: st, subject: "a", value: 3}
	h.Record(s)
	st["a"] = 99

	require.NoError(t, h.Redo())
	assert.Equal(t, 3, st["a"])
	assert.Equal(t, []Direction{Redo}, s.applied)
}

func TestApplyFailure(t *testing.T) {
	st := state{}
	h := New[string]()
	h.Record(&setStep{st: st, subject: "a", value: 1, fail: true})
	h.Record(&setStep{st: st, subject: "a", value: 2})

	err := h.Undo()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStepFailed))
}

// ===== Subject index =====

func TestSubjectIndex(t *testing.T) {
	st := state{}
	h := New[string]()
	h.Record(&setStep{st: st, subject: "a", value: 1})
	h.Record(&setStep{st: st, subject: "b", value: 1})
	h.Record(&setStep{st: st, subject: "a", value: 2})
	h.Record(&setStep{st: st, value: 0})

	assert.Len(t, h.StepsFor("a"), 2)
	assert.Len(t, h.StepsFor("b"), 1)

	require.NoError(t, h.Undo())
	assert.Len(t, h.StepsFor("a"), 1, "undone step leaves the subject index")
	require.NoError(t, h.Undo())

	assert.Equal(t, 2, h.Forget("a"), "one archived, one on the redo stack")
	assert.Empty(t, h.StepsFor("a"))
	assert.Equal(t, 0, h.Len())
}

func TestRemoveLastAndClear(t *testing.T) {
	st := state{}
	h := New[string]()
	h.Record(&setStep{st: st, subject: "a", value: 1})
	h.Record(&setStep{st: st, subject: "a", value: 2})
	h.Record(&setStep{st: st, subject: "a", value: 3})

	require.True(t, h.RemoveLast())
	assert.Equal(t, 1, h.Len())
	assert.Len(t, h.StepsFor("a"), 1)

	h.Clear()
	assert.Equal(t, 0, h.Len())
	_, ok := h.Current()
	assert.False(t, ok)
	assert.False(t, h.RemoveLast())
}

func TestEntriesMonotonic(t *testing.T) {
	st := state{}
	h := New[string]()
	for i := range 6 {
		h.Record(&setStep{st: st, subject: "a", value: i})
	}
	require.NoError(t, h.Undo())
	require.NoError(t, h.Redo())

	entries := h.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Seq >= entries[i].Seq {
			t.Errorf("Entries()[%d].Seq = %d, not above %d", i, entries[i].Seq, entries[i-1].Seq)
		}
	}
}
