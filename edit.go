package strata

import (
	"errors"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/history"
)

// Step is an edit step of a scene.
type Step = history.Step[annotation.ID]

// Capture records the current state of whatever an edit is about to change.
type Capture func(s *Scene) Step

// History returns the edit history.
func (s *Scene) History() *history.History[annotation.ID] {
	return s.hist
}

// PrepareStep reports whether a step for subject should be recorded before
// an edit; see history.History.PrepareStep.
func (s *Scene) PrepareStep(subject any) bool {
	return s.hist.PrepareStep(subject)
}

// Record adds step to the history.
func (s *Scene) Record(step Step) bool {
	return s.hist.Record(step)
}

// Edit captures the state before fn, runs fn and captures the state after
// it, so that a following Undo restores the state before and Redo the state
// after. When fn fails, the recorded pre-edit step is kept.
func (s *Scene) Edit(capture Capture, fn func() error) error {
	pre := capture(s)
	if s.hist.PrepareStep(pre) {
		s.hist.Record(pre)
	}
	if err := fn(); err != nil {
		return err
	}
	s.hist.Record(capture(s))
	return nil
}

// Undo steps back once. It returns ErrEmptyHistory when there is nothing to
// undo.
func (s *Scene) Undo() error {
	err := s.hist.Undo()
	s.logHistory("undo", err)
	return err
}

// Redo steps forward once. With nothing undone it re-applies the current
// step; it returns ErrEmptyRedo only when no step was ever recorded.
func (s *Scene) Redo() error {
	err := s.hist.Redo()
	s.logHistory("redo", err)
	return err
}

func (s *Scene) logHistory(op string, err error) {
	switch {
	case err == nil:
		Logger().Debug("strata: "+op, "history", s.hist.Len(), "redo", s.hist.RedoLen())
	case errors.Is(err, ErrEmptyHistory), errors.Is(err, ErrEmptyRedo):
		Logger().Debug("strata: "+op+" has nothing to do")
	default:
		Logger().Warn("strata: "+op+" failed", "err", err)
	}
}

// CanUndo reports whether Undo has a step to go back to.
func (s *Scene) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether Redo has a step to go forward to.
func (s *Scene) CanRedo() bool { return s.hist.CanRedo() }
