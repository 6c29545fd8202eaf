package strata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/spatial"
)

// ===== Transform edits =====

func TestEditUndoRestoresInitialState(t *testing.T) {
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	const n = 5
	for i := 1; i <= n; i++ {
		require.NoError(t, s.Edit(TransformEdit(p), func() error {
			return s.SetTransform(p, geom.Translate(float64(i*100), 0))
		}))
	}
	final := p.Transform()

	for range n {
		require.NoError(t, s.Undo())
	}
	assert.Equal(t, geom.Translate(0, 0), p.Transform())
	assert.Equal(t, idsOf(p), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))
	assert.False(t, s.CanUndo())
	assert.ErrorIs(t, s.Undo(), ErrEmptyHistory)

	for range n {
		require.NoError(t, s.Redo())
	}
	assert.Equal(t, final, p.Transform())
	assert.Equal(t, idsOf(p), ids(s.QueryPoint(l.ID(), geom.Pt(505, 5), spatial.Query{})))

	ix, _ := s.Index(l.ID())
	assert.NoError(t, ix.Verify())
}

func TestEditClearsRedo(t *testing.T) {
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	move := func(x float64) {
		require.NoError(t, s.Edit(TransformEdit(p), func() error {
			return s.SetTransform(p, geom.Translate(x, 0))
		}))
	}
	move(100)
	move(200)
	require.NoError(t, s.Undo())
	assert.True(t, s.CanRedo())

	move(300)
	assert.False(t, s.CanRedo())
	// Nothing left to redo: Redo re-applies the current state.
	require.NoError(t, s.Redo())
	assert.Equal(t, geom.Translate(300, 0), p.Transform())

	require.NoError(t, s.Undo())
	assert.Equal(t, geom.Translate(100, 0), p.Transform())
}

func TestEditHistoryDepth(t *testing.T) {
	s, l := newTestScene(t, WithHistoryDepth(3))
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	for i := 1; i <= 10; i++ {
		require.NoError(t, s.Edit(TransformEdit(p), func() error {
			return s.SetTransform(p, geom.Translate(float64(i), 0))
		}))
	}
	assert.Equal(t, 3, s.History().Len())

	undone := 0
	for s.Undo() == nil {
		undone++
	}
	assert.Equal(t, 3, undone)
	assert.Equal(t, geom.Translate(7, 0), p.Transform())
}

func TestTransformsEdit(t *testing.T) {
	s, l := newTestScene(t)
	a := patchAt(l, 0, 0, 10)
	b := patchAt(l, 20, 0, 10)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	require.NoError(t, s.Edit(TransformsEdit(a, b), func() error {
		return s.SetTransforms(map[annotation.Object]geom.Affine{
			a: geom.Translate(400, 400),
			b: geom.Translate(420, 400),
		})
	}))
	require.NoError(t, s.Undo())

	assert.Equal(t, geom.Translate(0, 0), a.Transform())
	assert.Equal(t, geom.Translate(20, 0), b.Transform())
	assert.Equal(t, idsOf(a), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))
}

// ===== Stale references =====

func TestUndoSkipsRemovedObject(t *testing.T) {
	buf := captureLog(t)
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	require.NoError(t, s.Edit(TransformEdit(p), func() error {
		return s.SetTransform(p, geom.Translate(100, 0))
	}))
	require.NoError(t, s.Remove(p))

	require.NoError(t, s.Undo())
	assert.False(t, s.Has(p), "undo must not resurrect an object it does not own")
	assert.Equal(t, geom.Translate(100, 0), p.Transform())
	assert.Contains(t, buf.String(), ErrStaleReference.Error())
}

func TestForgetRemovedObject(t *testing.T) {
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))
	require.NoError(t, s.Edit(TransformEdit(p), func() error {
		return s.SetTransform(p, geom.Translate(100, 0))
	}))

	require.NoError(t, s.Remove(p))
	assert.Equal(t, 1, s.History().Forget(p.ID()))
	assert.ErrorIs(t, s.Undo(), ErrEmptyHistory)
}

// ===== Content edits =====

func TestContentEditAdd(t *testing.T) {
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)

	require.NoError(t, s.Edit(ContentEdit(p), func() error { return s.Add(p) }))
	require.NoError(t, s.Undo())
	assert.False(t, s.Has(p))
	assert.Empty(t, s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{}))

	require.NoError(t, s.Redo())
	assert.True(t, s.Has(p))
	assert.Equal(t, idsOf(p), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))
}

func TestContentEditRemoveRestoresPosition(t *testing.T) {
	s, l := newTestScene(t)
	a := patchAt(l, 0, 0, 10)
	b := patchAt(l, 0, 0, 10)
	c := patchAt(l, 0, 0, 10)
	for _, o := range []annotation.Object{a, b, c} {
		require.NoError(t, s.Add(o))
	}

	require.NoError(t, s.Edit(ContentEdit(b), func() error { return s.Remove(b) }))
	assert.Equal(t, idsOf(a, c), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))

	require.NoError(t, s.Undo())
	assert.Equal(t, 1, s.PaintIndex(b))
	assert.Equal(t, idsOf(a, b, c), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))

	ix, _ := s.Index(l.ID())
	assert.NoError(t, ix.Verify())
}

// ===== Order edits =====

func TestOrderEdit(t *testing.T) {
	s, l := newTestScene(t)
	a := patchAt(l, 0, 0, 10)
	b := patchAt(l, 0, 0, 10)
	c := patchAt(l, 0, 0, 10)
	for _, o := range []annotation.Object{a, b, c} {
		require.NoError(t, s.Add(o))
	}

	require.NoError(t, s.Edit(OrderEdit(a), func() error {
		_, err := s.MoveTop(a)
		return err
	}))
	assert.Equal(t, idsOf(b, c, a), ids(s.Order(a)))

	require.NoError(t, s.Undo())
	assert.Equal(t, idsOf(a, b, c), ids(s.Order(a)))
	assert.Equal(t, idsOf(a, b, c), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))

	require.NoError(t, s.Redo())
	assert.Equal(t, idsOf(b, c, a), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))
}

func TestOrderEditCrossLayer(t *testing.T) {
	s, l := newTestScene(t)
	x := annotation.NewAreaList("x")
	x.SetArea(l.ID(), square(0, 0, 10))
	y := annotation.NewAreaList("y")
	y.SetArea(l.ID(), square(0, 0, 10))
	require.NoError(t, s.Add(x))
	require.NoError(t, s.Add(y))

	require.NoError(t, s.Edit(OrderEdit(y), func() error {
		_, err := s.MoveBottom(y)
		return err
	}))
	assert.Equal(t, idsOf(y, x), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))

	require.NoError(t, s.Undo())
	assert.Equal(t, idsOf(x, y), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))
}

// ===== Data and property edits =====

func TestDataEditLabel(t *testing.T) {
	s, l := newTestScene(t)
	lb := annotation.NewLabel(l.ID(), "x", 20)
	require.NoError(t, s.Add(lb))
	before, _ := lb.Bounds(l.ID())
	far := geom.Pt(before.MaxX+50, before.Center().Y)

	require.NoError(t, s.Edit(DataEdit(lb), func() error {
		return s.Reshape(lb, func() { lb.SetText("a considerably longer label text") })
	}))
	assert.Len(t, s.QueryPoint(l.ID(), far, spatial.Query{}), 1)

	require.NoError(t, s.Undo())
	assert.Equal(t, "x", lb.Text())
	assert.Empty(t, s.QueryPoint(l.ID(), far, spatial.Query{}))

	ix, _ := s.Index(l.ID())
	assert.NoError(t, ix.Check(lb))
}

func TestDataEditAreaListLayers(t *testing.T) {
	s, l := newTestScene(t)
	l2 := s.AddLayer(1, 1)
	area := annotation.NewAreaList("a")
	area.SetArea(l.ID(), square(0, 0, 50))
	require.NoError(t, s.Add(area))

	require.NoError(t, s.Edit(DataEdit(area), func() error {
		return s.Reshape(area, func() { area.SetArea(l2.ID(), square(0, 0, 50)) })
	}))
	assert.Len(t, s.QueryPoint(l2.ID(), geom.Pt(25, 25), spatial.Query{}), 1)

	require.NoError(t, s.Undo())
	assert.Empty(t, s.QueryPoint(l2.ID(), geom.Pt(25, 25), spatial.Query{}))
	ix2, _ := s.Index(l2.ID())
	assert.False(t, ix2.Contains(area))
}

func TestPropertyEdit(t *testing.T) {
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	require.NoError(t, s.Edit(PropertyEdit(p), func() error {
		if err := s.SetTitle(p, "hidden tile"); err != nil {
			return err
		}
		return s.SetVisible(p, false)
	}))
	assert.Empty(t, s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{VisibleOnly: true}))

	require.NoError(t, s.Undo())
	assert.Equal(t, "", p.Title())
	assert.True(t, p.Visible())
	assert.Len(t, s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{VisibleOnly: true}), 1)
}

// ===== Layer edits =====

func TestLayerEditUndo(t *testing.T) {
	s, l := newTestScene(t)
	l2 := s.AddLayer(1, 1)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	require.NoError(t, s.Edit(LayersEdit(), func() error {
		_, err := s.RepositionLayer(l.ID(), 5, 3)
		return err
	}))
	got, _ := s.Layer(l.ID())
	assert.Equal(t, [2]float64{5, 3}, [2]float64{got.Z(), got.Thickness()})
	assert.Equal(t, l2.ID(), s.Layers()[0].ID())

	require.NoError(t, s.Undo())
	got, _ = s.Layer(l.ID())
	assert.Equal(t, [2]float64{0, 1}, [2]float64{got.Z(), got.Thickness()})
	assert.Equal(t, l.ID(), s.Layers()[0].ID())
	assert.Equal(t, idsOf(p), ids(s.QueryPoint(l.ID(), geom.Pt(5, 5), spatial.Query{})))

	require.NoError(t, s.Redo())
	got, _ = s.Layer(l.ID())
	assert.Equal(t, [2]float64{5, 3}, [2]float64{got.Z(), got.Thickness()})

	_, ok := LayerEdit(l.ID())(s).Subject()
	assert.False(t, ok)
}

func TestLayerEditSkipsRemovedLayer(t *testing.T) {
	s, _ := newTestScene(t)
	l2 := s.AddLayer(1, 1)

	require.NoError(t, s.Edit(LayerEdit(l2.ID()), func() error {
		_, err := s.RepositionLayer(l2.ID(), 2, 1)
		return err
	}))
	require.NoError(t, s.RemoveLayer(l2.ID()))

	assert.NoError(t, s.Undo())
	assert.Len(t, s.Layers(), 1)
}

func TestResizeEditUndo(t *testing.T) {
	s, l := newTestScene(t)
	far := patchAt(l, 1500, 1500, 100)
	require.NoError(t, s.Add(far))

	require.NoError(t, s.Edit(ResizeEdit(), func() error {
		return s.Resize(context.Background(), 2000, 2000)
	}))
	ix, _ := s.Index(l.ID())
	assert.Equal(t, 0, ix.Stats().Spilled)

	require.NoError(t, s.Undo())
	w, h := s.PlaneSize()
	assert.Equal(t, [2]float64{1000, 1000}, [2]float64{w, h})
	ix, _ = s.Index(l.ID())
	assert.Equal(t, geom.XYWH(0, 0, 1000, 1000), ix.Bounds())
	assert.Equal(t, 1, ix.Stats().Spilled)
	assert.Equal(t, idsOf(far), ids(s.QueryPoint(l.ID(), geom.Pt(1550, 1550), spatial.Query{})))

	require.NoError(t, s.Redo())
	ix, _ = s.Index(l.ID())
	assert.Equal(t, geom.XYWH(0, 0, 2000, 2000), ix.Bounds())
	assert.NoError(t, ix.Verify())

	assert.True(t, ResizeEdit()(s).IsIdentical(ResizeEdit()(s)))
}

// ===== Identity =====

func TestStepIsIdentical(t *testing.T) {
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	a := TransformEdit(p)(s)
	b := TransformEdit(p)(s)
	assert.True(t, a.IsIdentical(b))
	assert.True(t, a.IsIdentical(p))

	p.SetTransform(geom.Translate(1, 0))
	assert.False(t, a.IsIdentical(p))
	assert.False(t, a.IsIdentical(PropertyEdit(p)(s)))

	d := DataEdit(p)(s)
	assert.True(t, d.IsIdentical(p))
	assert.True(t, d.IsIdentical(DataEdit(p)(s)))

	id, ok := a.Subject()
	assert.True(t, ok)
	assert.Equal(t, p.ID(), id)
}

func TestEditRecordsNothingWithoutChange(t *testing.T) {
	s, l := newTestScene(t)
	p := patchAt(l, 0, 0, 10)
	require.NoError(t, s.Add(p))

	require.NoError(t, s.Edit(TransformEdit(p), func() error { return nil }))
	require.NoError(t, s.Edit(TransformEdit(p), func() error { return nil }))
	assert.Equal(t, 0, s.History().Len())
	assert.False(t, s.CanUndo())
}
