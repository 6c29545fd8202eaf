package annotation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindPatch, "Patch"},
		{KindLabel, "Label"},
		{KindAreaList, "AreaList"},
		{KindCustom, "Custom"},
		{Kind(200), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
	assert.True(t, KindAreaList.CrossLayer())
	assert.False(t, KindPatch.CrossLayer())
}

func TestPatchGeometry(t *testing.T) {
	l := layer.New(0, 1, 100, 100)
	p := NewPatch(l.ID(), 10, 10)

	b, ok := p.Bounds(l.ID())
	require.True(t, ok)
	assert.Equal(t, geom.XYWH(0, 0, 10, 10), b)

	_, ok = p.Bounds(layer.New(1, 1, 1, 1).ID())
	assert.False(t, ok, "Bounds on a foreign layer")

	p.SetTransform(geom.Translate(20, 30))
	b, _ = p.Bounds(l.ID())
	assert.Equal(t, geom.XYWH(20, 30, 10, 10), b)
	assert.True(t, p.Contains(l.ID(), geom.Pt(25, 35)))
	assert.False(t, p.Contains(l.ID(), geom.Pt(5, 5)))
	assert.True(t, p.Intersects(l.ID(), geom.XYWH(28, 38, 10, 10)))
	assert.False(t, p.Intersects(l.ID(), geom.XYWH(0, 0, 10, 10)))
}

func TestPatchRotatedIntersects(t *testing.T) {
	l := layer.New(0, 1, 100, 100)
	p := NewPatch(l.ID(), 10, 10)
	// Diamond centred on (50, 50): rotate 45° about the tile centre.
	p.SetTransform(geom.Translate(50, 50).Multiply(geom.Rotate(math.Pi / 4)).Multiply(geom.Translate(-5, -5)))

	b, _ := p.Bounds(l.ID())
	// The bounding box corner is outside the diamond itself.
	corner := geom.XYWH(b.MinX, b.MinY, 1, 1)
	assert.True(t, b.Intersects(corner))
	assert.False(t, p.Intersects(l.ID(), corner), "exact test must reject the empty corner")
	assert.True(t, p.Intersects(l.ID(), geom.XYWH(49, 49, 2, 2)))
	assert.True(t, p.Contains(l.ID(), geom.Pt(50, 50)))
}

func TestLabelMeasured(t *testing.T) {
	l := layer.New(0, 1, 100, 100)
	short := NewLabel(l.ID(), "ab", 12)
	long := NewLabel(l.ID(), "abcdefghij", 12)

	bs, ok := short.Bounds(l.ID())
	require.True(t, ok)
	bl, _ := long.Bounds(l.ID())
	assert.Greater(t, bs.Width(), 0.0)
	assert.Greater(t, bl.Width(), bs.Width())
	assert.Greater(t, bs.Height(), 0.0)
	assert.Equal(t, "ab", short.Title())

	before := bs.Width()
	short.SetText("abcd")
	after, _ := short.Bounds(l.ID())
	assert.Greater(t, after.Width(), before)
}

func TestAreaListLayers(t *testing.T) {
	l1 := layer.New(0, 1, 100, 100)
	l2 := layer.New(1, 1, 100, 100)
	a := NewAreaList("neuron")

	tri := []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}
	a.SetArea(l1.ID(), tri)
	a.SetArea(l2.ID(), []geom.Point{{X: 50, Y: 50}, {X: 60, Y: 50}, {X: 60, Y: 60}, {X: 50, Y: 60}})

	assert.Equal(t, []layer.ID{l1.ID(), l2.ID()}, a.LayerIDs())
	assert.True(t, a.Contains(l1.ID(), geom.Pt(2, 2)))
	assert.False(t, a.Contains(l1.ID(), geom.Pt(9, 9)), "outside the hypotenuse")
	assert.True(t, a.Intersects(l2.ID(), geom.XYWH(55, 55, 1, 1)))
	assert.False(t, a.Intersects(l1.ID(), geom.XYWH(8, 8, 1, 1)))

	a.SetArea(l1.ID(), nil)
	assert.Equal(t, []layer.ID{l2.ID()}, a.LayerIDs())
	assert.False(t, PaintsAt(a, l1.ID()))
}

func TestSnapshotRestore(t *testing.T) {
	l := layer.New(0, 1, 100, 100)
	a := NewAreaList("x")
	a.SetArea(l.ID(), []geom.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}})
	state := a.Snapshot()

	a.SetTitle("y")
	a.SetTransform(geom.Translate(10, 10))
	a.ClearArea(l.ID())

	require.True(t, a.Restore(state))
	assert.Equal(t, "x", a.Title())
	assert.True(t, a.Transform().IsIdentity())
	assert.True(t, a.Contains(l.ID(), geom.Pt(3, 1)))
	assert.False(t, a.Restore(42), "foreign state must be rejected")
}

func TestFilters(t *testing.T) {
	l := layer.New(0, 1, 100, 100)
	p := NewPatch(l.ID(), 1, 1)
	p.SetTitle("Écluse")
	lb := NewLabel(l.ID(), "note", 0)

	assert.True(t, OfKind(KindPatch).Match(p))
	assert.False(t, OfKind(KindPatch).Match(lb))
	assert.True(t, Filter(nil).Match(lb))
	assert.True(t, TitleEquals("éCLUSE").Match(p))
	assert.True(t, All(OfKind(KindLabel), TitleEquals("Note")).Match(lb))
	assert.False(t, Not(OfKind(KindLabel)).Match(lb))
}
