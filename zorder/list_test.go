package zorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/layer"
)

type change struct{ from, to int }

func fill(t *testing.T, n int) (*List, []annotation.Object, *[]change) {
	t.Helper()
	var changes []change
	l := New(func(_ annotation.Object, from, to int) {
		changes = append(changes, change{from, to})
	})
	lid := layer.New(0, 1, 10, 10).ID()
	objs := make([]annotation.Object, n)
	for i := range objs {
		objs[i] = annotation.NewPatch(lid, 1, 1)
		l.Append(objs[i])
	}
	return l, objs, &changes
}

// assertBijection checks IndexOf against the slice contents.
func assertBijection(t *testing.T, l *List) {
	t.Helper()
	items := l.Items()
	for i, o := range items {
		if got := l.IndexOf(o.ID()); got != i {
			t.Errorf("IndexOf(items[%d]) = %d, want %d", i, got, i)
		}
		if got := l.ReverseIndexOf(o.ID()); got != len(items)-1-i {
			t.Errorf("ReverseIndexOf(items[%d]) = %d, want %d", i, got, len(items)-1-i)
		}
	}
}

func TestMoves(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		move     func(*List, annotation.Object) (int, int, bool)
		wantFrom int
		wantTo   int
		wantPos  int
		moved    bool
	}{
		{"up", 1, (*List).MoveUp, 1, 2, 2, true},
		{"down", 3, (*List).MoveDown, 2, 3, 2, true},
		{"top", 1, (*List).MoveTop, 1, 4, 4, true},
		{"bottom", 3, (*List).MoveBottom, 0, 3, 0, true},
		{"up at top", 4, (*List).MoveUp, 4, 4, 4, false},
		{"bottom at bottom", 0, (*List).MoveBottom, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, objs, changes := fill(t, 5)
			o := objs[tt.start]
			// Prime the lookup table so moves patch it in place.
			require.Equal(t, tt.start, l.IndexOf(o.ID()))

			from, to, moved := tt.move(l, o)
			if from != tt.wantFrom || to != tt.wantTo || moved != tt.moved {
				t.Errorf("move = (%d, %d, %v), want (%d, %d, %v)", from, to, moved, tt.wantFrom, tt.wantTo, tt.moved)
			}
			assert.Equal(t, tt.wantPos, l.IndexOf(o.ID()))
			assertBijection(t, l)

			if tt.moved {
				assert.Equal(t, []change{{tt.wantFrom, tt.wantTo}}, *changes)
			} else {
				assert.Empty(t, *changes)
			}
		})
	}
}

func TestMoveTopKeepsRelativeOrder(t *testing.T) {
	l, objs, _ := fill(t, 4)
	l.MoveTop(objs[0])
	assert.Equal(t, []annotation.Object{objs[1], objs[2], objs[3], objs[0]}, l.Items())
	assert.True(t, l.IsTop(objs[0].ID()))
	assert.True(t, l.IsBottom(objs[1].ID()))
}

func TestInsertRemove(t *testing.T) {
	l, objs, changes := fill(t, 3)
	extra := annotation.NewPatch(layer.New(0, 1, 1, 1).ID(), 1, 1)

	i := l.Insert(extra, 1)
	assert.Equal(t, 1, i)
	assert.Equal(t, []change{{1, 3}}, *changes)
	assertBijection(t, l)

	from, to, ok := l.Remove(objs[0])
	require.True(t, ok)
	assert.Equal(t, 0, from)
	assert.Equal(t, 2, to)
	assertBijection(t, l)
	assert.Equal(t, -1, l.IndexOf(objs[0].ID()))
	assert.False(t, l.Contains(objs[0].ID()))

	_, _, ok = l.Remove(objs[0])
	assert.False(t, ok)

	// Removing the top shifts nothing.
	*changes = nil
	_, _, ok = l.Remove(objs[2])
	require.True(t, ok)
	assert.Empty(t, *changes)
}

func TestSetOrder(t *testing.T) {
	l, objs, changes := fill(t, 5)
	perm := []annotation.Object{objs[0], objs[3], objs[2], objs[1], objs[4]}

	from, to, changed := l.SetOrder(perm)
	require.True(t, changed)
	assert.Equal(t, 1, from)
	assert.Equal(t, 3, to)
	assert.Equal(t, []change{{1, 3}}, *changes)
	assertBijection(t, l)

	_, _, changed = l.SetOrder(perm)
	assert.False(t, changed)
}

func TestSlice(t *testing.T) {
	l, objs, _ := fill(t, 4)
	assert.Equal(t, objs[1:3], l.Slice(1, 2))
	assert.Equal(t, objs[2:], l.Slice(2, 99))
	assert.Nil(t, l.Slice(3, 1))
}

func TestBijectionUnderRandomMoves(t *testing.T) {
	l, objs, _ := fill(t, 20)
	ops := []func(*List, annotation.Object) (int, int, bool){
		(*List).MoveUp, (*List).MoveDown, (*List).MoveTop, (*List).MoveBottom,
	}
	for i := range 200 {
		ops[i%len(ops)](l, objs[(i*7)%len(objs)])
		if i%50 == 0 {
			assertBijection(t, l)
		}
	}
	assertBijection(t, l)
	assert.Equal(t, 20, l.Len())
}

func BenchmarkIndexOf(b *testing.B) {
	l := New(nil)
	lid := layer.New(0, 1, 1, 1).ID()
	var last annotation.Object
	for range 10000 {
		last = annotation.NewPatch(lid, 1, 1)
		l.Append(last)
	}
	for b.Loop() {
		_ = l.IndexOf(last.ID())
	}
}
