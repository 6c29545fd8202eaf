package annotation

import (
	"bytes"
	"sync"
	"unicode/utf8"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
)

// DefaultLabelSize is the font size used by NewLabel when size <= 0.
const DefaultLabelSize = 12

// labelFont is Go Regular parsed once. font.Font is safe for concurrent
// use; font.Face is not, so each measurement wraps it in a fresh face.
var labelFont = sync.OnceValues(func() (*font.Font, error) {
	face, err := font.ParseTTF(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, err
	}
	return face.Font, nil
})

// shapers pools HarfBuzz shapers, which keep per-call buffers.
var shapers = sync.Pool{New: func() any { return &shaping.HarfbuzzShaper{} }}

// measureText returns the shaped advance width and line height of s at size
// pixels.
func measureText(s string, size float64) (width, height float64) {
	f, err := labelFont()
	if err != nil {
		// Rough monospace estimate when the embedded font is unusable.
		return 0.6 * size * float64(utf8.RuneCountInString(s)), 1.2 * size
	}
	runes := []rune(s)
	in := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      font.NewFace(f),
		Size:      fixed.Int26_6(size * 64),
		Script:    language.Latin,
		Language:  language.NewLanguage("en"),
	}
	sh := shapers.Get().(*shaping.HarfbuzzShaper)
	out := sh.Shape(in)
	shapers.Put(sh)
	return fixedToFloat64(out.Advance), fixedToFloat64(out.LineBounds.Ascent - out.LineBounds.Descent)
}

func fixedToFloat64(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// Label is a single-layer text annotation. Its extent is the measured box
// of the text set in Go Regular at the label size.
type Label struct {
	base
	layer         layer.ID
	text          string
	size          float64
	width, height float64
}

type labelState struct {
	baseState
	text string
	size float64
}

// NewLabel creates a visible label on layer l. The title defaults to the text.
func NewLabel(l layer.ID, text string, size float64) *Label {
	if size <= 0 {
		size = DefaultLabelSize
	}
	lb := &Label{layer: l}
	lb.init(text)
	lb.setText(text, size)
	return lb
}

// Kind returns KindLabel.
func (lb *Label) Kind() Kind { return KindLabel }

// LayerIDs returns the single layer the label lives in.
func (lb *Label) LayerIDs() []layer.ID { return []layer.ID{lb.layer} }

// Text returns the label text.
func (lb *Label) Text() string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.text
}

// FontSize returns the label font size in pixels.
func (lb *Label) FontSize() float64 {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.size
}

// SetText changes the text and remeasures the label. This changes geometry,
// so callers go through the scene's Reshape.
func (lb *Label) SetText(text string) {
	lb.setText(text, lb.FontSize())
}

func (lb *Label) setText(text string, size float64) {
	w, h := measureText(text, size)
	lb.mu.Lock()
	lb.text, lb.size, lb.width, lb.height = text, size, w, h
	lb.mu.Unlock()
}

func (lb *Label) local() geom.Rect {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return geom.XYWH(0, 0, lb.width, lb.height)
}

// Bounds returns the transformed text box on the label's layer.
func (lb *Label) Bounds(l layer.ID) (geom.Rect, bool) {
	if l != lb.layer {
		return geom.Rect{}, false
	}
	return lb.Transform().TransformRect(lb.local()), true
}

// Contains reports whether p falls in the text box.
func (lb *Label) Contains(l layer.ID, p geom.Point) bool {
	return l == lb.layer && quadContains(lb.local(), lb.Transform(), p)
}

// Intersects reports whether r overlaps the text box.
func (lb *Label) Intersects(l layer.ID, r geom.Rect) bool {
	return l == lb.layer && quadIntersects(lb.local(), lb.Transform(), r)
}

// Snapshot captures tags, placement and text.
func (lb *Label) Snapshot() any {
	bs := lb.snapshotBase()
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return labelState{baseState: bs, text: lb.text, size: lb.size}
}

// Restore applies a state produced by Snapshot.
func (lb *Label) Restore(state any) bool {
	s, ok := state.(labelState)
	if !ok {
		return false
	}
	lb.restoreBase(s.baseState)
	lb.setText(s.text, s.size)
	return true
}
