// Package strata indexes annotation objects spread across a stack of 2D
// layers and keeps a bounded undo/redo history of the edits made to them.
//
// # Overview
//
// A Scene owns a layer stack, one spatial index per layer, the paint order of
// every object and an edit history. Objects are either layer-local (patches,
// labels) or cross-layer (area lists that carry a region on several layers).
// Layer-local objects are ordered per layer; cross-layer objects share one
// scene-wide order and paint above the layer-local ones.
//
// # Quick Start
//
//	s := strata.NewScene(4096, 4096)
//	l := s.AddLayer(0, 1)
//
//	p := annotation.NewPatch(l.ID(), 512, 512)
//	s.Add(p)
//
//	hits := s.QueryPoint(l.ID(), geom.Pt(100, 100), spatial.Query{VisibleOnly: true})
//
// # Editing
//
// Every change that affects geometry, visibility or order goes through a
// Scene method so the indexes follow. Edits become undoable by wrapping them
// in Scene.Edit, which records the state before and after the change:
//
//	_ = s.Edit(strata.TransformEdit(p), func() error {
//	    return s.SetTransform(p, geom.Translate(10, 0))
//	})
//	_ = s.Undo()
//
// # Concurrency
//
// Queries may run from any number of goroutines while one owner mutates the
// scene. Index rebuilds construct replacement trees off to the side and swap
// them in atomically; RebuildIndexes spreads the work over a worker pool with
// one task per layer.
//
// # Logging
//
// The package is silent by default. Call SetLogger to receive degraded-path
// warnings (linear-scan fallback, self-healing rebuilds) and debug
// diagnostics.
package strata
