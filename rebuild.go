package strata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/internal/parallel"
	"github.com/gogpu/strata/layer"
	"github.com/gogpu/strata/spatial"
)

// RebuildIndexes builds a fresh index for each given layer, or for every
// layer when none are given. Layers are built in parallel, one task per
// layer, and published together in a single swap. If ctx is cancelled or a
// task fails, nothing is published and the previous indexes stay in place.
func (s *Scene) RebuildIndexes(ctx context.Context, ids ...layer.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuild(ctx, ids)
}

func (s *Scene) rebuild(ctx context.Context, ids []layer.ID) error {
	if len(ids) == 0 {
		for _, l := range s.layers.Layers() {
			ids = append(ids, l.ID())
		}
	}
	layers := make([]*layer.Layer, 0, len(ids))
	for _, id := range ids {
		l, ok := s.layers.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLayer, id)
		}
		layers = append(layers, l)
	}

	start := time.Now()
	built := make([]*spatial.Index, len(layers))
	tasks := make([]parallel.Task, len(layers))
	for i, l := range layers {
		objs := s.objectsAt(l.ID())
		tasks[i] = func(ctx context.Context) error {
			ix, err := spatial.Build(ctx, l.ID(), l.Bounds(), s.ordering(l.ID()), s.cfg.indexConfig(), objs)
			if err != nil {
				return err
			}
			built[i] = ix
			return nil
		}
	}
	if err := s.pool.Run(ctx, tasks); err != nil {
		Logger().Warn("strata: index rebuild abandoned", "layers", len(layers), "err", err)
		return fmt.Errorf("strata: rebuild indexes: %w", err)
	}

	s.swapIndexes(func(m indexMap) {
		for i, l := range layers {
			m[l.ID()] = built[i]
		}
	})
	s.invalidate(ids...)
	Logger().Info("strata: indexes rebuilt", "layers", len(layers), "elapsed", time.Since(start))
	return nil
}

// Load bulk-adds objs and rebuilds the indexes of every touched layer.
func (s *Scene) Load(ctx context.Context, objs []annotation.Object) error {
	ids, err := s.AddAll(objs)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.RebuildIndexes(ctx, ids...)
}

// Verify checks the bucket membership of every index. Layers found
// inconsistent are logged and rebuilt; their ids are returned. The error is
// non-nil only when the rebuild itself fails.
func (s *Scene) Verify(ctx context.Context) ([]layer.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var broken []layer.ID
	for id, ix := range s.indexMap() {
		if err := ix.Verify(); err != nil {
			Logger().Warn("strata: inconsistent index, rebuilding", "layer", id, "err", err)
			broken = append(broken, id)
		}
	}
	if len(broken) == 0 {
		return nil, nil
	}
	if err := s.rebuild(ctx, broken); err != nil {
		return broken, errors.Join(ErrInconsistentMembership, err)
	}
	return broken, nil
}
