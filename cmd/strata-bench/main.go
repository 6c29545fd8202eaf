// Command strata-bench loads a synthetic annotation scene, runs concurrent
// spatial queries against it while an editor goroutine applies undoable
// edits, and prints a summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/strata"
	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
	"github.com/gogpu/strata/spatial"
)

const planeSize = 8192

func main() {
	var (
		config  = flag.String("config", "", "TOML config file")
		layers  = flag.Int("layers", 8, "number of layers")
		objects = flag.Int("objects", 20000, "patches per layer")
		readers = flag.Int("readers", 4, "concurrent query goroutines")
		queries = flag.Int("queries", 10000, "queries per reader")
		edits   = flag.Int("edits", 500, "undoable edits")
		seed    = flag.Uint64("seed", 1, "random seed")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	strata.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := strata.DefaultConfig()
	if *config != "" {
		var err error
		if cfg, err = strata.LoadConfig(*config); err != nil {
			log.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := strata.NewScene(planeSize, planeSize, strata.WithConfig(cfg))
	defer s.Close()

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	start := time.Now()
	patches, err := load(ctx, s, rng, *layers, *objects)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	fmt.Printf("loaded %d objects on %d layers in %v\n", s.Len(), *layers, time.Since(start))

	var hits atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	start = time.Now()
	for r := range *readers {
		g.Go(func() error {
			qr := rand.New(rand.NewPCG(*seed+uint64(r)+1, 0))
			ls := s.Layers()
			for range *queries {
				if err := gctx.Err(); err != nil {
					return err
				}
				l := ls[qr.IntN(len(ls))]
				p := geom.Pt(qr.Float64()*planeSize, qr.Float64()*planeSize)
				hits.Add(int64(len(s.QueryPoint(l.ID(), p, spatial.Query{VisibleOnly: true}))))
				area := geom.XYWH(p.X, p.Y, 256, 256)
				hits.Add(int64(len(s.QueryRectRough(l.ID(), area, true))))
			}
			return nil
		})
	}
	g.Go(func() error {
		return edit(gctx, s, rng, patches, *edits)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("run: %v", err)
	}
	elapsed := time.Since(start)

	broken, err := s.Verify(ctx)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}

	st := s.RoughCacheStats()
	total := *readers * *queries * 2
	fmt.Printf("%d queries, %d hits in %v (%.0f queries/s)\n",
		total, hits.Load(), elapsed, float64(total)/elapsed.Seconds())
	fmt.Printf("rough cache: %d hits, %d misses, %.1f%% hit rate\n", st.Hits, st.Misses, st.HitRate*100)
	fmt.Printf("history: %d steps, %d redo; %d layers rebuilt by verify\n",
		s.History().Len(), s.History().RedoLen(), len(broken))
	for _, l := range s.Layers() {
		if ix, ok := s.Index(l.ID()); ok {
			is := ix.Stats()
			fmt.Printf("  %s: %d objects, %d leaves, depth %d, %d spilled, min side %.0f\n",
				l, is.Objects, is.Leaves, is.Depth, is.Spilled, is.MinSide)
		}
	}
}

// load bulk-adds random patches, a label per layer and one area list
// spanning every layer.
func load(ctx context.Context, s *strata.Scene, rng *rand.Rand, layers, perLayer int) ([]*annotation.Patch, error) {
	var objs []annotation.Object
	var patches []*annotation.Patch
	area := annotation.NewAreaList("region")
	for z := range layers {
		l := s.AddLayer(float64(z), 1)
		for range perLayer {
			p := randomPatch(rng, l)
			patches = append(patches, p)
			objs = append(objs, p)
		}
		lb := annotation.NewLabel(l.ID(), fmt.Sprintf("section %d", z), 48)
		lb.SetTransform(geom.Translate(rng.Float64()*planeSize, rng.Float64()*planeSize))
		objs = append(objs, lb)

		c := rng.Float64() * planeSize
		area.SetArea(l.ID(), []geom.Point{geom.Pt(c, c), geom.Pt(c+400, c), geom.Pt(c+200, c+400)})
	}
	objs = append(objs, area)
	return patches, s.Load(ctx, objs)
}

func randomPatch(rng *rand.Rand, l *layer.Layer) *annotation.Patch {
	w, h := 64+rng.Float64()*448, 64+rng.Float64()*448
	p := annotation.NewPatch(l.ID(), w, h)
	p.SetTransform(geom.Translate(rng.Float64()*(planeSize-w), rng.Float64()*(planeSize-h)))
	return p
}

// edit moves random patches, undoing and redoing every few edits.
func edit(ctx context.Context, s *strata.Scene, rng *rand.Rand, patches []*annotation.Patch, n int) error {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := patches[rng.IntN(len(patches))]
		dx, dy := rng.Float64()*200-100, rng.Float64()*200-100
		err := s.Edit(strata.TransformEdit(p), func() error {
			return s.SetTransform(p, geom.Translate(dx, dy).Multiply(p.Transform()))
		})
		if err != nil {
			return fmt.Errorf("edit %d: %w", i, err)
		}
		switch i % 10 {
		case 7:
			if err := s.Undo(); err != nil {
				return fmt.Errorf("undo: %w", err)
			}
		case 8:
			if err := s.Redo(); err != nil {
				return fmt.Errorf("redo: %w", err)
			}
		}
	}
	return nil
}
