package strata

// SceneOption configures a Scene during creation.
//
// Example:
//
//	s := strata.NewScene(4096, 4096,
//	    strata.WithHistoryDepth(64),
//	    strata.WithMaxPerCell(32),
//	)
type SceneOption func(*sceneOptions)

// sceneOptions holds optional configuration for Scene creation.
type sceneOptions struct {
	cfg Config
}

// defaultOptions returns the default scene options.
func defaultOptions() sceneOptions {
	return sceneOptions{cfg: DefaultConfig()}
}

// WithConfig replaces every threshold, typically with one from LoadConfig.
// Options after it still apply.
func WithConfig(cfg Config) SceneOption {
	return func(o *sceneOptions) {
		o.cfg = cfg
	}
}

// WithHistoryDepth bounds the number of archived edit steps.
// Values below 1 are ignored.
func WithHistoryDepth(n int) SceneOption {
	return func(o *sceneOptions) {
		if n >= 1 {
			o.cfg.HistoryDepth = n
		}
	}
}

// WithMaxPerCell sets the bucket occupancy above which a bucket subdivides.
// Values below 1 are ignored.
func WithMaxPerCell(n int) SceneOption {
	return func(o *sceneOptions) {
		if n >= 1 {
			o.cfg.Index.MaxPerCell = n
		}
	}
}

// WithMinBucketSide sets the smallest bucket side. Zero selects the
// median-size heuristic.
func WithMinBucketSide(side float64) SceneOption {
	return func(o *sceneOptions) {
		if side >= 0 {
			o.cfg.Index.MinBucketSide = side
		}
	}
}

// WithWorkers sets the size of the index rebuild pool; 0 means GOMAXPROCS.
func WithWorkers(n int) SceneOption {
	return func(o *sceneOptions) {
		if n >= 0 {
			o.cfg.Workers = n
		}
	}
}

// WithRoughCacheSize sets the per-shard capacity of the rough query cache.
// A negative value disables caching.
func WithRoughCacheSize(n int) SceneOption {
	return func(o *sceneOptions) {
		o.cfg.RoughCacheSize = n
	}
}
