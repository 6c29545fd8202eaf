package strata

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/strata/history"
	"github.com/gogpu/strata/internal/querycache"
	"github.com/gogpu/strata/spatial"
)

// Config holds the tunable thresholds of a Scene.
//
// A config file looks like:
//
//	history_depth = 64
//	workers = 8
//	rough_cache_size = 128
//
//	[index]
//	max_per_cell = 32
//	min_bucket_side = 256
type Config struct {
	// HistoryDepth bounds the number of archived edit steps.
	HistoryDepth int `toml:"history_depth"`

	Index IndexConfig `toml:"index"`

	// Workers is the size of the rebuild pool; 0 means GOMAXPROCS.
	Workers int `toml:"workers"`

	// RoughCacheSize is the per-shard capacity of the rough query cache;
	// a negative value disables the cache.
	RoughCacheSize int `toml:"rough_cache_size"`
}

// IndexConfig holds bucket subdivision thresholds.
type IndexConfig struct {
	// MaxPerCell is the leaf occupancy above which a bucket subdivides.
	MaxPerCell int `toml:"max_per_cell"`

	// MinBucketSide is the smallest bucket side; 0 derives it from the
	// median object size whenever an index is rebuilt.
	MinBucketSide float64 `toml:"min_bucket_side"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		HistoryDepth:   history.DefaultDepth,
		Index:          IndexConfig{MaxPerCell: spatial.DefaultConfig().MaxPerCell},
		RoughCacheSize: querycache.DefaultCapacity,
	}
}

// ParseConfig decodes TOML data over the defaults. Unknown keys are an error.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("strata: parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("strata: unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("strata: load config: %w", err)
	}
	return ParseConfig(string(data))
}

// Validate reports out-of-range values.
func (c Config) Validate() error {
	var errs []error
	if c.HistoryDepth < 1 {
		errs = append(errs, fmt.Errorf("history_depth must be at least 1, got %d", c.HistoryDepth))
	}
	if c.Index.MaxPerCell < 1 {
		errs = append(errs, fmt.Errorf("index.max_per_cell must be at least 1, got %d", c.Index.MaxPerCell))
	}
	if c.Index.MinBucketSide < 0 {
		errs = append(errs, fmt.Errorf("index.min_bucket_side must not be negative, got %g", c.Index.MinBucketSide))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("strata: invalid config: %w", err)
	}
	return nil
}

func (c Config) indexConfig() spatial.Config {
	return spatial.Config{MaxPerCell: c.Index.MaxPerCell, MinSide: c.Index.MinBucketSide}
}
