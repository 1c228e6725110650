package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/oracle"
)

// Config is the contents of search.yaml.
type Config struct {
	WorldType string `yaml:"world_type" validate:"required,oneof=default large_biomes flat"`
	// GridStep is the cell size criteria are sampled in, as a resolution
	// name (quarter, chunk, fragment, ...).
	GridStep string `yaml:"grid_step" validate:"required"`

	Workers    int   `yaml:"workers" validate:"gte=1,lte=256"`
	MaxHits    int   `yaml:"max_hits" validate:"gte=0"`
	Continuous bool  `yaml:"continuous"`
	StartSeed  int64 `yaml:"start_seed"`
	// RandomSeeds draws seeds from a generator seeded with RNGSeed instead
	// of counting up from StartSeed.
	RandomSeeds        bool  `yaml:"random_seeds"`
	RNGSeed            int64 `yaml:"rng_seed"`
	MaxSeeds           int64 `yaml:"max_seeds" validate:"gte=0"`
	MaxRegionsPerWorld int   `yaml:"max_regions_per_world" validate:"gte=0"`

	CacheTile    string `yaml:"cache_tile"`
	CacheEntries int64  `yaml:"cache_entries" validate:"gte=0"`

	Generator oracle.GeneratorConfig `yaml:"generator"`

	DataDir        string `yaml:"data_dir" validate:"required"`
	DisableDB      bool   `yaml:"disable_db"`
	RecordRequests bool   `yaml:"record_requests"`
	ObserverAddr   string `yaml:"observer_addr" validate:"omitempty,hostname_port"`
	MetricsAddr    string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	ProgressEvery  int    `yaml:"progress_every" validate:"gte=0"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("search.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("search.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		WorldType:     oracle.WorldDefault,
		GridStep:      "fragment",
		Workers:       4,
		MaxHits:       1,
		CacheTile:     "fragment",
		CacheEntries:  256,
		Generator:     oracle.DefaultGeneratorConfig(),
		DataDir:       "./data",
		ProgressEvery: 100,
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.WorldType = strings.ToLower(strings.TrimSpace(c.WorldType))
	c.GridStep = strings.ToLower(strings.TrimSpace(c.GridStep))
	c.CacheTile = strings.ToLower(strings.TrimSpace(c.CacheTile))
	if c.CacheTile == "" {
		c.CacheTile = c.GridStep
	}
}

// HitLimit is the number of hits the search stops at. A one-shot search
// stops at the first hit whatever MaxHits says.
func (c Config) HitLimit() int {
	if !c.Continuous {
		return 1
	}
	return c.MaxHits
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	step, err := coords.ParseResolution(c.GridStep)
	if err != nil {
		return fmt.Errorf("grid_step: %w", err)
	}
	if step < coords.Quarter {
		return fmt.Errorf("grid_step %s is finer than a quarter sample", step)
	}
	if c.CacheEntries > 0 {
		tile, err := coords.ParseResolution(c.CacheTile)
		if err != nil {
			return fmt.Errorf("cache_tile: %w", err)
		}
		if tile < step {
			return fmt.Errorf("cache_tile %s is smaller than grid_step %s", tile, step)
		}
	}
	return nil
}

// Step is the parsed grid step. Only valid after Validate.
func (c Config) Step() coords.Resolution {
	r, _ := coords.ParseResolution(c.GridStep)
	return r
}

// Tile is the parsed cache tile resolution. Only valid after Validate.
func (c Config) Tile() coords.Resolution {
	r, _ := coords.ParseResolution(c.CacheTile)
	return r
}
