package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seedsift.ai/internal/coords"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Step() != coords.Fragment || cfg.Tile() != coords.Fragment {
		t.Fatalf("step/tile: got %s/%s", cfg.Step(), cfg.Tile())
	}
	if cfg.HitLimit() != 1 || cfg.Continuous {
		t.Fatalf("one-shot default expected: %+v", cfg)
	}
	if cfg.Generator.BiomeRegionSize != 64 {
		t.Fatalf("generator defaults not applied: %+v", cfg.Generator)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
world_type: Large_Biomes
grid_step: chunk
workers: 8
continuous: true
max_hits: 20
random_seeds: true
rng_seed: 42
generator:
  biome_region_size: 32
observer_addr: 127.0.0.1:9100
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorldType != "large_biomes" {
		t.Fatalf("world_type not normalized: %q", cfg.WorldType)
	}
	if cfg.Step() != coords.Chunk {
		t.Fatalf("step: got %s", cfg.Step())
	}
	// cache_tile was not set in the file, so the default stays.
	if cfg.Tile() != coords.Fragment {
		t.Fatalf("tile: got %s", cfg.Tile())
	}
	if cfg.Workers != 8 || cfg.MaxHits != 20 || !cfg.RandomSeeds || cfg.RNGSeed != 42 {
		t.Fatalf("overrides lost: %+v", cfg)
	}
	if cfg.Generator.BiomeRegionSize != 32 || cfg.Generator.StructureSpacing != 512 {
		t.Fatalf("generator merge: %+v", cfg.Generator)
	}
}

func TestLoad_OneShotLimitsToSingleHit(t *testing.T) {
	cfg, err := Load(writeConfig(t, "max_hits: 50\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HitLimit() != 1 {
		t.Fatalf("hit limit: got %d want 1", cfg.HitLimit())
	}
}

func TestLoad_ContinuousOverrideKeepsFileMaxHits(t *testing.T) {
	cfg, err := Load(writeConfig(t, "max_hits: 10\ncontinuous: false\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxHits != 10 {
		t.Fatalf("max_hits after load: got %d want 10", cfg.MaxHits)
	}
	// As cmd/searcher does for -continuous.
	cfg.Continuous = true
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.MaxHits != 10 || cfg.HitLimit() != 10 {
		t.Fatalf("max_hits: got %d (limit %d) want 10", cfg.MaxHits, cfg.HitLimit())
	}
}

func TestLoad_EmptyTileFollowsStep(t *testing.T) {
	cfg, err := Load(writeConfig(t, "grid_step: chunk\ncache_tile: \"\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tile() != coords.Chunk {
		t.Fatalf("tile: got %s want chunk", cfg.Tile())
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"world type", "world_type: amplified\n", "WorldType"},
		{"step name", "grid_step: galaxy\n", "grid_step"},
		{"step too fine", "grid_step: world\n", "finer than a quarter"},
		{"tile below step", "grid_step: fragment\ncache_tile: chunk\n", "smaller than grid_step"},
		{"workers", "workers: 0\n", "Workers"},
		{"observer addr", "observer_addr: not-an-addr\n", "ObserverAddr"},
		{"generator", "generator:\n  structure_spacing: 4\n", "StructureSpacing"},
		{"yaml", "workers: [\n", "search.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_TileIgnoredWithoutCache(t *testing.T) {
	if _, err := Load(writeConfig(t, "cache_entries: 0\ncache_tile: chunk\n")); err != nil {
		t.Fatalf("cache disabled should not check tile: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
