package oracle

import (
	"errors"
	"fmt"

	"seedsift.ai/internal/biomegrid"
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/filter"
)

var ErrGeneration = errors.New("oracle: generation failed")

// World types understood by the generator.
const (
	WorldDefault     = "default"
	WorldLargeBiomes = "large_biomes"
	WorldFlat        = "flat"
)

func KnownWorldType(t string) bool {
	switch t {
	case WorldDefault, WorldLargeBiomes, WorldFlat:
		return true
	}
	return false
}

type GeneratorConfig struct {
	// BiomeRegionSize is the side of a square of uniform biome, in blocks.
	BiomeRegionSize int64 `yaml:"biome_region_size" validate:"gte=4"`
	// StructureSpacing is the side of the cell holding at most one
	// structure of each type, in blocks.
	StructureSpacing int64 `yaml:"structure_spacing" validate:"gte=16"`
	// MaxSampleArea caps the samples of one biome request.
	MaxSampleArea int64 `yaml:"max_sample_area" validate:"gte=1"`
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BiomeRegionSize:  64,
		StructureSpacing: 512,
		MaxSampleArea:    1 << 20,
	}
}

// Per-type placement odds in permille; strongholds are rare, mineshafts
// common.
var structurePermille = map[catalog.StructureType]uint64{
	catalog.Stronghold: 60,
	catalog.Mineshaft:  900,
	catalog.Village:    700,
}

const defaultStructurePermille = 450

// Generator is a deterministic synthetic world: biomes are hashed per
// region square and structures are hashed per spacing cell. It reuses one
// output buffer, so a returned grid is only valid until the next call.
type Generator struct {
	opts   filter.WorldOptions
	cfg    GeneratorConfig
	land   []catalog.Biome
	buf    []catalog.BiomeID
	region int64
}

func NewGenerator(seed int64, worldType string, cfg GeneratorConfig) (*Generator, error) {
	if !KnownWorldType(worldType) {
		return nil, fmt.Errorf("unknown world type %q", worldType)
	}
	if cfg.BiomeRegionSize <= 0 || cfg.StructureSpacing <= 0 || cfg.MaxSampleArea <= 0 {
		return nil, fmt.Errorf("invalid generator config %+v", cfg)
	}
	region := cfg.BiomeRegionSize
	if worldType == WorldLargeBiomes {
		region *= 4
	}
	return &Generator{
		opts:   filter.WorldOptions{Seed: seed, WorldType: worldType},
		cfg:    cfg,
		land:   catalog.BaseBiomes(),
		region: region,
	}, nil
}

func (g *Generator) Options() filter.WorldOptions { return g.opts }

func (g *Generator) biome(x, z int64) catalog.BiomeID {
	if g.opts.WorldType == WorldFlat {
		return catalog.BiomeID(1)
	}
	h := hash2(g.opts.Seed, floorDiv(x, g.region), floorDiv(z, g.region))
	b := g.land[h%uint64(len(g.land))]
	if b.HasVariant() && (h>>32)%8 == 0 {
		return b.Variant
	}
	return b.ID
}

func (g *Generator) BiomeAt(x, y int64) (catalog.BiomeID, error) {
	return g.biome(x, y), nil
}

func (g *Generator) SampleBiomes(region coords.Box, quarter bool) (*biomegrid.Grid, error) {
	if region.Corner.Res != coords.World || region.Empty() {
		return nil, fmt.Errorf("%w: cannot sample %v", ErrGeneration, region)
	}
	var shift uint
	if quarter {
		shift = uint(coords.Quarter.Shift())
		m := coords.Quarter.Step() - 1
		if region.Corner.X&m != 0 || region.Corner.Y&m != 0 || region.Width&m != 0 || region.Height&m != 0 {
			return nil, fmt.Errorf("%w: %v is not aligned to quarter samples", ErrGeneration, region)
		}
	}
	w, h := region.Width>>shift, region.Height>>shift
	if w*h > g.cfg.MaxSampleArea {
		return nil, fmt.Errorf("%w: %v has %d samples, limit %d", ErrGeneration, region, w*h, g.cfg.MaxSampleArea)
	}
	n := int(w * h)
	if cap(g.buf) < n {
		g.buf = make([]catalog.BiomeID, n)
	}
	data := g.buf[:n]
	for iy := int64(0); iy < h; iy++ {
		row := data[iy*w : (iy+1)*w]
		z := region.Corner.Y + iy<<shift
		for ix := range row {
			row[ix] = g.biome(region.Corner.X+int64(ix)<<shift, z)
		}
	}
	return biomegrid.Borrow(data, int(w), int(h))
}

func (g *Generator) LocateStructures(region coords.Box, t catalog.StructureType) ([]filter.StructureSite, error) {
	if region.Corner.Res != coords.World {
		return nil, fmt.Errorf("%w: cannot search %v", ErrGeneration, region)
	}
	if region.Empty() || t.Label() == "" {
		return nil, nil
	}
	if g.opts.WorldType == WorldFlat && t != catalog.Village && t != catalog.Stronghold {
		return nil, nil
	}
	permille, ok := structurePermille[t]
	if !ok {
		permille = defaultStructurePermille
	}
	spawn := t.SpawnBiomes()
	s := g.cfg.StructureSpacing
	salt := g.opts.Seed ^ int64(mix64(uint64(t)))

	var out []filter.StructureSite
	se := region.SE()
	for cz := floorDiv(region.Corner.Y, s); cz <= floorDiv(se.Y-1, s); cz++ {
		for cx := floorDiv(region.Corner.X, s); cx <= floorDiv(se.X-1, s); cx++ {
			h := hash2(salt, cx, cz)
			if h%1000 >= permille {
				continue
			}
			pos := coords.Blocks(cx*s+int64((h>>10)%uint64(s)), cz*s+int64((h>>30)%uint64(s)))
			if !region.Contains(pos) || !allowed(spawn, g.biome(pos.X, pos.Y)) {
				continue
			}
			out = append(out, filter.StructureSite{Pos: pos, Label: t.Label()})
		}
	}
	return out, nil
}

func allowed(spawn []catalog.BiomeID, b catalog.BiomeID) bool {
	if len(spawn) == 0 {
		return true
	}
	for _, s := range spawn {
		if s == b {
			return true
		}
	}
	return false
}
