package filter

import (
	"errors"

	"seedsift.ai/internal/biomegrid"
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
)

const (
	plains catalog.BiomeID = 1
	desert catalog.BiomeID = 2
	forest catalog.BiomeID = 4
	jungle catalog.BiomeID = 21
)

var errStubGeneration = errors.New("stub: generation failed")

// stubWorld answers from closures and records every sampled region in
// world blocks.
type stubWorld struct {
	opts WorldOptions
	// biome returns the sample at (ix, iy) of a query for region.
	biome   func(region coords.Box, ix, iy int) catalog.BiomeID
	biomeAt func(x, y int64) catalog.BiomeID
	sites   []StructureSite
	fail    bool

	sampled []coords.Box
	located []coords.Box
	warmed  []coords.Box
}

func (w *stubWorld) Options() WorldOptions { return w.opts }

func (w *stubWorld) SampleBiomes(region coords.Box, quarter bool) (*biomegrid.Grid, error) {
	w.sampled = append(w.sampled, region)
	if w.fail {
		return nil, errStubGeneration
	}
	shift := 0
	if quarter {
		shift = coords.Quarter.Shift()
	}
	g := biomegrid.New(int(region.Width>>shift), int(region.Height>>shift))
	for iy := 0; iy < g.Height(); iy++ {
		for ix := 0; ix < g.Width(); ix++ {
			b := plains
			if w.biome != nil {
				b = w.biome(region, ix, iy)
			}
			if err := g.Set(ix, iy, b); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func (w *stubWorld) LocateStructures(region coords.Box, t catalog.StructureType) ([]StructureSite, error) {
	w.located = append(w.located, region)
	if w.fail {
		return nil, errStubGeneration
	}
	var out []StructureSite
	for _, s := range w.sites {
		if region.Contains(s.Pos) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (w *stubWorld) BiomeAt(x, y int64) (catalog.BiomeID, error) {
	if w.fail {
		return 0, errStubGeneration
	}
	if w.biomeAt == nil {
		return plains, nil
	}
	return w.biomeAt(x, y), nil
}

type warmingWorld struct {
	*stubWorld
}

func (w warmingWorld) Warm(region coords.Box) error {
	w.warmed = append(w.warmed, region)
	return nil
}

func site(t catalog.StructureType, x, y int64) StructureSite {
	return StructureSite{Pos: coords.Blocks(x, y), Label: t.Label()}
}
