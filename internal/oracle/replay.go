package oracle

import (
	"errors"
	"fmt"

	"seedsift.ai/internal/biomegrid"
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/filter"
	"seedsift.ai/internal/persistence/fixture"
)

var ErrNotRecorded = errors.New("oracle: request not in fixture")

type sampleKey struct {
	box     coords.Box
	quarter bool
}

type structureKey struct {
	box coords.Box
	t   catalog.StructureType
}

// Replay answers exactly the requests captured in a fixture.
type Replay struct {
	opts       filter.WorldOptions
	samples    map[sampleKey]*biomegrid.Grid
	structures map[structureKey][]filter.StructureSite
	points     map[coords.Coordinates]catalog.BiomeID
}

func NewReplay(fx fixture.Fixture) (*Replay, error) {
	r := &Replay{
		opts:       filter.WorldOptions{Seed: fx.Header.Seed, WorldType: fx.Header.WorldType},
		samples:    make(map[sampleKey]*biomegrid.Grid, len(fx.Samples)),
		structures: make(map[structureKey][]filter.StructureSite, len(fx.Structures)),
		points:     make(map[coords.Coordinates]catalog.BiomeID, len(fx.Points)),
	}
	for i, s := range fx.Samples {
		w, h := s.Width, s.Height
		if s.Quarter {
			w >>= coords.Quarter.Shift()
			h >>= coords.Quarter.Shift()
		}
		data := make([]catalog.BiomeID, len(s.Biomes))
		for j, b := range s.Biomes {
			data[j] = catalog.BiomeID(b)
		}
		g, err := biomegrid.FromOwned(data, int(w), int(h))
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		r.samples[sampleKey{box: coords.NewBox(s.X, s.Z, s.Width, s.Height), quarter: s.Quarter}] = g
	}
	for _, s := range fx.Structures {
		key := structureKey{box: coords.NewBox(s.X, s.Z, s.Width, s.Height), t: catalog.StructureType(s.Type)}
		sites := make([]filter.StructureSite, 0, len(s.Sites))
		for _, site := range s.Sites {
			sites = append(sites, filter.StructureSite{Pos: coords.Blocks(site.X, site.Z), Label: site.Label})
		}
		r.structures[key] = sites
	}
	for _, p := range fx.Points {
		r.points[coords.Blocks(p.X, p.Z)] = catalog.BiomeID(p.Biome)
	}
	return r, nil
}

func (r *Replay) Options() filter.WorldOptions { return r.opts }

func (r *Replay) SampleBiomes(region coords.Box, quarter bool) (*biomegrid.Grid, error) {
	g, ok := r.samples[sampleKey{box: region, quarter: quarter}]
	if !ok {
		return nil, fmt.Errorf("%w: biomes %v", ErrNotRecorded, region)
	}
	return g.View(0, 0, g.Width(), g.Height())
}

func (r *Replay) LocateStructures(region coords.Box, t catalog.StructureType) ([]filter.StructureSite, error) {
	sites, ok := r.structures[structureKey{box: region, t: t}]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %v", ErrNotRecorded, t, region)
	}
	return append([]filter.StructureSite(nil), sites...), nil
}

func (r *Replay) BiomeAt(x, y int64) (catalog.BiomeID, error) {
	b, ok := r.points[coords.Blocks(x, y)]
	if !ok {
		return 0, fmt.Errorf("%w: biome at [%d, %d]", ErrNotRecorded, x, y)
	}
	return b, nil
}
