package filter

import (
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
)

type biomeResult struct {
	c       *BiomeCriterion
	sched   scheduler
	foundAt coords.Coordinates
}

func newBiomeResult(c *BiomeCriterion) *biomeResult {
	return &biomeResult{c: c, sched: newScheduler(c.area, c.step, c.shortCircuit)}
}

func (r *biomeResult) matched(*Results) TriState { return r.sched.matched() }

func (r *biomeResult) nextRegion(*Results) (RegionInfo, bool) { return r.sched.next() }

func (r *biomeResult) update(rs *Results, w World, offset coords.Coordinates, box coords.Box) {
	if !r.sched.take(box) {
		return
	}
	grid, err := w.SampleBiomes(box.MoveBox(offset), true)
	if err != nil {
		rs.generationFailed(r.c, box, err)
		r.sched.settle()
		return
	}
	center := r.c.area.Center()
	shift := coords.Quarter.Shift()
	accept := func(x, y int, b catalog.BiomeID) (coords.Coordinates, bool) {
		if b != r.c.biome {
			return coords.Coordinates{}, false
		}
		local := box.Corner.Offset(int64(x)<<shift, int64(y)<<shift)
		if r.c.checkBounds && !r.c.area.Contains(local) {
			return coords.Coordinates{}, false
		}
		return local, true
	}

	if r.c.shortCircuit {
		var hit coords.Coordinates
		if _, _, ok := grid.FindFirst(func(x, y int, b catalog.BiomeID) bool {
			local, ok := accept(x, y, b)
			if ok {
				hit = local
			}
			return ok
		}); ok {
			r.record(hit, offset, hit.Distance(center))
		}
	} else {
		grid.All(func(x, y int, b catalog.BiomeID) bool {
			if local, ok := accept(x, y, b); ok {
				if d := local.Distance(center); !r.sched.found || d < r.sched.best {
					r.record(local, offset, d)
				}
			}
			return true
		})
	}
	r.sched.settle()
}

func (r *biomeResult) record(local, offset coords.Coordinates, dist float64) {
	r.foundAt = local.Add(offset)
	r.sched.hit(dist)
}

func (r *biomeResult) clone() result {
	out := *r
	out.sched = r.sched.clone()
	return &out
}

func (r *biomeResult) addTo(_ *Results, wr *WorldFilterResult, goal string) error {
	item := wr.ItemFor(r.foundAt)
	if err := item.SetBiome(r.c.biome); err != nil {
		return err
	}
	item.tag(goal)
	return nil
}

type structureResult struct {
	c       *StructureCriterion
	sched   scheduler
	foundAt coords.Coordinates
	biome   catalog.BiomeID
	// hasBiome is false when the structure was accepted without a biome
	// lookup.
	hasBiome bool
}

func newStructureResult(c *StructureCriterion) *structureResult {
	return &structureResult{c: c, sched: newScheduler(c.area, c.step, c.shortCircuit)}
}

func (r *structureResult) matched(*Results) TriState { return r.sched.matched() }

func (r *structureResult) nextRegion(*Results) (RegionInfo, bool) { return r.sched.next() }

func (r *structureResult) update(rs *Results, w World, offset coords.Coordinates, box coords.Box) {
	if !r.sched.take(box) {
		return
	}
	sites, err := w.LocateStructures(box.MoveBox(offset), r.c.structure)
	if err != nil {
		rs.generationFailed(r.c, box, err)
		r.sched.settle()
		return
	}
	center := r.c.area.Center()
	label := r.c.structure.Label()
	for _, site := range sites {
		if site.Label != label {
			continue
		}
		local := site.Pos.Sub(offset)
		if !box.Contains(local) {
			continue
		}
		if r.c.checkBounds && !r.c.area.Contains(local) {
			continue
		}
		d := local.Distance(center)
		if r.sched.found && d >= r.sched.best {
			continue
		}
		biome, hasBiome, ok := r.validBiome(rs, w, site.Pos)
		if !ok {
			continue
		}
		r.foundAt = site.Pos
		r.biome, r.hasBiome = biome, hasBiome
		r.sched.hit(d)
		if r.c.shortCircuit {
			break
		}
	}
	r.sched.settle()
}

func (r *structureResult) validBiome(rs *Results, w World, pos coords.Coordinates) (catalog.BiomeID, bool, bool) {
	if len(r.c.biomes) == 0 {
		return 0, false, true
	}
	b, err := w.BiomeAt(pos.X, pos.Y)
	if err != nil {
		rs.generationFailed(r.c, coords.NewBox(pos.X, pos.Y, 1, 1), err)
		return 0, false, false
	}
	for _, allowed := range r.c.biomes {
		if b == allowed {
			return b, true, true
		}
	}
	return 0, false, false
}

func (r *structureResult) clone() result {
	out := *r
	out.sched = r.sched.clone()
	return &out
}

func (r *structureResult) addTo(_ *Results, wr *WorldFilterResult, goal string) error {
	item := wr.ItemFor(r.foundAt)
	if r.hasBiome {
		if err := item.SetBiome(r.biome); err != nil {
			return err
		}
	}
	item.AddStructure(r.c.structure)
	item.tag(goal)
	return nil
}
