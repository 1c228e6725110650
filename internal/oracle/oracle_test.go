package oracle

import (
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/filter"
	"seedsift.ai/internal/persistence/fixture"
)

func newGen(t *testing.T, seed int64, worldType string) *Generator {
	t.Helper()
	g, err := NewGenerator(seed, worldType, DefaultGeneratorConfig())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestGenerator_QuarterSamplesMatchBiomeAt(t *testing.T) {
	g := newGen(t, 1234, WorldDefault)
	region := coords.NewBox(-96, 32, 128, 64)
	grid, err := g.SampleBiomes(region, true)
	if err != nil {
		t.Fatalf("SampleBiomes: %v", err)
	}
	if grid.Width() != 32 || grid.Height() != 16 || grid.IsOwned() {
		t.Fatalf("grid %dx%d owned=%v", grid.Width(), grid.Height(), grid.IsOwned())
	}
	for iy := 0; iy < grid.Height(); iy++ {
		for ix := 0; ix < grid.Width(); ix++ {
			want, _ := g.BiomeAt(region.Corner.X+int64(ix)*4, region.Corner.Y+int64(iy)*4)
			if got := grid.At(ix, iy); got != want {
				t.Fatalf("sample (%d,%d) = %s, want %s", ix, iy, got, want)
			}
		}
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a := newGen(t, 99, WorldDefault)
	b := newGen(t, 99, WorldDefault)
	c := newGen(t, 100, WorldDefault)
	differs := false
	for x := int64(-2048); x < 2048; x += 61 {
		for z := int64(-2048); z < 2048; z += 67 {
			ba, _ := a.BiomeAt(x, z)
			bb, _ := b.BiomeAt(x, z)
			bc, _ := c.BiomeAt(x, z)
			if ba != bb {
				t.Fatalf("same seed differs at %d,%d", x, z)
			}
			if ba != bc {
				differs = true
			}
		}
	}
	if !differs {
		t.Fatalf("seeds 99 and 100 generate identical biomes")
	}
}

func TestGenerator_ReusesOutputBuffer(t *testing.T) {
	g := newGen(t, 5, WorldDefault)
	first, err := g.SampleBiomes(coords.NewBox(0, 0, 64, 64), true)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	kept := first.Clone()
	second, err := g.SampleBiomes(coords.NewBox(100000, 100000, 64, 64), true)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(snapshot(first), snapshot(second)) {
		t.Fatalf("borrowed grid was not overwritten by the next call")
	}
	fresh, _ := g.SampleBiomes(coords.NewBox(0, 0, 64, 64), true)
	if !reflect.DeepEqual(snapshot(kept), snapshot(fresh)) {
		t.Fatalf("owned copy changed")
	}
}

func TestGenerator_RefusesBadRequests(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.MaxSampleArea = 64
	g, err := NewGenerator(1, WorldDefault, cfg)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	bad := []struct {
		region  coords.Box
		quarter bool
	}{
		{coords.NewBox(2, 0, 16, 16), true},
		{coords.NewBox(0, 0, 18, 16), true},
		{coords.NewBox(0, 0, 64, 64), true},
		{coords.NewBox(0, 0, 9, 8), false},
		{coords.Box{Corner: coords.At(0, 0, coords.Chunk), Width: 1, Height: 1}, false},
	}
	for _, tc := range bad {
		if _, err := g.SampleBiomes(tc.region, tc.quarter); !errors.Is(err, ErrGeneration) {
			t.Fatalf("%v quarter=%v: err = %v, want ErrGeneration", tc.region, tc.quarter, err)
		}
	}
	if _, err := NewGenerator(1, "nether", cfg); err == nil {
		t.Fatalf("unknown world type accepted")
	}
}

func TestGenerator_StructuresRespectRegionAndBiomes(t *testing.T) {
	g := newGen(t, 77, WorldDefault)
	whole := coords.NewBox(-4096, -4096, 8192, 8192)
	left := coords.NewBox(-4096, -4096, 4096, 8192)
	right := coords.NewBox(0, -4096, 4096, 8192)

	for _, st := range []catalog.StructureType{catalog.Village, catalog.Mineshaft, catalog.WitchHut} {
		all, err := g.LocateStructures(whole, st)
		if err != nil {
			t.Fatalf("%s: %v", st, err)
		}
		if st == catalog.Mineshaft && len(all) == 0 {
			t.Fatalf("no mineshafts in 8192x8192 blocks")
		}
		spawn := st.SpawnBiomes()
		for _, s := range all {
			if !whole.Contains(s.Pos) || s.Label != st.Label() {
				t.Fatalf("%s: bad site %+v", st, s)
			}
			b, _ := g.BiomeAt(s.Pos.X, s.Pos.Y)
			if !allowed(spawn, b) {
				t.Fatalf("%s at %v in %s", st, s.Pos, b)
			}
		}
		l, _ := g.LocateStructures(left, st)
		r, _ := g.LocateStructures(right, st)
		if got := sites(append(l, r...)); !reflect.DeepEqual(got, sites(all)) {
			t.Fatalf("%s: halves found %d sites, whole %d", st, len(got), len(all))
		}
	}
}

func TestGenerator_FlatWorld(t *testing.T) {
	g := newGen(t, 3, WorldFlat)
	grid, err := g.SampleBiomes(coords.NewBox(0, 0, 256, 256), true)
	if err != nil {
		t.Fatalf("SampleBiomes: %v", err)
	}
	if !grid.All(func(_, _ int, b catalog.BiomeID) bool { return b.Name() == "plains" }) {
		t.Fatalf("flat world is not all plains")
	}
	if s, _ := g.LocateStructures(coords.NewBox(0, 0, 4096, 4096), catalog.DesertTemple); len(s) != 0 {
		t.Fatalf("flat world has desert temples: %v", s)
	}
}

func TestCached_ServesViewsOfTiles(t *testing.T) {
	g := newGen(t, 8, WorldDefault)
	ref := newGen(t, 8, WorldDefault)
	c, err := NewCached(g, coords.Fragment, 16)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	defer c.Close()

	if err := c.Warm(coords.NewBox(0, 0, 16, 16)); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	for _, region := range []coords.Box{
		coords.NewBox(16, 32, 16, 16),
		coords.NewBox(496, 496, 16, 16),
		coords.NewBox(0, 0, 512, 512),
	} {
		got, err := c.SampleBiomes(region, true)
		if err != nil {
			t.Fatalf("%v: %v", region, err)
		}
		want, _ := ref.SampleBiomes(region, true)
		if !reflect.DeepEqual(snapshot(got), snapshot(want)) {
			t.Fatalf("%v: cached view differs from generator", region)
		}
		if got.IsOwned() {
			t.Fatalf("%v: cached answer should be a borrowed view", region)
		}
	}
	st := c.Stats()
	if st.Misses != 1 || st.Hits != 3 {
		t.Fatalf("stats = %+v, want 1 miss and 3 hits", st)
	}

	// Straddles two tiles: answered by the generator directly.
	if _, err := c.SampleBiomes(coords.NewBox(480, 0, 64, 16), true); err != nil {
		t.Fatalf("straddling request: %v", err)
	}
	if c.Stats() != st {
		t.Fatalf("straddling request touched the cache")
	}
}

type memSink struct{ recs []RequestRecord }

func (m *memSink) WriteRequest(r RequestRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func TestRecorderReplay_ReproducesEvaluation(t *testing.T) {
	b, err := filter.NewBuilder(coords.Chunk)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	area := coords.BoxAround(coords.Origin(), 256)
	leaves := []filter.Criterion{
		b.Biome(area, catalog.BiomeID(2), false, true),
		b.Structure(area, catalog.Mineshaft, nil, true, true),
		b.Structure(area, catalog.Village, []catalog.BiomeID{1, 2}, false, true),
	}
	match, err := b.Or(leaves...)
	if err != nil {
		t.Fatalf("Or: %v", err)
	}
	f, err := filter.NewWorldFilter(b, match, filter.Goal{Name: "mineshaft", Criterion: leaves[1]})
	if err != nil {
		t.Fatalf("NewWorldFilter: %v", err)
	}

	sink := &memSink{}
	rec := NewRecorder(newGen(t, 2024, WorldDefault), sink, true, nil)
	live, liveStats, err := f.Evaluate(rec, filter.EvalOptions{})
	if err != nil {
		t.Fatalf("live evaluate: %v", err)
	}
	if len(sink.recs) == 0 || sink.recs[0].Seed != 2024 {
		t.Fatalf("request records = %+v", sink.recs)
	}

	path := filepath.Join(t.TempDir(), "fx.zst")
	if err := fixture.Write(path, rec.Fixture()); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	fx, err := fixture.Read(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	replay, err := NewReplay(fx)
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	again, stats, err := f.Evaluate(replay, filter.EvalOptions{})
	if err != nil {
		t.Fatalf("replay evaluate: %v", err)
	}
	if stats.Verdict != liveStats.Verdict || stats.Regions != liveStats.Regions || stats.GenerationErrors != 0 {
		t.Fatalf("replay stats %+v, live %+v", stats, liveStats)
	}
	if (live == nil) != (again == nil) {
		t.Fatalf("replay matched=%v, live matched=%v", again != nil, live != nil)
	}
	if live != nil && !reflect.DeepEqual(live.SortedItems(), again.SortedItems()) {
		t.Fatalf("replay items differ")
	}

	if _, err := replay.SampleBiomes(coords.NewBox(1<<20, 0, 16, 16), true); !errors.Is(err, ErrNotRecorded) {
		t.Fatalf("unrecorded request err = %v", err)
	}
}

func snapshot(g interface {
	Width() int
	Height() int
	At(x, y int) catalog.BiomeID
}) [][]catalog.BiomeID {
	out := make([][]catalog.BiomeID, g.Height())
	for y := range out {
		out[y] = make([]catalog.BiomeID, g.Width())
		for x := range out[y] {
			out[y][x] = g.At(x, y)
		}
	}
	return out
}

func sites(in []filter.StructureSite) []filter.StructureSite {
	out := append([]filter.StructureSite(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Y != out[j].Pos.Y {
			return out[i].Pos.Y < out[j].Pos.Y
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}
