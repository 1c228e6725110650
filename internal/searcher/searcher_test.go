package searcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"seedsift.ai/internal/biomegrid"
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/filter"
)

const (
	plains catalog.BiomeID = 1
	desert catalog.BiomeID = 2
)

// uniformWorld is one biome everywhere. With conflict set, point lookups
// disagree with sampled grids and a village sits on every cell corner.
type uniformWorld struct {
	seed     int64
	biome    catalog.BiomeID
	conflict bool
	closed   *atomic.Int32
}

func (w *uniformWorld) Options() filter.WorldOptions {
	return filter.WorldOptions{Seed: w.seed, WorldType: "default"}
}

func (w *uniformWorld) SampleBiomes(region coords.Box, quarter bool) (*biomegrid.Grid, error) {
	width, height := region.Width, region.Height
	if quarter {
		width, height = width>>2, height>>2
	}
	data := make([]catalog.BiomeID, width*height)
	for i := range data {
		data[i] = w.biome
	}
	return biomegrid.FromOwned(data, int(width), int(height))
}

func (w *uniformWorld) LocateStructures(region coords.Box, t catalog.StructureType) ([]filter.StructureSite, error) {
	if !w.conflict {
		return nil, nil
	}
	return []filter.StructureSite{{Pos: region.Corner, Label: t.Label()}}, nil
}

func (w *uniformWorld) BiomeAt(x, y int64) (catalog.BiomeID, error) {
	if w.conflict {
		return desert, nil
	}
	return w.biome, nil
}

func (w *uniformWorld) Close() error {
	if w.closed != nil {
		w.closed.Add(1)
	}
	return nil
}

// desertEvery makes seeds congruent to 3 mod n desert worlds, the rest
// plains.
func desertEvery(n int64, closed *atomic.Int32) WorldFactory {
	return func(seed int64, _ string) (filter.World, error) {
		b := plains
		if seed%n == 3 {
			b = desert
		}
		return &uniformWorld{seed: seed, biome: b, closed: closed}, nil
	}
}

func desertFilter(t *testing.T) *filter.WorldFilter {
	t.Helper()
	b, err := filter.NewBuilder(coords.Chunk)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	match := b.Biome(coords.BoxAround(coords.Origin(), 16), desert, true, false)
	wf, err := filter.NewWorldFilter(b, match)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	return wf
}

type collector struct {
	mu   sync.Mutex
	outs []WorldOutcome
}

func (c *collector) add(o WorldOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outs = append(c.outs, o)
}

func newTestSearcher(t *testing.T, cfg Config, factory WorldFactory) (*Searcher, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	s, err := New(cfg, factory, m, nil)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	return s, m
}

func TestRun_OneShotStopsAtFirstHit(t *testing.T) {
	var closed atomic.Int32
	s, m := newTestSearcher(t, Config{WorldType: "default", Workers: 1, MaxHits: 10}, desertEvery(5, &closed))
	var c collector
	sum, err := s.Run(context.Background(), desertFilter(t), c.add)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Reason != StopMaxHits || sum.Matched != 1 || sum.Searched != 4 {
		t.Fatalf("summary: %+v", sum)
	}
	for i, o := range c.outs {
		if o.Seed != int64(i) {
			t.Fatalf("outcome %d has seed %d", i, o.Seed)
		}
		if o.SearchID != s.ID() {
			t.Fatalf("search id: got %q want %q", o.SearchID, s.ID())
		}
	}
	last := c.outs[len(c.outs)-1]
	if last.Status != StatusMatched || last.Result == nil || last.Result.Options.Seed != 3 {
		t.Fatalf("last outcome: %+v", last)
	}
	if c.outs[0].Status != StatusRejected || c.outs[0].Result != nil {
		t.Fatalf("first outcome: %+v", c.outs[0])
	}
	if got := testutil.ToFloat64(m.WorldsSearched); got != 4 {
		t.Fatalf("worlds searched: %v", got)
	}
	if got := testutil.ToFloat64(m.WorldsMatched); got != 1 {
		t.Fatalf("worlds matched: %v", got)
	}
	if got := testutil.ToFloat64(m.RegionsSampled); got < 4 {
		t.Fatalf("regions sampled: %v", got)
	}
	if closed.Load() != 4 {
		t.Fatalf("closed worlds: got %d want 4", closed.Load())
	}
}

func TestRun_ContinuousCapsHits(t *testing.T) {
	s, _ := newTestSearcher(t, Config{WorldType: "default", Workers: 4, Continuous: true, MaxHits: 3}, desertEvery(5, nil))
	var c collector
	sum, err := s.Run(context.Background(), desertFilter(t), c.add)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Matched != 3 || sum.Reason != StopMaxHits {
		t.Fatalf("summary: %+v", sum)
	}
	hits := 0
	for _, o := range c.outs {
		if o.Status == StatusMatched {
			hits++
			if o.Seed%5 != 3 {
				t.Fatalf("seed %d should not match", o.Seed)
			}
		}
	}
	if hits != 3 || int64(len(c.outs)) != sum.Searched {
		t.Fatalf("delivered %d outcomes with %d hits, summary %+v", len(c.outs), hits, sum)
	}
}

func TestRun_LateOutcomesAreNotCounted(t *testing.T) {
	// Both workers hold a matching world before either finishes, so the
	// second match lands after the cap.
	var barrier sync.WaitGroup
	barrier.Add(2)
	factory := func(seed int64, _ string) (filter.World, error) {
		barrier.Done()
		barrier.Wait()
		return &uniformWorld{seed: seed, biome: desert}, nil
	}
	s, m := newTestSearcher(t, Config{WorldType: "default", Workers: 2, Continuous: true, MaxHits: 1, MaxSeeds: 2}, factory)
	var c collector
	sum, err := s.Run(context.Background(), desertFilter(t), c.add)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Searched != 1 || sum.Matched != 1 || len(c.outs) != 1 {
		t.Fatalf("summary %+v with %d delivered", sum, len(c.outs))
	}
	if got := testutil.ToFloat64(m.WorldsSearched); got != float64(sum.Searched) {
		t.Fatalf("worlds searched: %v, summary %d", got, sum.Searched)
	}
	if got := testutil.ToFloat64(m.WorldsMatched); got != float64(sum.Matched) {
		t.Fatalf("worlds matched: %v, summary %d", got, sum.Matched)
	}
}

func TestRun_MaxSeedsExhausts(t *testing.T) {
	s, m := newTestSearcher(t, Config{WorldType: "default", Workers: 3, Continuous: true, StartSeed: 0, MaxSeeds: 10}, desertEvery(5, nil))
	sum, err := s.Run(context.Background(), desertFilter(t), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Reason != StopExhausted || sum.Searched != 10 || sum.Matched != 2 {
		t.Fatalf("summary: %+v", sum)
	}
	if got := testutil.ToFloat64(m.WorldsSearched); got != 10 {
		t.Fatalf("worlds searched: %v", got)
	}
}

func TestRun_RandomSeedsAreReproducible(t *testing.T) {
	seedsOf := func() []int64 {
		s, _ := newTestSearcher(t, Config{Workers: 1, Continuous: true, RandomSeeds: true, RNGSeed: 99, MaxSeeds: 5}, desertEvery(5, nil))
		var c collector
		if _, err := s.Run(context.Background(), desertFilter(t), c.add); err != nil {
			t.Fatalf("run: %v", err)
		}
		out := make([]int64, len(c.outs))
		for i, o := range c.outs {
			out[i] = o.Seed
		}
		return out
	}
	a, b := seedsOf(), seedsOf()
	if len(a) != 5 {
		t.Fatalf("seeds: %v", a)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("rng seed 99 gave %v then %v", a, b)
		}
	}
}

func TestRun_FactoryErrorSkipsSeed(t *testing.T) {
	inner := desertEvery(5, nil)
	factory := func(seed int64, wt string) (filter.World, error) {
		if seed == 1 {
			return nil, errors.New("no such world")
		}
		return inner(seed, wt)
	}
	s, m := newTestSearcher(t, Config{Workers: 1}, factory)
	var c collector
	sum, err := s.Run(context.Background(), desertFilter(t), c.add)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Skipped != 1 || sum.Matched != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if c.outs[1].Status != StatusSkipped || c.outs[1].Err == nil {
		t.Fatalf("seed 1 outcome: %+v", c.outs[1])
	}
	if got := testutil.ToFloat64(m.WorldsSkipped); got != 1 {
		t.Fatalf("worlds skipped: %v", got)
	}
}

func TestRun_BudgetSkipsSeed(t *testing.T) {
	s, _ := newTestSearcher(t, Config{Workers: 1, Continuous: true, MaxSeeds: 2, MaxRegionsPerWorld: 2}, desertEvery(5, nil))
	var c collector
	sum, err := s.Run(context.Background(), desertFilter(t), c.add)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Rejecting a plains world needs all four cells.
	if sum.Skipped != 2 || !c.outs[0].Stats.BudgetExhausted {
		t.Fatalf("summary %+v, first outcome %+v", sum, c.outs[0])
	}
}

func TestRun_StopFromCallback(t *testing.T) {
	s, _ := newTestSearcher(t, Config{Workers: 1, Continuous: true}, desertEvery(1000, nil))
	n := 0
	sum, err := s.Run(context.Background(), desertFilter(t), func(WorldOutcome) {
		n++
		if n == 5 {
			s.Stop()
		}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Reason != StopRequested || sum.Searched != 5 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newTestSearcher(t, Config{Workers: 2, Continuous: true}, desertEvery(1000, nil))
	var c collector
	sum, err := s.Run(ctx, desertFilter(t), func(o WorldOutcome) {
		c.add(o)
		if o.Seed == 20 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Reason != StopCancelled || sum.Searched < 21 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestRun_BiomeConflictAborts(t *testing.T) {
	b, err := filter.NewBuilder(coords.Chunk)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	area := coords.BoxAround(coords.Origin(), 16)
	both, err := b.And(
		b.Biome(area, plains, true, false),
		b.Structure(area, catalog.Village, []catalog.BiomeID{desert}, true, false),
	)
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	wf, err := filter.NewWorldFilter(b, both)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	factory := func(seed int64, _ string) (filter.World, error) {
		return &uniformWorld{seed: seed, biome: plains, conflict: true}, nil
	}
	s, _ := newTestSearcher(t, Config{Workers: 2, Continuous: true}, factory)
	sum, err := s.Run(context.Background(), wf, nil)
	if !errors.Is(err, filter.ErrBiomeConflict) {
		t.Fatalf("expected biome conflict, got %v", err)
	}
	if sum.Reason != StopAborted {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	s, _ := newTestSearcher(t, Config{Workers: 1, MaxSeeds: 1, Continuous: true}, desertEvery(5, nil))
	if _, err := s.Run(context.Background(), desertFilter(t), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := s.Run(context.Background(), desertFilter(t), nil); err == nil {
		t.Fatalf("second run should fail")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Config{}, nil, nil, nil); err == nil {
		t.Fatalf("nil factory accepted")
	}
	if _, err := New(Config{MaxSeeds: -1}, desertEvery(5, nil), nil, nil); err == nil {
		t.Fatalf("negative max seeds accepted")
	}
}

func TestNew_SearchID(t *testing.T) {
	s, _ := newTestSearcher(t, Config{SearchID: "fixed", Workers: 1}, desertEvery(5, nil))
	if s.ID() != "fixed" {
		t.Fatalf("id: %q", s.ID())
	}
	a, _ := newTestSearcher(t, Config{Workers: 1}, desertEvery(5, nil))
	b, _ := newTestSearcher(t, Config{Workers: 1}, desertEvery(5, nil))
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("generated ids: %q %q", a.ID(), b.ID())
	}
	sum, err := s.Run(context.Background(), desertFilter(t), func(o WorldOutcome) {
		if o.SearchID != "fixed" {
			t.Errorf("outcome search id: %q", o.SearchID)
		}
	})
	if err != nil || sum.SearchID != "fixed" {
		t.Fatalf("run: %+v %v", sum, err)
	}
}
