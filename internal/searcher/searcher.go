// Package searcher enumerates world seeds and evaluates a WorldFilter
// against each of them on a pool of workers.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"seedsift.ai/internal/filter"
)

type Config struct {
	// SearchID names the run; a random uuid is used when empty.
	SearchID  string
	WorldType string
	Workers   int
	// MaxHits stops the search after that many matches; zero means no limit.
	// A search that is not Continuous stops at its first match regardless.
	MaxHits    int
	Continuous bool
	StartSeed  int64
	// RandomSeeds draws seeds from a generator seeded with RNGSeed instead of
	// counting up from StartSeed.
	RandomSeeds bool
	RNGSeed     int64
	// MaxSeeds caps the seeds issued; zero means no limit.
	MaxSeeds           int64
	MaxRegionsPerWorld int
}

// WorldFactory opens the oracle of one world. When the world implements
// io.Closer it is closed once evaluated.
type WorldFactory func(seed int64, worldType string) (filter.World, error)

type Status string

const (
	StatusMatched  Status = "matched"
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped"
)

// WorldOutcome is the verdict on one seed.
type WorldOutcome struct {
	SearchID  string
	Seed      int64
	WorldType string
	Status    Status
	// Result is set for matched worlds only.
	Result  *filter.WorldFilterResult
	Stats   filter.EvalStats
	Elapsed time.Duration
	// Err explains a skipped world.
	Err error
}

type StopReason string

const (
	StopMaxHits   StopReason = "max_hits"
	StopExhausted StopReason = "exhausted"
	StopRequested StopReason = "stopped"
	StopCancelled StopReason = "cancelled"
	StopAborted   StopReason = "aborted"
)

type Summary struct {
	SearchID string
	Searched int64
	Matched  int64
	Skipped  int64
	Reason   StopReason
	Elapsed  time.Duration
}

// Searcher runs one search. It is not reusable: Run may be called once.
type Searcher struct {
	cfg     Config
	factory WorldFactory
	metrics *Metrics
	logger  *log.Logger
	id      string

	stopped atomic.Bool
	ran     atomic.Bool

	mu      sync.Mutex
	summary Summary
	done    bool
}

func New(cfg Config, factory WorldFactory, metrics *Metrics, logger *log.Logger) (*Searcher, error) {
	if factory == nil {
		return nil, errors.New("searcher: nil world factory")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxHits < 0 || cfg.MaxSeeds < 0 || cfg.MaxRegionsPerWorld < 0 {
		return nil, fmt.Errorf("searcher: negative limit in %+v", cfg)
	}
	if !cfg.Continuous {
		cfg.MaxHits = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	id := cfg.SearchID
	if id == "" {
		id = uuid.NewString()
	}
	return &Searcher{
		cfg:     cfg,
		factory: factory,
		metrics: metrics,
		logger:  logger,
		id:      id,
	}, nil
}

func (s *Searcher) ID() string { return s.id }

// Stop asks the workers to take no further seeds. Worlds being evaluated
// are finished and delivered.
func (s *Searcher) Stop() { s.stopped.Store(true) }

func (s *Searcher) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Run evaluates seeds until ctx is cancelled, Stop is called, MaxHits
// matches were delivered or MaxSeeds seeds were issued. onWorld receives
// every outcome, one call at a time. A biome conflict in a world result
// aborts the search with an error.
func (s *Searcher) Run(ctx context.Context, f *filter.WorldFilter, onWorld func(WorldOutcome)) (Summary, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return Summary{}, errors.New("searcher: Run called twice")
	}
	if onWorld == nil {
		onWorld = func(WorldOutcome) {}
	}
	start := time.Now()
	s.summary = Summary{SearchID: s.id}
	seeds := newSeedSource(s.cfg)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil || s.stopped.Load() {
					return nil
				}
				seed, ok := seeds.next()
				if !ok {
					return nil
				}
				out, err := s.evaluate(f, seed)
				if err != nil {
					s.finish(StopAborted)
					return fmt.Errorf("seed %d: %w", seed, err)
				}
				s.deliver(out, onWorld)
			}
		})
	}
	err := g.Wait()

	switch {
	case ctx.Err() != nil:
		s.finish(StopCancelled)
	case s.stopped.Load():
		s.finish(StopRequested)
	default:
		s.finish(StopExhausted)
	}
	s.mu.Lock()
	sum := s.summary
	s.mu.Unlock()
	sum.Elapsed = time.Since(start)
	s.logf("search %s done (%s): searched=%d matched=%d skipped=%d in %s",
		sum.SearchID, sum.Reason, sum.Searched, sum.Matched, sum.Skipped, sum.Elapsed.Round(time.Millisecond))
	return sum, err
}

// finish records the first stop reason.
func (s *Searcher) finish(r StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary.Reason == "" {
		s.summary.Reason = r
	}
}

// deliver counts out and hands it to the callback unless the hit limit
// was already reached, in which case late outcomes from other workers are
// dropped uncounted.
func (s *Searcher) deliver(out WorldOutcome, onWorld func(WorldOutcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.summary.Searched++
	s.metrics.WorldsSearched.Inc()
	switch out.Status {
	case StatusMatched:
		s.summary.Matched++
		s.metrics.WorldsMatched.Inc()
	case StatusSkipped:
		s.summary.Skipped++
		s.metrics.WorldsSkipped.Inc()
	}
	onWorld(out)
	if out.Status == StatusMatched && s.cfg.MaxHits > 0 && s.summary.Matched >= int64(s.cfg.MaxHits) {
		s.done = true
		s.summary.Reason = StopMaxHits
		s.stopped.Store(true)
	}
}

func (s *Searcher) evaluate(f *filter.WorldFilter, seed int64) (out WorldOutcome, err error) {
	start := time.Now()
	out = WorldOutcome{SearchID: s.id, Seed: seed, WorldType: s.cfg.WorldType}
	defer func() {
		out.Elapsed = time.Since(start)
		s.metrics.EvalSeconds.Observe(out.Elapsed.Seconds())
	}()

	w, err := s.factory(seed, s.cfg.WorldType)
	if err != nil {
		s.logf("seed %d skipped: %v", seed, err)
		out.Status, out.Err = StatusSkipped, err
		return out, nil
	}
	if c, ok := w.(io.Closer); ok {
		defer c.Close()
	}

	wr, stats, err := f.Evaluate(w, filter.EvalOptions{
		MaxRegions: s.cfg.MaxRegionsPerWorld,
		Logger:     s.logger,
	})
	out.Stats = stats
	s.metrics.RegionsSampled.Add(float64(stats.Regions))
	switch {
	case errors.Is(err, filter.ErrBiomeConflict), errors.Is(err, filter.ErrMalformedTree):
		return out, err
	case err != nil:
		s.logf("seed %d skipped: %v", seed, err)
		out.Status, out.Err = StatusSkipped, err
	case wr != nil:
		out.Status, out.Result = StatusMatched, wr
	case stats.BudgetExhausted:
		out.Status = StatusSkipped
		out.Err = fmt.Errorf("region budget of %d exhausted", s.cfg.MaxRegionsPerWorld)
	case stats.GenerationErrors > 0:
		// Failed cells leave a rejection unproven.
		out.Status = StatusSkipped
		out.Err = fmt.Errorf("%d generation errors", stats.GenerationErrors)
	default:
		out.Status = StatusRejected
	}
	return out, nil
}

// seedSource hands out seeds to the workers.
type seedSource struct {
	mu     sync.Mutex
	cursor int64
	rng    *rand.Rand
	issued int64
	max    int64
}

func newSeedSource(cfg Config) *seedSource {
	src := &seedSource{cursor: cfg.StartSeed, max: cfg.MaxSeeds}
	if cfg.RandomSeeds {
		src.rng = rand.New(rand.NewSource(cfg.RNGSeed))
	}
	return src
}

func (src *seedSource) next() (int64, bool) {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.max > 0 && src.issued >= src.max {
		return 0, false
	}
	src.issued++
	if src.rng != nil {
		return int64(src.rng.Uint64()), true
	}
	seed := src.cursor
	src.cursor++
	return seed, true
}
