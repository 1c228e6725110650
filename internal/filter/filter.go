package filter

import (
	"errors"
	"fmt"
	"log"

	"seedsift.ai/internal/coords"
)

// ErrMalformedTree is returned when a criterion is undecided but offers no
// region to sample.
var ErrMalformedTree = errors.New("filter: undecided criterion offers no region")

// Goal is an optional named criterion reported alongside a match.
type Goal struct {
	Name      string
	Criterion Criterion
}

// WorldFilter is a match criterion plus optional goals, all built by the
// same Builder. It holds no per-world state and may be shared between
// goroutines.
type WorldFilter struct {
	b     *Builder
	match Criterion
	goals []Goal
}

func NewWorldFilter(b *Builder, match Criterion, goals ...Goal) (*WorldFilter, error) {
	if !b.owns(match) {
		return nil, fmt.Errorf("%w: match criterion was not created by this builder", ErrConfig)
	}
	seen := make(map[string]bool, len(goals))
	for _, g := range goals {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: goal without a name", ErrConfig)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("%w: duplicate goal %q", ErrConfig, g.Name)
		}
		seen[g.Name] = true
		if !b.owns(g.Criterion) {
			return nil, fmt.Errorf("%w: goal %q was not created by this builder", ErrConfig, g.Name)
		}
	}
	return &WorldFilter{b: b, match: match, goals: append([]Goal(nil), goals...)}, nil
}

func (f *WorldFilter) Builder() *Builder { return f.b }
func (f *WorldFilter) Match() Criterion { return f.match }
func (f *WorldFilter) Goals() []Goal { return append([]Goal(nil), f.goals...) }
func (f *WorldFilter) String() string { return f.match.String() }

type EvalOptions struct {
	// Offset moves every criterion area, in world blocks.
	Offset coords.Coordinates
	// MaxRegions caps the cells sampled for one world, goals included.
	// Zero means no cap.
	MaxRegions int
	Logger     *log.Logger
}

type EvalStats struct {
	Regions          int
	GenerationErrors int
	Verdict          TriState
	// BudgetExhausted is set when MaxRegions stopped the match criterion
	// before it reached a verdict.
	BudgetExhausted bool
	Goals           []string
}

var errBudget = errors.New("filter: region budget exhausted")

// Evaluate decides whether w satisfies the match criterion, visiting cells
// one at a time in the order the criteria ask for them. On a match every
// goal is then evaluated on a copy of the match state so that cells
// already decided are not sampled again. The result is nil unless the
// world matched.
func (f *WorldFilter) Evaluate(w World, opts EvalOptions) (*WorldFilterResult, EvalStats, error) {
	rs := NewResults(f.b, opts.Logger)
	var stats EvalStats

	v, err := f.drive(rs, f.match, w, opts, &stats)
	stats.Verdict = v
	stats.GenerationErrors = rs.GenerationErrors()
	switch {
	case errors.Is(err, errBudget):
		stats.BudgetExhausted = true
		return nil, stats, nil
	case err != nil:
		return nil, stats, err
	case v != True:
		return nil, stats, nil
	}

	wr := NewWorldFilterResult(w.Options())
	if err := rs.AddToWorldResult(f.match, wr, ""); err != nil {
		return nil, stats, err
	}
	for _, g := range f.goals {
		grs := rs.Clone()
		before := grs.GenerationErrors()
		gv, err := f.drive(grs, g.Criterion, w, opts, &stats)
		stats.GenerationErrors += grs.GenerationErrors() - before
		if errors.Is(err, errBudget) {
			continue
		}
		if err != nil {
			return nil, stats, fmt.Errorf("goal %q: %w", g.Name, err)
		}
		if gv != True {
			continue
		}
		wr.AddGoal(g.Name)
		stats.Goals = append(stats.Goals, g.Name)
		if err := grs.AddToWorldResult(g.Criterion, wr, g.Name); err != nil {
			return nil, stats, err
		}
	}
	wr.Seal()
	return wr, stats, nil
}

func (f *WorldFilter) drive(rs *Results, c Criterion, w World, opts EvalOptions, stats *EvalStats) (TriState, error) {
	warmer, _ := w.(Warmer)
	for {
		if v := rs.Matched(c); v.Decided() {
			return v, nil
		}
		next, ok := rs.NextRegion(c)
		if !ok {
			return Undecided, fmt.Errorf("%w: %v", ErrMalformedTree, c)
		}
		if opts.MaxRegions > 0 && stats.Regions >= opts.MaxRegions {
			return Undecided, errBudget
		}
		if warmer != nil {
			if err := warmer.Warm(next.Box.MoveBox(opts.Offset)); err != nil && opts.Logger != nil {
				opts.Logger.Printf("warm %v: %v", next.Box, err)
			}
		}
		rs.CheckRegion(c, w, opts.Offset, next.Box)
		stats.Regions++
	}
}
