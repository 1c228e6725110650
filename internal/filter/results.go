package filter

import (
	"fmt"
	"log"

	"seedsift.ai/internal/coords"
)

// RegionInfo is a cell a criterion wants sampled next, with the cost used
// to order it against cells offered by sibling criteria.
type RegionInfo struct {
	Box  coords.Box
	Cost float64
}

type result interface {
	matched(rs *Results) TriState
	nextRegion(rs *Results) (RegionInfo, bool)
	update(rs *Results, w World, offset coords.Coordinates, box coords.Box)
	clone() result
	addTo(rs *Results, wr *WorldFilterResult, goal string) error
}

// Results holds the per-world evaluation state of every node built by one
// Builder. It is not safe for concurrent use; each world gets its own.
type Results struct {
	b         *Builder
	slots     []result
	log       *log.Logger
	genErrors int
}

// NewResults returns an empty result map. States are created on first use.
func NewResults(b *Builder, logger *log.Logger) *Results {
	return &Results{b: b, slots: make([]result, b.Len()), log: logger}
}

func (rs *Results) get(c Criterion) result {
	i := c.Index()
	if i < 0 || i >= rs.b.Len() || rs.b.node(i) != c {
		panic(fmt.Sprintf("filter: criterion %v does not belong to this result map", c))
	}
	if i >= len(rs.slots) {
		grown := make([]result, rs.b.Len())
		copy(grown, rs.slots)
		rs.slots = grown
	}
	r := rs.slots[i]
	if r == nil {
		r = c.newResult()
		rs.slots[i] = r
	}
	return r
}

// Clone deep-copies the state of every node.
func (rs *Results) Clone() *Results {
	out := &Results{b: rs.b, slots: make([]result, len(rs.slots)), log: rs.log, genErrors: rs.genErrors}
	for i, r := range rs.slots {
		if r != nil {
			out.slots[i] = r.clone()
		}
	}
	return out
}

// Matched reports the current verdict of c.
func (rs *Results) Matched(c Criterion) TriState {
	return rs.get(c).matched(rs)
}

// NextRegion returns the next cell c wants sampled. ok is false once c has
// nothing left to examine.
func (rs *Results) NextRegion(c Criterion) (RegionInfo, bool) {
	return rs.get(c).nextRegion(rs)
}

// CheckRegion feeds a sampled cell to c and returns the verdict afterwards.
// Cells c is not waiting on are ignored.
func (rs *Results) CheckRegion(c Criterion, w World, offset coords.Coordinates, box coords.Box) TriState {
	r := rs.get(c)
	r.update(rs, w, offset, box)
	return r.matched(rs)
}

// AddToWorldResult records what c found into wr, tagging items with goal.
// Nothing is added unless c matched.
func (rs *Results) AddToWorldResult(c Criterion, wr *WorldFilterResult, goal string) error {
	if rs.Matched(c) != True {
		return nil
	}
	return rs.get(c).addTo(rs, wr, goal)
}

// GenerationErrors counts failed sampling calls seen by this map.
func (rs *Results) GenerationErrors() int { return rs.genErrors }

func (rs *Results) generationFailed(c Criterion, box coords.Box, err error) {
	rs.genErrors++
	if rs.log != nil {
		rs.log.Printf("generation failed for %v at %v: %v", c, box, err)
	}
}

// Examined returns how many cells the leaf c has consumed. It is zero for
// combinators.
func (rs *Results) Examined(c Criterion) int {
	switch r := rs.get(c).(type) {
	case *biomeResult:
		return r.sched.Examined()
	case *structureResult:
		return r.sched.Examined()
	default:
		return 0
	}
}
