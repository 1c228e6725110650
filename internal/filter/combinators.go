package filter

import (
	"seedsift.ai/internal/coords"
)

type atLeastResult struct {
	c         *AtLeastCriterion
	undecided []Criterion
	matches   int
}

func newAtLeastResult(c *AtLeastCriterion) *atLeastResult {
	return &atLeastResult{c: c, undecided: append([]Criterion(nil), c.children...)}
}

func (r *atLeastResult) verdict() TriState {
	switch {
	case r.matches >= r.c.n:
		return True
	case len(r.undecided) < r.c.n-r.matches:
		return False
	default:
		return Undecided
	}
}

// fold counts children that have reached a verdict, possibly through
// another parent sharing them, and abandons the rest once the node itself
// is decided.
func (r *atLeastResult) fold(rs *Results) TriState {
	kept := r.undecided[:0]
	for _, ch := range r.undecided {
		switch rs.Matched(ch) {
		case True:
			r.matches++
		case False:
		default:
			kept = append(kept, ch)
		}
	}
	r.undecided = kept
	v := r.verdict()
	if v.Decided() {
		r.undecided = nil
	}
	return v
}

func (r *atLeastResult) matched(rs *Results) TriState { return r.fold(rs) }

func (r *atLeastResult) nextRegion(rs *Results) (RegionInfo, bool) {
	if r.fold(rs).Decided() {
		return RegionInfo{}, false
	}
	var (
		best  RegionInfo
		found bool
	)
	for _, ch := range r.undecided {
		info, ok := rs.NextRegion(ch)
		if !ok {
			continue
		}
		if r.c.shortCircuit {
			return info, true
		}
		if !found || info.Cost < best.Cost {
			best, found = info, true
		}
	}
	return best, found
}

func (r *atLeastResult) update(rs *Results, w World, offset coords.Coordinates, box coords.Box) {
	if r.fold(rs).Decided() {
		return
	}
	children := append([]Criterion(nil), r.undecided...)
	for _, ch := range children {
		rs.CheckRegion(ch, w, offset, box)
		if r.fold(rs).Decided() {
			return
		}
	}
}

func (r *atLeastResult) clone() result {
	out := *r
	out.undecided = append([]Criterion(nil), r.undecided...)
	return &out
}

func (r *atLeastResult) addTo(rs *Results, wr *WorldFilterResult, goal string) error {
	for _, ch := range r.c.children {
		if err := rs.AddToWorldResult(ch, wr, goal); err != nil {
			return err
		}
	}
	return nil
}

// negateResult keeps no state of its own.
type negateResult struct {
	child Criterion
}

func (r negateResult) matched(rs *Results) TriState { return rs.Matched(r.child).Not() }

func (r negateResult) nextRegion(rs *Results) (RegionInfo, bool) { return rs.NextRegion(r.child) }

func (r negateResult) update(rs *Results, w World, offset coords.Coordinates, box coords.Box) {
	rs.CheckRegion(r.child, w, offset, box)
}

func (r negateResult) clone() result { return r }

// addTo contributes nothing: a negated criterion matched because nothing
// was found.
func (negateResult) addTo(*Results, *WorldFilterResult, string) error { return nil }
