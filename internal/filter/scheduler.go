package filter

import (
	"fmt"
	"sort"

	"seedsift.ai/internal/coords"
)

// Cells tiles the bounds of area into square cells of the step size,
// aligned to multiples of the step, and keeps those the area touches. The
// bounds are snapped outwards so the union of the cells covers the area.
func Cells(area coords.Region, step coords.Resolution) []coords.Box {
	bounds := area.Bounds()
	if bounds.Corner.Res != coords.World {
		panic(fmt.Sprintf("filter: criterion area %v is not in world blocks", bounds))
	}
	if bounds.Empty() {
		return nil
	}
	size := step.Step()
	nw := bounds.NW().SnapDown(step)
	se := bounds.SE().SnapUp(step)

	var cells []coords.Box
	for y := nw.Y; y < se.Y; y += size {
		for x := nw.X; x < se.X; x += size {
			cell := coords.NewBox(x, y, size, size)
			if area.Intersects(cell) {
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

// scheduler tracks which cells of a leaf are still pending and decides when
// the leaf has seen enough.
type scheduler struct {
	pending      []RegionInfo
	shortCircuit bool
	found        bool
	best         float64
	examined     int
}

func newScheduler(area coords.Region, step coords.Resolution, shortCircuit bool) scheduler {
	center := area.Center()
	cells := Cells(area, step)
	pending := make([]RegionInfo, len(cells))
	for i, cell := range cells {
		pending[i] = RegionInfo{Box: cell, Cost: cell.SmallestDistanceTo(center)}
	}
	if !shortCircuit {
		sort.SliceStable(pending, func(i, j int) bool { return pending[i].Cost < pending[j].Cost })
	}
	return scheduler{pending: pending, shortCircuit: shortCircuit}
}

func (s *scheduler) clone() scheduler {
	out := *s
	out.pending = append([]RegionInfo(nil), s.pending...)
	return out
}

func (s *scheduler) next() (RegionInfo, bool) {
	if len(s.pending) == 0 {
		return RegionInfo{}, false
	}
	return s.pending[0], true
}

// take removes box from the pending set. It reports false when the leaf was
// not waiting on that cell.
func (s *scheduler) take(box coords.Box) bool {
	for i, p := range s.pending {
		if p.Box == box {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.examined++
			return true
		}
	}
	return false
}

// hit records a find at the given distance from the area center.
func (s *scheduler) hit(dist float64) {
	if !s.found || dist < s.best {
		s.best = dist
	}
	s.found = true
}

// settle drops the remaining cells once no further cell can improve the
// outcome.
func (s *scheduler) settle() {
	if !s.found {
		return
	}
	if s.shortCircuit || len(s.pending) == 0 || s.pending[0].Cost >= s.best {
		s.pending = nil
	}
}

func (s *scheduler) matched() TriState {
	if s.found && s.shortCircuit {
		return True
	}
	if len(s.pending) == 0 {
		return FromBool(s.found)
	}
	return Undecided
}

// Examined is the number of cells the leaf has consumed.
func (s *scheduler) Examined() int { return s.examined }
