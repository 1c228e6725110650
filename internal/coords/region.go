package coords

import "math"

// Region is an area of the world. Box is the sampling unit; Circle is a
// constraint shape tested against sampled boxes.
type Region interface {
	Contains(c Coordinates) bool
	Intersects(b Box) bool
	Bounds() Box
	// SmallestDistanceTo is a lower bound of the distance between c and
	// any coordinate contained in the region.
	SmallestDistanceTo(c Coordinates) float64
	Center() Coordinates
	Move(offset Coordinates) Region
}

// Box is a half-open rectangle: [Corner.X, Corner.X+Width) x [Corner.Y, Corner.Y+Height).
type Box struct {
	Corner        Coordinates
	Width, Height int64
}

func NewBox(x, y, width, height int64) Box {
	return Box{Corner: Blocks(x, y), Width: width, Height: height}
}

// BoxAround returns the square of side 2*radius centered on center.
func BoxAround(center Coordinates, radius int64) Box {
	return Box{
		Corner: center.Offset(-radius, -radius),
		Width:  2 * radius,
		Height: 2 * radius,
	}
}

func (b Box) NW() Coordinates { return b.Corner }

// SE is the exclusive south-east corner.
func (b Box) SE() Coordinates { return b.Corner.Offset(b.Width, b.Height) }

func (b Box) Empty() bool { return b.Width <= 0 || b.Height <= 0 }

func (b Box) Contains(c Coordinates) bool {
	b.Corner.mustMatch(c)
	return c.X >= b.Corner.X && c.X < b.Corner.X+b.Width &&
		c.Y >= b.Corner.Y && c.Y < b.Corner.Y+b.Height
}

func (b Box) Intersects(o Box) bool {
	b.Corner.mustMatch(o.Corner)
	if b.Empty() || o.Empty() {
		return false
	}
	return b.Corner.X < o.Corner.X+o.Width && o.Corner.X < b.Corner.X+b.Width &&
		b.Corner.Y < o.Corner.Y+o.Height && o.Corner.Y < b.Corner.Y+b.Height
}

// ContainsBox reports whether o lies entirely inside b.
func (b Box) ContainsBox(o Box) bool {
	b.Corner.mustMatch(o.Corner)
	return o.Corner.X >= b.Corner.X && o.Corner.Y >= b.Corner.Y &&
		o.Corner.X+o.Width <= b.Corner.X+b.Width &&
		o.Corner.Y+o.Height <= b.Corner.Y+b.Height
}

func (b Box) Bounds() Box { return b }

func (b Box) Center() Coordinates {
	return b.Corner.Offset(b.Width/2, b.Height/2)
}

func (b Box) Move(offset Coordinates) Region { return b.MoveBox(offset) }

func (b Box) MoveBox(offset Coordinates) Box {
	return Box{Corner: b.Corner.Add(offset), Width: b.Width, Height: b.Height}
}

// SmallestDistanceTo measures to the closest integer point inside b.
func (b Box) SmallestDistanceTo(c Coordinates) float64 {
	b.Corner.mustMatch(c)
	if b.Empty() {
		return math.Inf(1)
	}
	dx := axisGap(c.X, b.Corner.X, b.Corner.X+b.Width-1)
	dy := axisGap(c.Y, b.Corner.Y, b.Corner.Y+b.Height-1)
	return math.Hypot(float64(dx), float64(dy))
}

func axisGap(v, lo, hi int64) int64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

// In converts the box to res. Converting to a coarser resolution keeps
// every covered unit.
func (b Box) In(res Resolution) Box {
	if res == b.Corner.Res {
		return b
	}
	nw := b.NW().In(res)
	if res > b.Corner.Res {
		se := b.SE().SnapUp(res).In(res)
		return Box{Corner: nw, Width: se.X - nw.X, Height: se.Y - nw.Y}
	}
	s := b.Corner.Res - res
	return Box{Corner: nw, Width: b.Width << s, Height: b.Height << s}
}

// Circle is the closed disc of the given radius around Origin.
type Circle struct {
	Origin Coordinates
	Radius int64
}

func NewCircle(center Coordinates, radius int64) Circle {
	return Circle{Origin: center, Radius: radius}
}

func (c Circle) Contains(p Coordinates) bool {
	return c.Origin.DistanceSq(p) <= c.Radius*c.Radius
}

func (c Circle) Intersects(b Box) bool {
	if b.Empty() {
		return false
	}
	dx := axisGap(c.Origin.X, b.Corner.X, b.Corner.X+b.Width-1)
	dy := axisGap(c.Origin.Y, b.Corner.Y, b.Corner.Y+b.Height-1)
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

func (c Circle) Bounds() Box {
	return Box{
		Corner: c.Origin.Offset(-c.Radius, -c.Radius),
		Width:  2*c.Radius + 1,
		Height: 2*c.Radius + 1,
	}
}

func (c Circle) Center() Coordinates { return c.Origin }

func (c Circle) Move(offset Coordinates) Region {
	return Circle{Origin: c.Origin.Add(offset), Radius: c.Radius}
}

func (c Circle) SmallestDistanceTo(p Coordinates) float64 {
	d := c.Origin.Distance(p) - float64(c.Radius)
	if d < 0 {
		return 0
	}
	return d
}
