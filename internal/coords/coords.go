package coords

import (
	"fmt"
	"math"
)

// Coordinates is an integer position tagged with the resolution it is
// expressed in. Arithmetic only combines coordinates of equal resolution.
type Coordinates struct {
	X, Y int64
	Res  Resolution
}

func At(x, y int64, res Resolution) Coordinates {
	return Coordinates{X: x, Y: y, Res: res}
}

// Blocks returns world-resolution coordinates.
func Blocks(x, y int64) Coordinates {
	return Coordinates{X: x, Y: y, Res: World}
}

func Origin() Coordinates { return Coordinates{} }

func (c Coordinates) mustMatch(o Coordinates) {
	if c.Res != o.Res {
		panic(fmt.Sprintf("coords: mixing %s and %s coordinates", c.Res, o.Res))
	}
}

func (c Coordinates) Add(o Coordinates) Coordinates {
	c.mustMatch(o)
	return Coordinates{X: c.X + o.X, Y: c.Y + o.Y, Res: c.Res}
}

func (c Coordinates) Sub(o Coordinates) Coordinates {
	c.mustMatch(o)
	return Coordinates{X: c.X - o.X, Y: c.Y - o.Y, Res: c.Res}
}

func (c Coordinates) Offset(dx, dy int64) Coordinates {
	return Coordinates{X: c.X + dx, Y: c.Y + dy, Res: c.Res}
}

// In converts c to res. Converting to a coarser resolution floors.
func (c Coordinates) In(res Resolution) Coordinates {
	switch {
	case res == c.Res:
		return c
	case res > c.Res:
		s := res - c.Res
		return Coordinates{X: c.X >> s, Y: c.Y >> s, Res: res}
	default:
		s := c.Res - res
		return Coordinates{X: c.X << s, Y: c.Y << s, Res: res}
	}
}

// SnapDown aligns c down to the grid of the coarser resolution step,
// staying in c's own resolution.
func (c Coordinates) SnapDown(step Resolution) Coordinates {
	m := mask(c.Res, step)
	return Coordinates{X: c.X &^ m, Y: c.Y &^ m, Res: c.Res}
}

// SnapUp aligns c up to the grid of step. Aligned values are unchanged.
func (c Coordinates) SnapUp(step Resolution) Coordinates {
	m := mask(c.Res, step)
	return Coordinates{X: (c.X + m) &^ m, Y: (c.Y + m) &^ m, Res: c.Res}
}

func mask(res, step Resolution) int64 {
	if step < res {
		panic(fmt.Sprintf("coords: cannot snap %s coordinates to %s", res, step))
	}
	return (int64(1) << (step - res)) - 1
}

func (c Coordinates) DistanceSq(o Coordinates) int64 {
	c.mustMatch(o)
	dx := c.X - o.X
	dy := c.Y - o.Y
	return dx*dx + dy*dy
}

func (c Coordinates) Distance(o Coordinates) float64 {
	c.mustMatch(o)
	return math.Hypot(float64(c.X-o.X), float64(c.Y-o.Y))
}

func (c Coordinates) String() string {
	if c.Res == World {
		return fmt.Sprintf("[%d, %d]", c.X, c.Y)
	}
	return fmt.Sprintf("[%d, %d]@%s", c.X, c.Y, c.Res)
}
