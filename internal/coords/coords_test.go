package coords

import (
	"math"
	"testing"
)

func TestCoordinates_InIsExactShift(t *testing.T) {
	c := Blocks(-37, 1029)
	q := c.In(Quarter)
	if q.X != -10 || q.Y != 257 || q.Res != Quarter {
		t.Fatalf("quarter: got %v", q)
	}
	back := q.In(World)
	if back.X != -40 || back.Y != 1028 {
		t.Fatalf("back to world: got %v", back)
	}
	if f := c.In(Fragment); f.X != -1 || f.Y != 2 {
		t.Fatalf("fragment: got %v", f)
	}
}

func TestCoordinates_SnapDownUp(t *testing.T) {
	cases := []struct {
		in       Coordinates
		down, up Coordinates
		step     Resolution
	}{
		{Blocks(0, 0), Blocks(0, 0), Blocks(0, 0), Fragment},
		{Blocks(1, -1), Blocks(0, -512), Blocks(512, 0), Fragment},
		{Blocks(-128, 128), Blocks(-512, 0), Blocks(0, 512), Fragment},
		{Blocks(17, 31), Blocks(16, 16), Blocks(32, 32), Chunk},
		{At(3, 5, Quarter), At(0, 4, Quarter), At(4, 8, Quarter), Chunk},
	}
	for _, tc := range cases {
		if got := tc.in.SnapDown(tc.step); got != tc.down {
			t.Fatalf("SnapDown(%v, %s) = %v, want %v", tc.in, tc.step, got, tc.down)
		}
		if got := tc.in.SnapUp(tc.step); got != tc.up {
			t.Fatalf("SnapUp(%v, %s) = %v, want %v", tc.in, tc.step, got, tc.up)
		}
	}
}

func TestCoordinates_MixedResolutionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	_ = Blocks(1, 1).Add(At(1, 1, Quarter))
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution(" Fragment ")
	if err != nil || r != Fragment {
		t.Fatalf("ParseResolution: %v %v", r, err)
	}
	if _, err := ParseResolution("tile"); err == nil {
		t.Fatalf("expected error")
	}
	if Fragment.Step() != 512 || Quarter.StepsPer(Chunk) != 4 {
		t.Fatalf("steps: %d %d", Fragment.Step(), Quarter.StepsPer(Chunk))
	}
}

func TestBox_ContainsAndIntersects(t *testing.T) {
	b := BoxAround(Origin(), 128)
	if !b.Contains(Blocks(-128, -128)) || b.Contains(Blocks(128, 0)) || !b.Contains(Blocks(127, 127)) {
		t.Fatalf("contains is not half-open: %+v", b)
	}
	if !b.Intersects(NewBox(127, 127, 10, 10)) {
		t.Fatalf("expected overlap at the corner")
	}
	if b.Intersects(NewBox(128, 0, 10, 10)) {
		t.Fatalf("touching boxes must not intersect")
	}
	if b.Intersects(NewBox(0, 0, 0, 10)) {
		t.Fatalf("empty box must not intersect")
	}
}

func TestBox_SmallestDistanceTo(t *testing.T) {
	cell := NewBox(0, 0, 512, 512)
	if d := cell.SmallestDistanceTo(Blocks(10, 10)); d != 0 {
		t.Fatalf("inside: %v", d)
	}
	if d := cell.SmallestDistanceTo(Blocks(-3, 515)); d != 5 {
		t.Fatalf("outside: %v", d)
	}
	neg := NewBox(-512, -512, 512, 512)
	if d := neg.SmallestDistanceTo(Origin()); math.Abs(d-math.Sqrt2) > 1e-9 {
		t.Fatalf("closest contained point is (-1,-1): %v", d)
	}
}

func TestCircle(t *testing.T) {
	c := NewCircle(Blocks(100, 100), 50)
	if !c.Contains(Blocks(150, 100)) || c.Contains(Blocks(136, 136)) {
		t.Fatalf("contains")
	}
	if !c.Intersects(NewBox(135, 135, 10, 10)) {
		t.Fatalf("expected intersection")
	}
	if c.Intersects(NewBox(137, 137, 10, 10)) {
		t.Fatalf("closest point (137,137) is outside the radius")
	}
	if c.Intersects(NewBox(200, 200, 10, 10)) {
		t.Fatalf("far box must not intersect")
	}
	if d := c.SmallestDistanceTo(Blocks(100, 200)); d != 50 {
		t.Fatalf("distance: %v", d)
	}
	if b := c.Bounds(); b.Corner != Blocks(50, 50) || b.Width != 101 {
		t.Fatalf("bounds: %+v", b)
	}
	moved := c.Move(Blocks(-100, -100))
	if moved.Center() != Origin() {
		t.Fatalf("move: %v", moved.Center())
	}
}

func TestBox_In(t *testing.T) {
	b := NewBox(-5, 3, 10, 2)
	q := b.In(Quarter)
	if q.Corner != At(-2, 0, Quarter) || q.Width != 4 || q.Height != 2 {
		t.Fatalf("quarter box: %+v", q)
	}
	w := q.In(World)
	if w.Corner != Blocks(-8, 0) || w.Width != 16 || w.Height != 8 {
		t.Fatalf("world box: %+v", w)
	}
}
