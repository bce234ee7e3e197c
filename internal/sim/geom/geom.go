package geom

import (
	"fmt"
	"strings"
)

type Vec3i struct{ X, Y, Z int }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z) }

func (v Vec3i) Array() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func Manhattan(a, b Vec3i) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

func DistSq(a, b Vec3i) int {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return dx*dx + dy*dy + dz*dz
}

// Chebyshev is the per-axis max distance; used for "within N blocks" checks.
func Chebyshev(a, b Vec3i) int {
	m := absInt(a.X - b.X)
	if d := absInt(a.Y - b.Y); d > m {
		m = d
	}
	if d := absInt(a.Z - b.Z); d > m {
		m = d
	}
	return m
}

// StepToward moves at most n blocks toward dst, one axis at a time (x, then z, then y).
func StepToward(src, dst Vec3i, n int) Vec3i {
	cur := src
	for i := 0; i < n && cur != dst; i++ {
		switch {
		case cur.X != dst.X:
			cur.X += sign(dst.X - cur.X)
		case cur.Z != dst.Z:
			cur.Z += sign(dst.Z - cur.Z)
		default:
			cur.Y += sign(dst.Y - cur.Y)
		}
	}
	return cur
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

type Facing uint8

const (
	Down Facing = iota
	Up
	North
	South
	West
	East
)

var facingNames = [...]string{"DOWN", "UP", "NORTH", "SOUTH", "WEST", "EAST"}

func (f Facing) String() string {
	if int(f) < len(facingNames) {
		return facingNames[f]
	}
	return fmt.Sprintf("FACING(%d)", uint8(f))
}

func (f Facing) Valid() bool { return int(f) < len(facingNames) }

func ParseFacing(s string) (Facing, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range facingNames {
		if n == s {
			return Facing(i), true
		}
	}
	return Down, false
}

func (f Facing) Offset() Vec3i {
	switch f {
	case Down:
		return Vec3i{Y: -1}
	case Up:
		return Vec3i{Y: 1}
	case North:
		return Vec3i{Z: -1}
	case South:
		return Vec3i{Z: 1}
	case West:
		return Vec3i{X: -1}
	case East:
		return Vec3i{X: 1}
	}
	return Vec3i{}
}

func (f Facing) Opposite() Facing {
	switch f {
	case Down:
		return Up
	case Up:
		return Down
	case North:
		return South
	case South:
		return North
	case West:
		return East
	case East:
		return West
	}
	return f
}

// Anchor is where a seal sits: the block it is attached to and the face it is
// attached on. It is unique among live seals.
type Anchor struct {
	Pos  Vec3i
	Face Facing
}

// Front is the block directly in front of the seal (the side it faces).
func (a Anchor) Front() Vec3i { return a.Pos.Add(a.Face.Offset()) }

func (a Anchor) String() string { return a.Pos.String() + "/" + a.Face.String() }

// Less orders anchors deterministically (x, y, z, face).
func (a Anchor) Less(b Anchor) bool {
	if a.Pos.X != b.Pos.X {
		return a.Pos.X < b.Pos.X
	}
	if a.Pos.Y != b.Pos.Y {
		return a.Pos.Y < b.Pos.Y
	}
	if a.Pos.Z != b.Pos.Z {
		return a.Pos.Z < b.Pos.Z
	}
	return a.Face < b.Face
}
