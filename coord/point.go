// Package coord holds stage coordinates in device step units.
package coord

import "strconv"

// Point is a location in stage step space.
type Point struct{ X, Y int }

func (p Point) Equal(b Point) bool {
	return p.X == b.X && p.Y == b.Y
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	return p
}

// Scale multiplies each axis by the matching axis of step.
//
// It is used to turn a grid index into a step target.
func (p Point) Scale(step Point) Point {
	p.X *= step.X
	p.Y *= step.Y
	return p
}

// Steps returns the number of motor steps needed to travel from p to target
// with both axes moving one after the other.
func (p Point) Steps(target Point) int {
	return abs(target.X-p.X) + abs(target.Y-p.Y)
}

func (p Point) String() string {
	return "(" + strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y) + ")"
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
