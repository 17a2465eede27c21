// Package scan plans and runs tiled image scans.
package scan

import (
	"strconv"

	"github.com/mastercactapus/tilescan/coord"
)

// Tile is one cell of the scan grid.
type Tile struct {
	Col, Row int
}

// Target returns the stage position for t given the step size per tile.
func (t Tile) Target(step coord.Point) coord.Point {
	return coord.Point{X: t.Col, Y: t.Row}.Scale(step)
}

func (t Tile) String() string {
	return "col=" + strconv.Itoa(t.Col) + " row=" + strconv.Itoa(t.Row)
}

// Plan returns every tile of a width x height grid in snake order: even rows
// left to right, odd rows right to left. This avoids a long return stroke at
// the end of every row.
//
// An empty grid gives an empty plan.
func Plan(width, height int) []Tile {
	if width <= 0 || height <= 0 {
		return []Tile{}
	}
	res := make([]Tile, 0, width*height)
	for row := 0; row < height; row++ {
		for x := 0; x < width; x++ {
			col := x
			if row%2 != 0 {
				col = width - 1 - x
			}
			res = append(res, Tile{Col: col, Row: row})
		}
	}
	return res
}

// TravelSteps returns the step distance covered visiting plan in order from
// the origin.
func TravelSteps(plan []Tile, step coord.Point) int {
	var total int
	var pos coord.Point
	for _, t := range plan {
		next := t.Target(step)
		total += pos.Steps(next)
		pos = next
	}
	return total
}
