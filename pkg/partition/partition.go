// Package partition divides a frame's interior into rectangular regions for
// parallel convolution. The default 2x2 grid reproduces the quadrant
// decomposition via width/height midpoints; arbitrary MxN grids and 1D strips
// are supported so the fan-out can scale with available cores.
package partition

import (
	"fmt"

	"edgeflow/internal/models"
)

// Grid describes the region decomposition of a frame interior.
type Grid struct {
	// Rows and Cols are the target number of cells along each axis.
	// Axes with fewer interior samples than cells collapse to fewer cells
	// rather than producing empty regions.
	Rows int
	Cols int
}

// DefaultGrid returns the quadrant decomposition used by default.
func DefaultGrid() Grid {
	return Grid{Rows: 2, Cols: 2}
}

// Validate checks that the grid has at least one cell along each axis.
func (g Grid) Validate() error {
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("partition: grid must be at least 1x1, got %dx%d", g.Rows, g.Cols)
	}
	return nil
}

// Interior returns the interior rectangle of a width x height frame: all
// coordinates at least one sample away from every border, where a full 3x3
// convolution neighborhood exists.
func Interior(width, height int) models.Region {
	return models.Region{X0: 1, X1: width - 1, Y0: 1, Y1: height - 1}
}

// Split decomposes the interior into the grid's regions. The returned regions
// exactly partition the interior: every interior coordinate belongs to one
// region and no coordinate belongs to two. Cell boundaries are computed as
// i*extent/cells, so a 2x2 grid splits at the midpoints.
//
// An interior with no samples yields no regions. An axis with fewer samples
// than requested cells collapses to one cell per sample.
func (g Grid) Split(interior models.Region) []models.Region {
	if interior.Empty() {
		return nil
	}

	cols := g.Cols
	if dx := interior.Dx(); cols > dx {
		cols = dx
	}
	rows := g.Rows
	if dy := interior.Dy(); rows > dy {
		rows = dy
	}

	regions := make([]models.Region, 0, rows*cols)
	for row := 0; row < rows; row++ {
		y0 := interior.Y0 + row*interior.Dy()/rows
		y1 := interior.Y0 + (row+1)*interior.Dy()/rows

		for col := 0; col < cols; col++ {
			x0 := interior.X0 + col*interior.Dx()/cols
			x1 := interior.X0 + (col+1)*interior.Dx()/cols

			regions = append(regions, models.Region{X0: x0, X1: x1, Y0: y0, Y1: y1})
		}
	}

	return regions
}

// Verify checks the partition invariant: the regions cover every interior
// coordinate exactly once. Workers write shared gradient buffers without
// locking, so a violation here is a silent data race, not a crash; the engine
// verifies the partition before dispatching rather than trusting it.
func Verify(interior models.Region, regions []models.Region) error {
	if interior.Empty() {
		if len(regions) != 0 {
			return fmt.Errorf("partition: %d regions for an empty interior", len(regions))
		}
		return nil
	}

	covered := make([]int, interior.Area())
	width := interior.Dx()

	for _, r := range regions {
		if r.Empty() {
			return fmt.Errorf("partition: empty region %+v", r)
		}
		if r.X0 < interior.X0 || r.X1 > interior.X1 || r.Y0 < interior.Y0 || r.Y1 > interior.Y1 {
			return fmt.Errorf("partition: region %+v exceeds interior %+v", r, interior)
		}
		for y := r.Y0; y < r.Y1; y++ {
			for x := r.X0; x < r.X1; x++ {
				covered[(y-interior.Y0)*width+(x-interior.X0)]++
			}
		}
	}

	for i, n := range covered {
		if n != 1 {
			x := interior.X0 + i%width
			y := interior.Y0 + i/width
			return fmt.Errorf("partition: coordinate (%d,%d) covered %d times, want exactly once", x, y, n)
		}
	}

	return nil
}
