package sobel

import (
	"fmt"

	"edgeflow/internal/models"
	"edgeflow/pkg/partition"
)

// Coordinator dispatches one convolution worker per partitioned region and
// joins them. The join is a full barrier: Process and ProcessWindow return
// only after every worker has finished, so all field writes are visible to
// the caller without any locking.
type Coordinator struct {
	grid partition.Grid
}

// NewCoordinator creates a coordinator using the given region grid.
func NewCoordinator(grid partition.Grid) (*Coordinator, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{grid: grid}, nil
}

// Grid returns the coordinator's region grid.
func (c *Coordinator) Grid() partition.Grid {
	return c.grid
}

// Process computes the 2D gradient fields of a single frame.
func (c *Coordinator) Process(frame *models.Frame) (*Fields, error) {
	return c.dispatch(nil, frame, nil)
}

// ProcessWindow computes the 3D gradient fields of the window's current
// frame from the prev/curr/next slab. All three frames must share the same
// dimensions; the temporal window guarantees that.
func (c *Coordinator) ProcessWindow(prev, curr, next *models.Frame) (*Fields, error) {
	if !curr.SameSize(prev) || !curr.SameSize(next) {
		return nil, fmt.Errorf("sobel: window frames disagree on dimensions")
	}
	return c.dispatch(prev, curr, next)
}

// dispatch partitions the frame interior, verifies the partition invariant,
// launches one goroutine per region, and blocks until all have reported.
func (c *Coordinator) dispatch(prev, curr, next *models.Frame) (*Fields, error) {
	interior := partition.Interior(curr.Width, curr.Height)
	regions := c.grid.Split(interior)

	// A broken partition would be a silent race on the shared output
	// buffers, so it is checked before any worker starts.
	if err := partition.Verify(interior, regions); err != nil {
		return nil, err
	}

	out := newFields(curr.Width, curr.Height, prev != nil)

	done := make(chan *WorkerError, len(regions))
	for _, region := range regions {
		task := Task{
			Region: region,
			Prev:   prev,
			Curr:   curr,
			Next:   next,
			Out:    out,
		}

		go func(task Task) {
			defer func() {
				if cause := recover(); cause != nil {
					done <- &WorkerError{Region: task.Region, Cause: cause}
					return
				}
				done <- nil
			}()
			task.run()
		}(task)
	}

	// Join barrier: every worker must report before the fields are handed
	// out, even when one of them failed.
	var failed *WorkerError
	for range regions {
		if werr := <-done; werr != nil && failed == nil {
			failed = werr
		}
	}
	if failed != nil {
		return nil, failed
	}

	return out, nil
}
