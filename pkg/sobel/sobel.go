// Package sobel computes manual separable Sobel gradients over grayscale
// frames. A coordinator splits each frame's interior into regions, fans out
// one worker goroutine per region, and joins them before returning, so a
// caller never observes a partially written gradient field.
//
// 2D mode differentiates a single frame in x and y. 3D mode treats the
// prev/curr/next frames of a temporal window as a slab of the intensity
// volume I(x,y,t) and differentiates in x, y, and t.
package sobel

import (
	"fmt"
	"math"

	"edgeflow/internal/models"
	"edgeflow/pkg/kernel"
)

// Fields holds the gradient planes produced for one processed frame.
// GT and Direction are mode-dependent: GT is nil in 2D mode, Direction is nil
// in 3D mode (no orientation analogue is defined for the 3D gradient).
type Fields struct {
	GX        *models.GradientField
	GY        *models.GradientField
	GT        *models.GradientField
	Magnitude *models.GradientField
	Direction *models.GradientField
}

// newFields allocates the output planes for one frame.
func newFields(width, height int, temporal bool) *Fields {
	f := &Fields{
		GX:        models.NewGradientField(width, height),
		GY:        models.NewGradientField(width, height),
		Magnitude: models.NewGradientField(width, height),
	}
	if temporal {
		f.GT = models.NewGradientField(width, height)
	} else {
		f.Direction = models.NewGradientField(width, height)
	}
	return f
}

// Task assigns one region of one frame to a worker. The frames are shared
// read-only across all of a frame's workers; the output fields are shared but
// each worker writes only inside its own region, which is what makes the
// lock-free fan-out sound.
type Task struct {
	Region models.Region

	// Prev and Next are nil in 2D mode
	Prev *models.Frame
	Curr *models.Frame
	Next *models.Frame

	Out *Fields
}

// run executes the convolution for the task's region.
func (t Task) run() {
	if t.Prev != nil {
		t.convolve3D()
	} else {
		t.convolve2D()
	}
}

// convolve2D accumulates the separable 2D Sobel sums for every coordinate in
// the region: 9 multiply-adds per axis per pixel from the outer product of
// the 1D smoothing and derivative arrays.
func (t Task) convolve2D() {
	r := t.Region
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			var sumX, sumY float64

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					p := float64(t.Curr.At(x+dx, y+dy))
					sumX += p * float64(kernel.Weight2D(kernel.AxisX, dx, dy))
					sumY += p * float64(kernel.Weight2D(kernel.AxisY, dx, dy))
				}
			}

			t.Out.GX.Set(x, y, sumX)
			t.Out.GY.Set(x, y, sumY)
			t.Out.Magnitude.Set(x, y, math.Sqrt(sumX*sumX+sumY*sumY))
			t.Out.Direction.Set(x, y, math.Atan2(sumY, sumX))
		}
	}
}

// convolve3D accumulates the separable 3D sums over the 3x3x3 neighborhood
// spanning the prev/curr/next frames: 27 weighted terms per axis per voxel.
func (t Task) convolve3D() {
	frames := [3]*models.Frame{t.Prev, t.Curr, t.Next}
	r := t.Region

	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			var sumX, sumY, sumT float64

			for dt := -1; dt <= 1; dt++ {
				frame := frames[dt+1]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						p := float64(frame.At(x+dx, y+dy))
						sumX += p * float64(kernel.Weight3D(kernel.AxisX, dx, dy, dt))
						sumY += p * float64(kernel.Weight3D(kernel.AxisY, dx, dy, dt))
						sumT += p * float64(kernel.Weight3D(kernel.AxisT, dx, dy, dt))
					}
				}
			}

			t.Out.GX.Set(x, y, sumX)
			t.Out.GY.Set(x, y, sumY)
			t.Out.GT.Set(x, y, sumT)
			t.Out.Magnitude.Set(x, y, math.Sqrt(sumX*sumX+sumY*sumY+sumT*sumT))
		}
	}
}

// WorkerError reports a region worker that died before completing its region.
// It aborts the whole frame; the frame is never retried or partially kept.
type WorkerError struct {
	Region models.Region
	Cause  any
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("sobel: worker for region %+v failed: %v", e.Region, e.Cause)
}
