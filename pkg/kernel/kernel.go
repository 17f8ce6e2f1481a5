// Package kernel provides the separable Sobel coefficient sets used by the
// convolution workers. A Sobel kernel for any axis is the outer product of a
// 1D derivative array along that axis with 1D smoothing arrays along the
// remaining axes; the package exposes the 1D arrays and the per-offset weight
// products, never a precomputed dense mask.
package kernel

// Smoothing is the 1D binomial smoothing array applied along every
// non-derivative axis.
var Smoothing = [3]int{1, 2, 1}

// Derivative is the 1D central-difference array applied along the
// derivative axis.
var Derivative = [3]int{-1, 0, 1}

// Axis selects which axis of the separable kernel carries the derivative.
type Axis int

const (
	// AxisX differentiates horizontally (Gx)
	AxisX Axis = iota
	// AxisY differentiates vertically (Gy)
	AxisY
	// AxisT differentiates along time (Gt, 3D mode only)
	AxisT
)

// String returns the axis name used in logging.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisT:
		return "t"
	default:
		return "unknown"
	}
}

// Weight2D returns the kernel weight for the neighbor at offset (dx, dy),
// each in -1..+1, for a 2D gradient along the given axis:
//
//	Gx = derivative_x (x) smoothing_y
//	Gy = smoothing_x  (x) derivative_y
//
// Summing Weight2D over the 3x3 neighborhood reproduces the canonical Sobel
// masks exactly.
func Weight2D(axis Axis, dx, dy int) int {
	switch axis {
	case AxisX:
		return Derivative[dx+1] * Smoothing[dy+1]
	case AxisY:
		return Smoothing[dx+1] * Derivative[dy+1]
	default:
		return 0
	}
}

// Weight3D returns the kernel weight for the neighbor at offset (dx, dy, dt),
// each in -1..+1, for a 3D gradient along the given axis. The derivative is
// taken along the selected axis and smoothing along the other two, so each
// output sample is a sum of 27 weighted terms built from the 1D arrays.
func Weight3D(axis Axis, dx, dy, dt int) int {
	switch axis {
	case AxisX:
		return Derivative[dx+1] * Smoothing[dy+1] * Smoothing[dt+1]
	case AxisY:
		return Smoothing[dx+1] * Derivative[dy+1] * Smoothing[dt+1]
	case AxisT:
		return Smoothing[dx+1] * Smoothing[dy+1] * Derivative[dt+1]
	default:
		return 0
	}
}
