package models

import (
	"image"
	"image/color"
)

// Frame represents a single grayscale frame of the intensity volume I(x,y,t).
// Samples are 8-bit unsigned, stored in row-major order.
type Frame struct {
	// Pix holds the grayscale samples, Width*Height bytes in row-major order
	Pix []uint8

	// Width and Height are the frame dimensions in samples
	Width  int
	Height int

	// Index is the position of this frame in the source sequence,
	// counted from zero and preserved across source restarts
	Index int
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// FrameFromImage converts an arbitrary decoded image into a grayscale frame
// using the standard luma weights provided by the image/color package.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy())

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			f.Pix[y*f.Width+x] = g.Y
		}
	}

	return f
}

// At returns the sample at (x, y). Callers are responsible for bounds.
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// SameSize reports whether two frames share identical dimensions.
// All frames held by a temporal window must satisfy this.
func (f *Frame) SameSize(other *Frame) bool {
	return other != nil && f.Width == other.Width && f.Height == other.Height
}

// ToImage converts the frame back into an 8-bit grayscale image.
func (f *Frame) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.Pix)
	return img
}

// GradientField is a floating-point plane holding one gradient component
// (Gx, Gy, Gt), the magnitude, or the direction for a single frame.
// The 1-sample border ring is never written and stays zero, because no full
// convolution neighborhood exists there.
type GradientField struct {
	// Data holds the field values, Width*Height in row-major order
	Data []float64

	// Width and Height match the dimensions of the source frame
	Width  int
	Height int
}

// NewGradientField allocates a zeroed field of the given dimensions.
func NewGradientField(width, height int) *GradientField {
	return &GradientField{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// At returns the field value at (x, y). Callers are responsible for bounds.
func (g *GradientField) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

// Set writes the field value at (x, y). Callers are responsible for bounds.
func (g *GradientField) Set(x, y int, v float64) {
	g.Data[y*g.Width+x] = v
}

// Region is a half-open rectangle [X0,X1)x[Y0,Y1) assigned to exactly one
// convolution worker. The set of regions produced for a frame partitions the
// frame interior with no gaps and no overlaps; workers rely on that to write
// shared buffers without locking.
type Region struct {
	X0, X1 int
	Y0, Y1 int
}

// Dx returns the region width in samples.
func (r Region) Dx() int { return r.X1 - r.X0 }

// Dy returns the region height in samples.
func (r Region) Dy() int { return r.Y1 - r.Y0 }

// Empty reports whether the region contains no samples.
func (r Region) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Area returns the number of samples covered by the region.
func (r Region) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// Channel identifies one of the derived output planes produced per step.
type Channel int

const (
	ChannelOriginal Channel = iota
	ChannelGX
	ChannelGY
	ChannelGT
	ChannelMagnitude
	ChannelDirection
)

// String returns the channel name used for output files and logging.
func (c Channel) String() string {
	switch c {
	case ChannelOriginal:
		return "original"
	case ChannelGX:
		return "gx"
	case ChannelGY:
		return "gy"
	case ChannelGT:
		return "gt"
	case ChannelMagnitude:
		return "magnitude"
	case ChannelDirection:
		return "direction"
	default:
		return "unknown"
	}
}
