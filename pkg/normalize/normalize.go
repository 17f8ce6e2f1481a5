// Package normalize rescales floating gradient fields into the bounded 8-bit
// range used for display and encoding.
package normalize

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"edgeflow/internal/models"
)

// To8Bit linearly rescales a field to [0,255] via (v-min)/(max-min)*255 and
// returns it as an 8-bit frame. When absFirst is set the pointwise absolute
// value is taken before rescaling, which is how the signed Gx/Gy/Gt planes
// are visualized; the magnitude plane is rescaled raw.
//
// A degenerate field with min == max (an all-zero field included) maps every
// sample to 0. That is an explicit branch: dividing by the zero span would
// leak NaN into the output.
func To8Bit(field *models.GradientField, absFirst bool) *models.Frame {
	values := field.Data
	if absFirst {
		values = make([]float64, len(field.Data))
		for i, v := range field.Data {
			values[i] = math.Abs(v)
		}
	}

	out := models.NewFrame(field.Width, field.Height)
	if len(values) == 0 {
		return out
	}

	min := floats.Min(values)
	max := floats.Max(values)
	if min == max {
		return out
	}

	span := max - min
	for i, v := range values {
		out.Pix[i] = uint8((v - min) / span * 255)
	}

	return out
}
