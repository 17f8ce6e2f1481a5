package engine

import (
	"gonum.org/v1/gonum/stat"

	"edgeflow/pkg/sobel"
)

// Metrics summarizes a run: how much was processed and how strong the
// detected edges were. The gradient statistics are computed over the frame
// interior only, since the border ring is defined as zero.
type Metrics struct {
	// Steps is the number of processed frames written to the sink.
	Steps int

	// Loops counts how many times playback restarted from the first frame.
	Loops int

	// MeanMagnitude is the mean of the per-step interior magnitude means.
	MeanMagnitude float64

	// StdDevMagnitude is the standard deviation of the per-step magnitude
	// means; a rough measure of how much edge activity varies over time.
	StdDevMagnitude float64

	// MaxMagnitude is the largest gradient magnitude seen in the run.
	MaxMagnitude float64

	// EdgeDensity is the mean fraction of interior samples per step whose
	// magnitude exceeds half of that step's maximum.
	EdgeDensity float64

	stepMeans     []float64
	stepDensities []float64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

// observe accumulates one step's gradient statistics.
func (m *Metrics) observe(fields *sobel.Fields, width, height int) {
	m.Steps++

	var sum, max float64
	var count int
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			v := fields.Magnitude.At(x, y)
			sum += v
			if v > max {
				max = v
			}
			count++
		}
	}
	if count == 0 {
		return
	}

	if max > m.MaxMagnitude {
		m.MaxMagnitude = max
	}

	edges := 0
	if max > 0 {
		threshold := max / 2
		for y := 1; y < height-1; y++ {
			for x := 1; x < width-1; x++ {
				if fields.Magnitude.At(x, y) > threshold {
					edges++
				}
			}
		}
	}

	m.stepMeans = append(m.stepMeans, sum/float64(count))
	m.stepDensities = append(m.stepDensities, float64(edges)/float64(count))
}

// finish folds the per-step samples into the summary statistics.
func (m *Metrics) finish() {
	if len(m.stepMeans) == 0 {
		return
	}

	m.MeanMagnitude = stat.Mean(m.stepMeans, nil)
	if len(m.stepMeans) > 1 {
		m.StdDevMagnitude = stat.StdDev(m.stepMeans, nil)
	}
	m.EdgeDensity = stat.Mean(m.stepDensities, nil)
}
