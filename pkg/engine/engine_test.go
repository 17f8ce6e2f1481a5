package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"edgeflow/internal/models"
	"edgeflow/pkg/partition"
	"edgeflow/pkg/sink"
	"edgeflow/pkg/source"
	"edgeflow/pkg/window"
)

// memorySource serves a fixed run of frames and tracks lifecycle calls.
type memorySource struct {
	frames []*models.Frame
	pos    int
	resets int
	closed bool
}

func (s *memorySource) Next() (*models.Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, source.ErrEndOfStream
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *memorySource) Reset() error {
	s.pos = 0
	s.resets++
	return nil
}

func (s *memorySource) Close() error {
	s.closed = true
	return nil
}

func newMemorySource(n, width, height int) *memorySource {
	frames := make([]*models.Frame, n)
	for i := range frames {
		f := models.NewFrame(width, height)
		f.Index = i
		for j := range f.Pix {
			x := j % width
			if x >= width/2 {
				f.Pix[j] = 255
			}
		}
		frames[i] = f
	}
	return &memorySource{frames: frames}
}

// collectSink records every lock-step write.
type collectSink struct {
	writes []sink.ChannelFrames
	closed bool
}

func (s *collectSink) Write(frames sink.ChannelFrames) error {
	s.writes = append(s.writes, frames)
	return nil
}

func (s *collectSink) Close() error {
	s.closed = true
	return nil
}

func opener(s *collectSink) SinkOpener {
	return func(width, height int) (sink.Sink, error) {
		return s, nil
	}
}

// stopAfter is a display that requests termination after n rendered steps.
type stopAfter struct {
	n        int
	rendered int
}

func (d *stopAfter) Render(step int, frames sink.ChannelFrames) {
	d.rendered++
}

func (d *stopAfter) StopRequested() bool {
	return d.rendered >= d.n
}

func runEngine(t *testing.T, cfg Config, src *memorySource, out *collectSink, display Display) (*Metrics, error) {
	t.Helper()
	e, err := New(cfg, src, opener(out), display)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e.Run(context.Background())
}

// TestRun2DProcessesAllButLookahead verifies the streaming 2D step count and
// the channel set of every write.
func TestRun2DProcessesAllButLookahead(t *testing.T) {
	src := newMemorySource(5, 12, 10)
	out := &collectSink{}

	metrics, err := runEngine(t, Config{Mode: Mode2D, Grid: partition.DefaultGrid()}, src, out, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if metrics.Steps != 4 {
		t.Errorf("Steps = %d, want 4 (five frames, one of lookahead)", metrics.Steps)
	}
	if len(out.writes) != 4 {
		t.Errorf("sink received %d writes, want 4", len(out.writes))
	}
	if !out.closed || !src.closed {
		t.Error("sink and source must be released on the normal exit path")
	}

	for i, frames := range out.writes {
		for _, ch := range []models.Channel{
			models.ChannelOriginal, models.ChannelGX, models.ChannelGY,
			models.ChannelMagnitude, models.ChannelDirection,
		} {
			if frames[ch] == nil {
				t.Fatalf("write %d missing channel %s", i, ch)
			}
		}
		if frames[models.ChannelGT] != nil {
			t.Fatalf("write %d carries Gt in 2D mode", i)
		}
		if frames[models.ChannelOriginal].Index != i {
			t.Errorf("write %d carries original frame %d", i, frames[models.ChannelOriginal].Index)
		}
	}

	if metrics.MeanMagnitude <= 0 {
		t.Errorf("step-edge frames should produce a positive mean magnitude, got %v", metrics.MeanMagnitude)
	}
}

// TestRun3DStepCountAndChannels checks the temporal mode: N frames yield N-2
// steps, each carrying Gt and no direction plane.
func TestRun3DStepCountAndChannels(t *testing.T) {
	src := newMemorySource(5, 12, 10)
	out := &collectSink{}

	metrics, err := runEngine(t, Config{Mode: Mode3D, Grid: partition.DefaultGrid()}, src, out, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if metrics.Steps != 3 {
		t.Errorf("Steps = %d, want 3", metrics.Steps)
	}
	for i, frames := range out.writes {
		if frames[models.ChannelGT] == nil {
			t.Fatalf("write %d missing Gt in 3D mode", i)
		}
		if frames[models.ChannelDirection] != nil {
			t.Fatalf("write %d carries a direction plane in 3D mode", i)
		}
		// The processed frame is the window center: indices 1, 2, 3.
		if frames[models.ChannelOriginal].Index != i+1 {
			t.Errorf("write %d carries original frame %d, want %d", i, frames[models.ChannelOriginal].Index, i+1)
		}
	}
}

// TestRunStillProcessesEveryFrame covers the still-image mode.
func TestRunStillProcessesEveryFrame(t *testing.T) {
	src := newMemorySource(3, 8, 8)
	out := &collectSink{}

	metrics, err := runEngine(t, Config{Mode: ModeStill, Grid: partition.DefaultGrid()}, src, out, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if metrics.Steps != 3 {
		t.Errorf("Steps = %d, want 3", metrics.Steps)
	}
}

// TestInsufficientFramesIsFatal primes 3D mode over streams that are too
// short; the run must fail with ErrInsufficientFrames and still release the
// sink and source.
func TestInsufficientFramesIsFatal(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		src := newMemorySource(n, 8, 8)
		out := &collectSink{}

		_, err := runEngine(t, Config{Mode: Mode3D, Grid: partition.DefaultGrid()}, src, out, nil)
		if !errors.Is(err, window.ErrInsufficientFrames) {
			t.Errorf("%d frames: expected ErrInsufficientFrames, got %v", n, err)
		}
		if !src.closed {
			t.Errorf("%d frames: source not released on the error path", n)
		}
		if len(out.writes) != 0 {
			t.Errorf("%d frames: sink received writes despite failed priming", n)
		}
	}
}

// TestSinkOpenFailureIsFatal propagates a failed sink open and releases the
// source.
func TestSinkOpenFailureIsFatal(t *testing.T) {
	src := newMemorySource(5, 8, 8)
	openErr := &sink.OpenError{Attempts: []error{fmt.Errorf("mp4v/.mp4: no encoder")}}

	e, err := New(Config{Mode: Mode2D, Grid: partition.DefaultGrid()}, src,
		func(width, height int) (sink.Sink, error) { return nil, openErr },
		nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, runErr := e.Run(context.Background())
	var oe *sink.OpenError
	if !errors.As(runErr, &oe) {
		t.Fatalf("expected *sink.OpenError, got %v", runErr)
	}
	if !src.closed {
		t.Error("source not released after sink open failure")
	}
}

// TestLoopUntilDisplayStops enables looping over a short stream and lets the
// display stop the run after a fixed number of rendered steps.
func TestLoopUntilDisplayStops(t *testing.T) {
	src := newMemorySource(3, 8, 8)
	out := &collectSink{}
	display := &stopAfter{n: 7}

	metrics, err := runEngine(t, Config{Mode: Mode3D, Grid: partition.DefaultGrid(), Loop: true}, src, out, display)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A 3-frame stream yields one 3D step per pass, so 7 steps take 6 loops.
	if metrics.Steps != 7 {
		t.Errorf("Steps = %d, want 7", metrics.Steps)
	}
	if metrics.Loops != 6 {
		t.Errorf("Loops = %d, want 6", metrics.Loops)
	}
	if len(out.writes) != 7 {
		t.Errorf("sink received %d writes, want 7", len(out.writes))
	}
	if !out.closed {
		t.Error("sink not closed after display stop")
	}
}

// TestEndOfStreamWithoutLoopTerminates makes sure end of stream is a clean
// termination, not an error, when looping is disabled.
func TestEndOfStreamWithoutLoopTerminates(t *testing.T) {
	src := newMemorySource(4, 8, 8)
	out := &collectSink{}

	if _, err := runEngine(t, Config{Mode: Mode3D, Grid: partition.DefaultGrid(), Loop: false}, src, out, nil); err != nil {
		t.Fatalf("end of stream surfaced as an error: %v", err)
	}
}

// TestCancellationSampledAtFrameBoundary cancels the context before the run
// starts: the in-flight frame still completes and is written, then the loop
// terminates cleanly.
func TestCancellationSampledAtFrameBoundary(t *testing.T) {
	src := newMemorySource(10, 8, 8)
	out := &collectSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(Config{Mode: Mode2D, Grid: partition.DefaultGrid(), Loop: true}, src, opener(out), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	metrics, runErr := e.Run(ctx)
	if runErr != nil {
		t.Fatalf("cancellation surfaced as an error: %v", runErr)
	}
	if metrics.Steps != 1 {
		t.Errorf("Steps = %d, want exactly 1 (boundary check after the first frame)", metrics.Steps)
	}
	if !out.closed || !src.closed {
		t.Error("sink and source must be released after cancellation")
	}
}

// TestUniformStreamHasZeroMetrics runs flat frames through 2D mode; the
// magnitude statistics must be exactly zero, never NaN.
func TestUniformStreamHasZeroMetrics(t *testing.T) {
	frames := make([]*models.Frame, 4)
	for i := range frames {
		f := models.NewFrame(8, 8)
		for j := range f.Pix {
			f.Pix[j] = 99
		}
		frames[i] = f
	}
	src := &memorySource{frames: frames}
	out := &collectSink{}

	metrics, err := runEngine(t, Config{Mode: Mode2D, Grid: partition.DefaultGrid()}, src, out, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if metrics.MeanMagnitude != 0 || metrics.MaxMagnitude != 0 || metrics.EdgeDensity != 0 {
		t.Errorf("uniform stream metrics = %+v, want all-zero magnitude stats", metrics)
	}

	// The normalized outputs of a degenerate field are all-zero bytes.
	for _, frames := range out.writes {
		for _, p := range frames[models.ChannelMagnitude].Pix {
			if p != 0 {
				t.Fatal("normalized magnitude of a uniform frame must be all zero")
			}
		}
	}
}
