package window

import (
	"errors"
	"testing"

	"edgeflow/internal/models"
	"edgeflow/pkg/source"
)

// sliceSource serves a fixed run of frames and counts rewinds.
type sliceSource struct {
	frames []*models.Frame
	pos    int
	resets int
}

func (s *sliceSource) Next() (*models.Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, source.ErrEndOfStream
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceSource) Reset() error {
	s.pos = 0
	s.resets++
	return nil
}

func (s *sliceSource) Close() error { return nil }

func frameSeq(n, width, height int) []*models.Frame {
	frames := make([]*models.Frame, n)
	for i := range frames {
		f := models.NewFrame(width, height)
		f.Index = i
		for j := range f.Pix {
			f.Pix[j] = uint8(i)
		}
		frames[i] = f
	}
	return frames
}

// TestPrimeAndAdvance walks a 3-frame window across a 5-frame stream and
// checks the prev/curr/next ordering at each step.
func TestPrimeAndAdvance(t *testing.T) {
	src := &sliceSource{frames: frameSeq(5, 4, 4)}
	w, err := New(src, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := w.Prime(); err != nil {
		t.Fatalf("Prime failed: %v", err)
	}

	for step := 0; ; step++ {
		if got := w.Prev().Index; got != step {
			t.Errorf("step %d: prev index %d", step, got)
		}
		if got := w.Curr().Index; got != step+1 {
			t.Errorf("step %d: curr index %d", step, got)
		}
		if got := w.Next().Index; got != step+2 {
			t.Errorf("step %d: next index %d", step, got)
		}

		err := w.Advance()
		if errors.Is(err, source.ErrEndOfStream) {
			if step != 2 {
				t.Errorf("stream ended after %d advances, want 2", step)
			}
			break
		}
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
	}

	// The window is intact after end of stream.
	if w.Curr().Index != 3 {
		t.Errorf("curr index %d after end of stream, want 3", w.Curr().Index)
	}
}

// TestPrimeInsufficientFrames checks that a stream shorter than the window
// fails with ErrInsufficientFrames.
func TestPrimeInsufficientFrames(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		src := &sliceSource{frames: frameSeq(n, 4, 4)}
		w, err := New(src, 3)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := w.Prime(); !errors.Is(err, ErrInsufficientFrames) {
			t.Errorf("%d frames: expected ErrInsufficientFrames, got %v", n, err)
		}
	}

	// A 2-frame stream does satisfy a 2-frame window.
	src := &sliceSource{frames: frameSeq(2, 4, 4)}
	w, _ := New(src, 2)
	if err := w.Prime(); err != nil {
		t.Errorf("2-frame window over 2-frame stream: %v", err)
	}
}

// TestRePrimeAfterReset models looped playback: source rewound, window
// re-primed from the first frame.
func TestRePrimeAfterReset(t *testing.T) {
	src := &sliceSource{frames: frameSeq(3, 4, 4)}
	w, _ := New(src, 3)

	if err := w.Prime(); err != nil {
		t.Fatalf("Prime failed: %v", err)
	}
	if err := w.Advance(); !errors.Is(err, source.ErrEndOfStream) {
		t.Fatalf("expected immediate end of stream, got %v", err)
	}

	if err := src.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := w.Prime(); err != nil {
		t.Fatalf("re-Prime failed: %v", err)
	}
	if w.Curr().Index != 1 {
		t.Errorf("curr index %d after re-prime, want 1", w.Curr().Index)
	}
}

// TestMismatchedDimensionsRejected ensures the shared-dimension invariant is
// enforced both at prime and at advance time.
func TestMismatchedDimensionsRejected(t *testing.T) {
	frames := frameSeq(3, 4, 4)
	frames[2] = models.NewFrame(5, 4)
	src := &sliceSource{frames: frames}

	w, _ := New(src, 3)
	if err := w.Prime(); err == nil {
		t.Error("expected Prime to reject a mismatched frame")
	}

	frames = frameSeq(4, 4, 4)
	frames[3] = models.NewFrame(4, 6)
	src = &sliceSource{frames: frames}
	w, _ = New(src, 3)
	if err := w.Prime(); err != nil {
		t.Fatalf("Prime failed: %v", err)
	}
	if err := w.Advance(); err == nil {
		t.Error("expected Advance to reject a mismatched frame")
	}
}

// TestSingleFrameWindow covers the still-image degenerate case.
func TestSingleFrameWindow(t *testing.T) {
	src := &sliceSource{frames: frameSeq(2, 4, 4)}
	w, err := New(src, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Prime(); err != nil {
		t.Fatalf("Prime failed: %v", err)
	}

	if w.Prev() != nil || w.Next() != nil {
		t.Error("single-frame window has no prev/next")
	}
	if w.Curr().Index != 0 {
		t.Errorf("curr index %d, want 0", w.Curr().Index)
	}

	if err := w.Advance(); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if w.Curr().Index != 1 {
		t.Errorf("curr index %d after advance, want 1", w.Curr().Index)
	}
}
