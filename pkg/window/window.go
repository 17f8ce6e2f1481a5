// Package window maintains the sliding run of consecutive frames the
// processing loop needs: a single frame for still images, a two-frame
// lookahead for streaming 2D, and the prev/curr/next triple that the 3D
// temporal derivative is computed over.
package window

import (
	"errors"
	"fmt"

	"edgeflow/internal/models"
	"edgeflow/pkg/source"
)

// ErrInsufficientFrames is returned by Prime when the source ends before the
// window is full. Priming needs at least as many frames as the window holds;
// a shorter stream is fatal for the run.
var ErrInsufficientFrames = errors.New("window: source has fewer frames than the window requires")

// Window holds size consecutive same-dimension frames pulled from a source.
// Size 3 is the temporal window of 3D mode; size 2 is the streaming 2D
// lookahead; size 1 degenerates to a plain cursor for still images.
type Window struct {
	src    source.Source
	size   int
	frames []*models.Frame
}

// New creates an unprimed window over the source.
func New(src source.Source, size int) (*Window, error) {
	if size < 1 || size > 3 {
		return nil, fmt.Errorf("window: size must be 1..3, got %d", size)
	}
	return &Window{src: src, size: size}, nil
}

// Prime fills the window from the start of the source. It is also how the
// window is refilled after the source is rewound for looped playback.
// All pulled frames must share the same dimensions.
func (w *Window) Prime() error {
	w.frames = w.frames[:0]

	for len(w.frames) < w.size {
		frame, err := w.src.Next()
		if errors.Is(err, source.ErrEndOfStream) {
			return fmt.Errorf("%w: got %d, need %d", ErrInsufficientFrames, len(w.frames), w.size)
		}
		if err != nil {
			return err
		}
		if len(w.frames) > 0 && !w.frames[0].SameSize(frame) {
			return fmt.Errorf("window: frame %d is %dx%d, window is %dx%d",
				frame.Index, frame.Width, frame.Height, w.frames[0].Width, w.frames[0].Height)
		}
		w.frames = append(w.frames, frame)
	}

	return nil
}

// Advance shifts the window one step: the oldest frame is dropped and one new
// frame is pulled. At end of stream it returns source.ErrEndOfStream and
// leaves the window untouched, so the caller can decide between looping and
// terminating.
func (w *Window) Advance() error {
	frame, err := w.src.Next()
	if err != nil {
		return err
	}
	if !w.frames[0].SameSize(frame) {
		return fmt.Errorf("window: frame %d is %dx%d, window is %dx%d",
			frame.Index, frame.Width, frame.Height, w.frames[0].Width, w.frames[0].Height)
	}

	copy(w.frames, w.frames[1:])
	w.frames[len(w.frames)-1] = frame

	return nil
}

// Curr returns the frame processed this step: the center of a 3-frame
// window, the leading frame otherwise.
func (w *Window) Curr() *models.Frame {
	if w.size == 3 {
		return w.frames[1]
	}
	return w.frames[0]
}

// Prev returns the previous frame of a 3-frame window, nil otherwise.
func (w *Window) Prev() *models.Frame {
	if w.size == 3 {
		return w.frames[0]
	}
	return nil
}

// Next returns the lookahead frame, nil for a single-frame window.
func (w *Window) Next() *models.Frame {
	if w.size < 2 {
		return nil
	}
	return w.frames[len(w.frames)-1]
}

// Size returns the window capacity.
func (w *Window) Size() int {
	return w.size
}

// Dimensions returns the shared frame dimensions of a primed window.
func (w *Window) Dimensions() (width, height int) {
	if len(w.frames) == 0 {
		return 0, 0
	}
	return w.frames[0].Width, w.frames[0].Height
}
