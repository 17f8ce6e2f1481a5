// Package source supplies ordered grayscale frames from a decode
// collaborator. Two sources are provided: a directory of still images loaded
// through the standard image decoders, and a video/animation file decoded
// through a GStreamer pipeline. Both support restarting from the first frame
// so playback can loop.
package source

import (
	"errors"
	"fmt"

	"edgeflow/internal/models"
)

// ErrEndOfStream is returned by Next when the source has no more frames.
// It is a state transition for the caller, never a failure.
var ErrEndOfStream = errors.New("source: end of stream")

// Source is a pull-based supplier of ordered grayscale frames.
// Implementations hold no internal buffering beyond the frame being decoded.
type Source interface {
	// Next decodes and returns the next frame, or ErrEndOfStream once the
	// sequence is exhausted. Any other error is fatal for the run.
	Next() (*models.Frame, error)

	// Reset rewinds the source to the first frame.
	Reset() error

	// Close releases the decode collaborator. The source is unusable
	// afterwards.
	Close() error
}

// Error reports that the decode collaborator could not be opened or a
// requested frame could not be decoded.
type Error struct {
	Path string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
