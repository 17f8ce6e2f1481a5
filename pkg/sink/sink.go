// Package sink encodes the per-step output channels (original frame plus the
// normalized gradient visualizations) into synchronized destinations. The
// video sink owns one encoder per channel and opens them with an ordered
// codec/container fallback; a snapshot sink writes the channels as numbered
// image files instead.
package sink

import (
	"errors"
	"fmt"

	"edgeflow/internal/models"
)

// Candidate pairs an opaque codec tag with a container extension. Candidates
// are tried in order at open time; the first one for which every channel
// encoder opens wins.
type Candidate struct {
	Codec string `yaml:"codec"`
	Ext   string `yaml:"ext"`
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s/%s", c.Codec, c.Ext)
}

// DefaultCandidates returns the standard fallback order: MPEG-4 part 2 in an
// MP4 container, then H.264, then Motion JPEG in AVI as the portable last
// resort.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Codec: "mp4v", Ext: ".mp4"},
		{Codec: "x264", Ext: ".mp4"},
		{Codec: "MJPG", Ext: ".avi"},
	}
}

// OpenError reports that every codec/container candidate failed to open for
// at least one channel. It carries the per-candidate failures.
type OpenError struct {
	Attempts []error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("sink: all %d codec candidates failed: %v", len(e.Attempts), errors.Join(e.Attempts...))
}

// ChannelFrames carries one 8-bit frame per output channel for one step.
type ChannelFrames map[models.Channel]*models.Frame

// Sink consumes one frame per channel per processed step. All channels
// advance in lock-step: every Write carries every configured channel.
type Sink interface {
	Write(frames ChannelFrames) error
	Close() error
}

// Multi fans every write out to several sinks, e.g. an encoded video sink
// plus an intermediary snapshot sink.
type Multi []Sink

func (m Multi) Write(frames ChannelFrames) error {
	for _, s := range m {
		if err := s.Write(frames); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and reports the first failure after all have been
// given the chance to flush.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
