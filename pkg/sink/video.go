package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"edgeflow/internal/models"
)

// Encoder appends frames of a single channel to its destination.
type Encoder interface {
	Write(frame *models.Frame) error
	Close() error
}

// EncoderFactory opens one channel encoder for a codec/container candidate.
// The GStreamer factory is the production implementation; tests substitute
// their own to exercise the fallback order without a media stack.
type EncoderFactory interface {
	Open(path string, c Candidate, width, height int, fps float64) (Encoder, error)
}

// VideoSink owns one synchronized encoder per output channel. Every Write
// appends exactly one frame to every channel, so the encoded outputs stay in
// lock-step with the processed steps.
type VideoSink struct {
	channels []models.Channel
	encoders map[models.Channel]Encoder
	width    int
	height   int
	steps    int
}

// Open tries the candidates in order. A candidate is accepted only when the
// encoder for every channel opens; on a partial failure the already-opened
// encoders are closed and the next candidate is tried. When the list is
// exhausted Open fails with *OpenError and no frame is ever written.
func Open(factory EncoderFactory, dir string, channels []models.Channel,
	width, height int, fps float64, candidates []Candidate) (*VideoSink, error) {

	if len(channels) == 0 {
		return nil, fmt.Errorf("sink: no output channels configured")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("sink: no codec candidates configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("sink: failed to create output directory: %w", err)
	}

	var attempts []error
	for _, cand := range candidates {
		encoders, err := openCandidate(factory, dir, channels, width, height, fps, cand)
		if err != nil {
			slog.Warn("sink: codec candidate failed, trying next",
				"candidate", cand.String(),
				"error", err,
			)
			attempts = append(attempts, fmt.Errorf("%s: %w", cand, err))
			continue
		}

		slog.Info("sink: output opened",
			"candidate", cand.String(),
			"channels", len(channels),
			"size", fmt.Sprintf("%dx%d", width, height),
			"fps", fps,
		)

		return &VideoSink{
			channels: channels,
			encoders: encoders,
			width:    width,
			height:   height,
		}, nil
	}

	return nil, &OpenError{Attempts: attempts}
}

// openCandidate opens every channel encoder for one candidate, unwinding on
// the first failure.
func openCandidate(factory EncoderFactory, dir string, channels []models.Channel,
	width, height int, fps float64, cand Candidate) (map[models.Channel]Encoder, error) {

	encoders := make(map[models.Channel]Encoder, len(channels))
	for _, ch := range channels {
		path := filepath.Join(dir, ch.String()+cand.Ext)
		enc, err := factory.Open(path, cand, width, height, fps)
		if err != nil {
			for _, opened := range encoders {
				opened.Close()
			}
			return nil, fmt.Errorf("channel %s: %w", ch, err)
		}
		encoders[ch] = enc
	}
	return encoders, nil
}

// Write appends one frame per channel. A write missing a channel, carrying an
// unknown channel, or carrying a mismatched frame size fails before anything
// is appended, so no channel can run ahead of another.
func (s *VideoSink) Write(frames ChannelFrames) error {
	if len(frames) != len(s.channels) {
		return fmt.Errorf("sink: write carries %d channels, want %d", len(frames), len(s.channels))
	}
	for _, ch := range s.channels {
		frame, ok := frames[ch]
		if !ok {
			return fmt.Errorf("sink: write missing channel %s", ch)
		}
		if frame.Width != s.width || frame.Height != s.height {
			return fmt.Errorf("sink: channel %s frame is %dx%d, sink is %dx%d",
				ch, frame.Width, frame.Height, s.width, s.height)
		}
	}

	for _, ch := range s.channels {
		if err := s.encoders[ch].Write(frames[ch]); err != nil {
			return fmt.Errorf("sink: channel %s: %w", ch, err)
		}
	}

	s.steps++
	return nil
}

// Steps returns how many lock-step writes have completed.
func (s *VideoSink) Steps() int {
	return s.steps
}

// Close finalizes every channel encoder, closing all of them even when one
// fails.
func (s *VideoSink) Close() error {
	var errs []error
	for _, ch := range s.channels {
		if err := s.encoders[ch].Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink: channel %s: %w", ch, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	slog.Info("sink: output closed", "steps", s.steps)
	return nil
}
