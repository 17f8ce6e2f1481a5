package sink

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"edgeflow/internal/models"
)

// SnapshotSink writes every channel of every step as a numbered PNG file,
// <dir>/<channel>_%04d.png. It serves two purposes: the output path for
// still-image runs, and optional intermediary results alongside the encoded
// videos.
type SnapshotSink struct {
	dir      string
	channels []models.Channel
	step     int
}

// NewSnapshot creates the output directory and the sink.
func NewSnapshot(dir string, channels []models.Channel) (*SnapshotSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("sink: failed to create snapshot directory: %w", err)
	}
	return &SnapshotSink{dir: dir, channels: channels}, nil
}

// Write saves one PNG per channel for the current step.
func (s *SnapshotSink) Write(frames ChannelFrames) error {
	for _, ch := range s.channels {
		frame, ok := frames[ch]
		if !ok {
			return fmt.Errorf("sink: snapshot write missing channel %s", ch)
		}

		path := filepath.Join(s.dir, fmt.Sprintf("%s_%04d.png", ch, s.step))
		if err := s.writePNG(path, frame); err != nil {
			return err
		}
	}

	s.step++
	return nil
}

func (s *SnapshotSink) writePNG(path string, frame *models.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, frame.ToImage()); err != nil {
		return fmt.Errorf("sink: encoding %s: %w", path, err)
	}
	return nil
}

// Close only reports; the files are complete after each write.
func (s *SnapshotSink) Close() error {
	slog.Info("sink: snapshots written", "dir", s.dir, "steps", s.step)
	return nil
}
