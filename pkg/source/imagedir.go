package source

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	// Register the decoders for the still-image formats we accept.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"edgeflow/internal/models"
)

// ImageDir reads an ordered sequence of still images from a directory and
// serves them as grayscale frames. Files are sorted by the numeric part of
// their names so that frame_2.png precedes frame_10.png. A directory with a
// single image is the still-image 2D case: the engine primes by re-reading it.
type ImageDir struct {
	dir   string
	files []string
	pos   int
}

// OpenImageDir scans the directory for supported image files and prepares
// them in sequence order. It fails with a *Error when the directory cannot
// be read or contains no usable images.
func OpenImageDir(dir string) (*ImageDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &Error{Path: dir, Op: "open", Err: err}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif":
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		return nil, &Error{Path: dir, Op: "open", Err: fmt.Errorf("no image files found")}
	}

	// Sort by the number embedded in the filename to keep the sequence in
	// frame order rather than lexical order.
	sort.Slice(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	slog.Info("source: image directory opened", "dir", dir, "frames", len(files))

	return &ImageDir{dir: dir, files: files}, nil
}

// extractNumber pulls the numeric part out of a filename, 0 when absent.
func extractNumber(filename string) int {
	numStr := ""
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		if num, err := strconv.Atoi(numStr); err == nil {
			return num
		}
	}
	return 0
}

// Next decodes the next image in sequence and converts it to grayscale.
func (s *ImageDir) Next() (*models.Frame, error) {
	if s.pos >= len(s.files) {
		return nil, ErrEndOfStream
	}

	path := filepath.Join(s.dir, s.files[s.pos])
	file, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "read", Err: err}
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, &Error{Path: path, Op: "decode", Err: err}
	}

	frame := models.FrameFromImage(img)
	frame.Index = s.pos
	s.pos++

	return frame, nil
}

// Reset rewinds to the first image.
func (s *ImageDir) Reset() error {
	s.pos = 0
	return nil
}

// Close is a no-op for the directory source; files are opened per frame.
func (s *ImageDir) Close() error {
	return nil
}

// Len returns the number of images in the sequence.
func (s *ImageDir) Len() int {
	return len(s.files)
}
