package source

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"edgeflow/internal/models"
)

// VideoSource decodes a video or animation file (GIF included) through a
// GStreamer pipeline and serves its frames as grayscale planes:
//
//	filesrc -> decodebin -> videoconvert -> capsfilter(GRAY8) -> appsink
//
// Frames are pulled synchronously from the appsink, one at a time; the
// pipeline does the demux/decode work and the caps filter forces the 8-bit
// grayscale conversion.
type VideoSource struct {
	path     string
	pipeline *gst.Pipeline
	sink     *app.Sink
	index    int
}

// OpenVideo builds and starts the decode pipeline for the given file.
// It fails with a *Error when GStreamer or the file is unavailable.
func OpenVideo(path string) (*VideoSource, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}

	filesrc, err := gst.NewElement("filesrc")
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	filesrc.SetProperty("location", path)

	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=GRAY8"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	// Pull-based consumption: block the producer instead of dropping, the
	// processing loop paces the pipeline.
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)

	pipeline.AddMany(filesrc, decodebin, convert, capsfilter, appsink.Element)

	if err := filesrc.Link(decodebin); err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	if err := gst.ElementLinkMany(convert, capsfilter, appsink.Element); err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}

	// decodebin exposes its pads only after the stream is probed, so the
	// video pad is linked to videoconvert from the pad-added callback.
	convertSink := convert.GetStaticPad("sink")
	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		if convertSink == nil || srcPad.IsLinked() {
			return
		}
		if ret := srcPad.Link(convertSink); ret != gst.PadLinkOK {
			slog.Error("source: failed to link decoded pad",
				"pad", srcPad.GetName(),
				"ret", ret,
			)
		}
	})

	s := &VideoSource{path: path, pipeline: pipeline, sink: appsink}

	if err := s.start(); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, err
	}

	slog.Info("source: video opened", "path", path)
	return s, nil
}

// start drives the pipeline into the playing state.
func (s *VideoSource) start() error {
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return &Error{Path: s.path, Op: "open", Err: err}
	}
	return nil
}

// Next pulls one decoded frame from the appsink.
func (s *VideoSource) Next() (*models.Frame, error) {
	sample := s.sink.PullSample()
	if sample == nil {
		if s.sink.IsEOS() {
			return nil, ErrEndOfStream
		}
		return nil, &Error{Path: s.path, Op: "decode", Err: fmt.Errorf("appsink returned no sample")}
	}

	caps := sample.GetCaps()
	if caps == nil {
		return nil, &Error{Path: s.path, Op: "decode", Err: fmt.Errorf("sample has no caps")}
	}
	structure := caps.GetStructureAt(0)

	width, err := structureInt(structure, "width")
	if err != nil {
		return nil, &Error{Path: s.path, Op: "decode", Err: err}
	}
	height, err := structureInt(structure, "height")
	if err != nil {
		return nil, &Error{Path: s.path, Op: "decode", Err: err}
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, &Error{Path: s.path, Op: "decode", Err: fmt.Errorf("sample has no buffer")}
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < width*height {
		buffer.Unmap()
		return nil, &Error{Path: s.path, Op: "decode",
			Err: fmt.Errorf("short buffer: %d bytes for %dx%d", len(data), width, height)}
	}

	// GRAY8 rows can be padded for alignment; copy row by row using the
	// stride implied by the buffer size.
	frame := models.NewFrame(width, height)
	stride := len(data) / height
	for y := 0; y < height; y++ {
		copy(frame.Pix[y*width:(y+1)*width], data[y*stride:y*stride+width])
	}
	buffer.Unmap()

	frame.Index = s.index
	s.index++

	return frame, nil
}

// Reset rewinds to the first frame by cycling the pipeline through the NULL
// state, which reopens the file from the beginning.
func (s *VideoSource) Reset() error {
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return &Error{Path: s.path, Op: "reset", Err: err}
	}
	if err := s.start(); err != nil {
		return err
	}
	s.index = 0

	slog.Debug("source: video rewound", "path", s.path)
	return nil
}

// Close tears the pipeline down.
func (s *VideoSource) Close() error {
	if s.pipeline == nil {
		return nil
	}
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return &Error{Path: s.path, Op: "close", Err: err}
	}
	s.pipeline = nil
	return nil
}

// structureInt reads an integer field from a caps structure.
func structureInt(structure *gst.Structure, name string) (int, error) {
	if structure == nil {
		return 0, fmt.Errorf("caps have no structure")
	}
	value, err := structure.GetValue(name)
	if err != nil {
		return 0, fmt.Errorf("caps missing %s: %w", name, err)
	}
	n, ok := value.(int)
	if !ok {
		return 0, fmt.Errorf("caps %s has type %T, want int", name, value)
	}
	return n, nil
}
