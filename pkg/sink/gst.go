package sink

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"edgeflow/internal/models"
)

// codecElements maps the opaque codec tags accepted in candidates to the
// GStreamer encoder elements implementing them. A tag whose element is not
// installed fails at open time, which is exactly what drives the fallback.
var codecElements = map[string]string{
	"mp4v": "avenc_mpeg4",
	"x264": "x264enc",
	"MJPG": "jpegenc",
	"VP80": "vp8enc",
}

// muxerElements maps container extensions to muxer elements.
var muxerElements = map[string]string{
	".mp4":  "mp4mux",
	".avi":  "avimux",
	".mkv":  "matroskamux",
	".webm": "webmmux",
}

// GstFactory opens channel encoders backed by GStreamer pipelines:
//
//	appsrc(GRAY8) -> videoconvert -> <encoder> -> <muxer> -> filesink
type GstFactory struct{}

// Open builds and starts the encode pipeline for one channel file.
func (GstFactory) Open(path string, c Candidate, width, height int, fps float64) (Encoder, error) {
	encName, ok := codecElements[c.Codec]
	if !ok {
		return nil, fmt.Errorf("unknown codec tag %q", c.Codec)
	}
	muxName, ok := muxerElements[c.Ext]
	if !ok {
		return nil, fmt.Errorf("unknown container extension %q", c.Ext)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	appsrc, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsrc: %w", err)
	}
	appsrc.SetCaps(gst.NewCapsFromString(grayCaps(width, height, fps)))
	// Timestamped stream; block the producer when the encoder is behind
	// instead of growing an unbounded queue.
	appsrc.SetProperty("format", 3) // GST_FORMAT_TIME
	appsrc.SetProperty("block", true)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	encoder, err := gst.NewElement(encName)
	if err != nil {
		return nil, fmt.Errorf("encoder %s unavailable: %w", encName, err)
	}

	muxer, err := gst.NewElement(muxName)
	if err != nil {
		return nil, fmt.Errorf("muxer %s unavailable: %w", muxName, err)
	}

	filesink, err := gst.NewElement("filesink")
	if err != nil {
		return nil, fmt.Errorf("failed to create filesink: %w", err)
	}
	filesink.SetProperty("location", path)

	pipeline.AddMany(appsrc.Element, convert, encoder, muxer, filesink)
	if err := gst.ElementLinkMany(appsrc.Element, convert, encoder, muxer, filesink); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("failed to link encode pipeline: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("failed to start encode pipeline: %w", err)
	}

	slog.Debug("sink: encoder opened",
		"path", path,
		"encoder", encName,
		"muxer", muxName,
	)

	return &gstEncoder{
		path:     path,
		pipeline: pipeline,
		src:      appsrc,
		width:    width,
		height:   height,
		frameDur: time.Duration(float64(time.Second) / fps),
	}, nil
}

type gstEncoder struct {
	path     string
	pipeline *gst.Pipeline
	src      *app.Source
	width    int
	height   int
	frameDur time.Duration
	pts      time.Duration
}

// Write pushes one grayscale frame into the pipeline with a running
// presentation timestamp.
func (e *gstEncoder) Write(frame *models.Frame) error {
	if frame.Width != e.width || frame.Height != e.height {
		return fmt.Errorf("frame is %dx%d, encoder is %dx%d",
			frame.Width, frame.Height, e.width, e.height)
	}

	buffer := gst.NewBufferFromBytes(frame.Pix)
	buffer.SetPresentationTimestamp(e.pts)
	buffer.SetDuration(e.frameDur)
	e.pts += e.frameDur

	if ret := e.src.PushBuffer(buffer); ret != gst.FlowOK {
		return fmt.Errorf("push to %s failed: %v", e.path, ret)
	}
	return nil
}

// Close signals end of stream, waits for the muxer to finalize the
// container, and tears the pipeline down.
func (e *gstEncoder) Close() error {
	if e.pipeline == nil {
		return nil
	}

	if ret := e.src.EndStream(); ret != gst.FlowOK {
		e.pipeline.SetState(gst.StateNull)
		return fmt.Errorf("end of stream for %s failed: %v", e.path, ret)
	}

	// Drain the bus until EOS so the container index is written before the
	// pipeline is destroyed.
	bus := e.pipeline.GetPipelineBus()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		if msg.Type() == gst.MessageEOS {
			break
		}
		if msg.Type() == gst.MessageError {
			gerr := msg.ParseError()
			e.pipeline.SetState(gst.StateNull)
			return fmt.Errorf("finalizing %s: %s", e.path, gerr.Error())
		}
	}

	if err := e.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to stop encoder for %s: %w", e.path, err)
	}
	e.pipeline = nil

	slog.Debug("sink: encoder closed", "path", e.path)
	return nil
}

// grayCaps builds the GRAY8 caps string with a fractional framerate, the
// same numerator/denominator handling the capture side uses.
func grayCaps(width, height int, fps float64) string {
	numerator, denominator := 1, 1
	if fps < 1.0 {
		denominator = int(1.0 / fps)
	} else {
		numerator = int(fps)
	}
	return fmt.Sprintf("video/x-raw,format=GRAY8,width=%d,height=%d,framerate=%d/%d",
		width, height, numerator, denominator)
}
