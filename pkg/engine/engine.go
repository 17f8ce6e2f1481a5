// Package engine drives the processing loop: it primes the frame window,
// dispatches the parallel Sobel convolution for every step, normalizes the
// gradient planes, feeds the output sink, and handles looping and
// cancellation. The loop is an explicit state machine so that every exit
// path runs the same finalization.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"edgeflow/internal/models"
	"edgeflow/pkg/normalize"
	"edgeflow/pkg/partition"
	"edgeflow/pkg/sink"
	"edgeflow/pkg/sobel"
	"edgeflow/pkg/source"
	"edgeflow/pkg/window"
)

// Mode selects the gradient computation applied to the stream.
type Mode int

const (
	// ModeStill processes every frame independently in 2D with no priming
	// lookahead; the still-image case.
	ModeStill Mode = iota
	// Mode2D processes a stream frame by frame in 2D with one frame of
	// lookahead.
	Mode2D
	// Mode3D treats the stream as an intensity volume I(x,y,t) and computes
	// the temporal gradient over a 3-frame window.
	Mode3D
)

// String returns the mode name used in config files and logging.
func (m Mode) String() string {
	switch m {
	case ModeStill:
		return "still"
	case Mode2D:
		return "2d"
	case Mode3D:
		return "3d"
	default:
		return "unknown"
	}
}

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "still":
		return ModeStill, nil
	case "2d":
		return Mode2D, nil
	case "3d":
		return Mode3D, nil
	default:
		return 0, fmt.Errorf("engine: unknown mode %q (want still, 2d, or 3d)", s)
	}
}

// windowSize returns how many frames the mode needs primed before the first
// step can run.
func (m Mode) windowSize() int {
	switch m {
	case Mode3D:
		return 3
	case Mode2D:
		return 2
	default:
		return 1
	}
}

// Channels returns the output channels the mode produces each step.
func (m Mode) Channels() []models.Channel {
	if m == Mode3D {
		return []models.Channel{
			models.ChannelOriginal,
			models.ChannelGX,
			models.ChannelGY,
			models.ChannelGT,
			models.ChannelMagnitude,
		}
	}
	return []models.Channel{
		models.ChannelOriginal,
		models.ChannelGX,
		models.ChannelGY,
		models.ChannelMagnitude,
		models.ChannelDirection,
	}
}

// Display is the external display/interaction collaborator. It receives the
// derived buffers of every step and supplies the stop signal, which the loop
// samples once per frame boundary.
type Display interface {
	Render(step int, frames sink.ChannelFrames)
	StopRequested() bool
}

// SinkOpener builds the output sink once the frame dimensions are known.
// The engine probes the source for them during INIT.
type SinkOpener func(width, height int) (sink.Sink, error)

// Config carries the engine parameters.
type Config struct {
	Mode Mode
	Grid partition.Grid

	// Loop restarts playback from the first frame at end of stream instead
	// of terminating.
	Loop bool
}

// state is the processing loop state machine.
type state int

const (
	stateInit state = iota
	statePrime
	stateProcessing
	stateLoop
	stateFinalize
	stateDone
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case statePrime:
		return "prime"
	case stateProcessing:
		return "processing"
	case stateLoop:
		return "loop"
	case stateFinalize:
		return "finalize"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Engine orchestrates source, window, coordinator, normalizer, and sink.
type Engine struct {
	cfg      Config
	src      source.Source
	openSink SinkOpener
	display  Display
	coord    *sobel.Coordinator
	runID    string

	win     *window.Window
	out     sink.Sink
	metrics *Metrics
}

// New wires an engine. The display may be nil for headless runs.
func New(cfg Config, src source.Source, openSink SinkOpener, display Display) (*Engine, error) {
	if src == nil {
		return nil, fmt.Errorf("engine: source is required")
	}
	if openSink == nil {
		return nil, fmt.Errorf("engine: sink opener is required")
	}

	coord, err := sobel.NewCoordinator(cfg.Grid)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		src:      src,
		openSink: openSink,
		display:  display,
		coord:    coord,
		runID:    uuid.New().String(),
	}, nil
}

// Run executes the loop until the stream ends (and looping is disabled), the
// context is cancelled, the display requests a stop, or a fatal error occurs.
// Cancellation is sampled only at frame boundaries; an in-flight frame's
// worker fan-out always completes. Run always finalizes the sink and releases
// the source before returning.
func (e *Engine) Run(ctx context.Context) (*Metrics, error) {
	e.metrics = newMetrics()
	var runErr error

	slog.Info("engine: run starting",
		"run_id", e.runID,
		"mode", e.cfg.Mode,
		"grid", fmt.Sprintf("%dx%d", e.cfg.Grid.Rows, e.cfg.Grid.Cols),
		"loop", e.cfg.Loop,
	)

	for st := stateInit; st != stateDone; {
		var next state

		switch st {
		case stateInit:
			next, runErr = e.init()
		case statePrime:
			next, runErr = e.prime()
		case stateProcessing:
			next, runErr = e.step(ctx)
		case stateLoop:
			next, runErr = e.rewind()
		case stateFinalize:
			next = e.finalize(runErr)
		default:
			runErr = fmt.Errorf("engine: invalid state %v", st)
			next = stateFinalize
		}

		if next != st {
			slog.Debug("engine: state transition", "run_id", e.runID, "from", st, "to", next)
		}
		st = next
	}

	e.metrics.finish()

	if runErr != nil {
		slog.Error("engine: run failed",
			"run_id", e.runID,
			"steps", e.metrics.Steps,
			"error", runErr,
		)
		return e.metrics, runErr
	}

	slog.Info("engine: run complete",
		"run_id", e.runID,
		"steps", e.metrics.Steps,
		"loops", e.metrics.Loops,
		"mean_magnitude", e.metrics.MeanMagnitude,
	)
	return e.metrics, nil
}

// init probes the source for the frame dimensions, rewinds it, and opens the
// output sink with its codec fallback. Failure of either is fatal.
func (e *Engine) init() (state, error) {
	probe, err := e.src.Next()
	if err != nil {
		if err == source.ErrEndOfStream {
			return stateFinalize, fmt.Errorf("%w: got 0, need %d", window.ErrInsufficientFrames, e.cfg.Mode.windowSize())
		}
		return stateFinalize, err
	}
	if err := e.src.Reset(); err != nil {
		return stateFinalize, err
	}

	out, err := e.openSink(probe.Width, probe.Height)
	if err != nil {
		return stateFinalize, err
	}
	e.out = out

	e.win, err = window.New(e.src, e.cfg.Mode.windowSize())
	if err != nil {
		return stateFinalize, err
	}

	slog.Info("engine: initialized",
		"run_id", e.runID,
		"size", fmt.Sprintf("%dx%d", probe.Width, probe.Height),
		"window", e.cfg.Mode.windowSize(),
	)
	return statePrime, nil
}

// prime fills the frame window from the start of the stream.
func (e *Engine) prime() (state, error) {
	if err := e.win.Prime(); err != nil {
		return stateFinalize, err
	}
	return stateProcessing, nil
}

// step processes the window's current frame: partition, dispatch, normalize,
// encode, then sample the cancellation signals and advance.
func (e *Engine) step(ctx context.Context) (state, error) {
	curr := e.win.Curr()

	var fields *sobel.Fields
	var err error
	if e.cfg.Mode == Mode3D {
		fields, err = e.coord.ProcessWindow(e.win.Prev(), curr, e.win.Next())
	} else {
		fields, err = e.coord.Process(curr)
	}
	if err != nil {
		return stateFinalize, err
	}

	channels := e.normalizeChannels(curr, fields)
	if err := e.out.Write(channels); err != nil {
		return stateFinalize, err
	}

	e.metrics.observe(fields, curr.Width, curr.Height)

	if e.display != nil {
		e.display.Render(e.metrics.Steps-1, channels)
		if e.display.StopRequested() {
			slog.Info("engine: stop requested by display", "run_id", e.runID, "steps", e.metrics.Steps)
			return stateFinalize, nil
		}
	}
	if ctx.Err() != nil {
		slog.Info("engine: cancelled", "run_id", e.runID, "steps", e.metrics.Steps)
		return stateFinalize, nil
	}

	switch err := e.win.Advance(); {
	case err == nil:
		return stateProcessing, nil
	case err == source.ErrEndOfStream:
		if e.cfg.Loop {
			return stateLoop, nil
		}
		return stateFinalize, nil
	default:
		return stateFinalize, err
	}
}

// rewind restarts the source for looped playback and goes back to priming.
func (e *Engine) rewind() (state, error) {
	if err := e.src.Reset(); err != nil {
		return stateFinalize, err
	}
	e.metrics.Loops++

	slog.Debug("engine: looping", "run_id", e.runID, "loop", e.metrics.Loops)
	return statePrime, nil
}

// finalize closes the sink and releases the source on every exit path.
func (e *Engine) finalize(runErr error) state {
	if e.out != nil {
		if err := e.out.Close(); err != nil && runErr == nil {
			slog.Error("engine: sink close failed", "run_id", e.runID, "error", err)
		}
	}
	if err := e.src.Close(); err != nil {
		slog.Error("engine: source close failed", "run_id", e.runID, "error", err)
	}
	return stateDone
}

// normalizeChannels rescales the gradient planes to 8-bit display range.
// The signed planes (Gx, Gy, Gt) are visualized by absolute value; the
// magnitude and direction planes are rescaled raw.
func (e *Engine) normalizeChannels(curr *models.Frame, fields *sobel.Fields) sink.ChannelFrames {
	channels := sink.ChannelFrames{
		models.ChannelOriginal:  curr,
		models.ChannelGX:        normalize.To8Bit(fields.GX, true),
		models.ChannelGY:        normalize.To8Bit(fields.GY, true),
		models.ChannelMagnitude: normalize.To8Bit(fields.Magnitude, false),
	}
	if fields.GT != nil {
		channels[models.ChannelGT] = normalize.To8Bit(fields.GT, true)
	}
	if fields.Direction != nil {
		channels[models.ChannelDirection] = normalize.To8Bit(fields.Direction, false)
	}
	return channels
}
