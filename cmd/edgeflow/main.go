package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edgeflow/pkg/config"
	"edgeflow/pkg/engine"
	"edgeflow/pkg/partition"
	"edgeflow/pkg/sink"
	"edgeflow/pkg/source"
)

func main() {
	// Parse command line arguments
	input := flag.String("input", "", "Input video file or directory of numbered image frames")
	configPath := flag.String("config", "edgeflow.yaml", "Path to YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	mode := flag.String("mode", "", "Gradient mode: still, 2d, or 3d (overrides config)")
	outputDir := flag.String("output", "", "Output directory for encoded channel streams (overrides config)")
	rows := flag.Int("rows", 0, "Region grid rows (overrides config)")
	cols := flag.Int("cols", 0, "Region grid columns (overrides config)")
	fps := flag.Float64("fps", 0, "Output frame rate (overrides config)")
	loop := flag.Bool("loop", false, "Restart from the first frame at end of stream")
	snapshots := flag.Bool("snapshots", false, "Also save every derived frame as a PNG sequence")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Processing.Mode = *mode
		case "output":
			cfg.Output.Dir = *outputDir
		case "rows":
			cfg.Processing.GridRows = *rows
		case "cols":
			cfg.Processing.GridCols = *cols
		case "fps":
			cfg.Output.FPS = *fps
		case "loop":
			cfg.Output.Loop = *loop
		case "snapshots":
			cfg.Output.Snapshots = *snapshots
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})

	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	m, err := engine.ParseMode(cfg.Processing.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	src, err := openSource(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
		os.Exit(1)
	}

	channels := m.Channels()
	opener := func(width, height int) (sink.Sink, error) {
		// Still images produce PNG outputs; streams produce one encoded
		// video per channel, with snapshots as an optional extra.
		if m == engine.ModeStill {
			return sink.NewSnapshot(cfg.Output.Dir, channels)
		}
		video, err := sink.Open(sink.GstFactory{}, cfg.Output.Dir, channels,
			width, height, cfg.Output.FPS, cfg.Output.Candidates)
		if err != nil {
			return nil, err
		}
		if !cfg.Output.Snapshots {
			return video, nil
		}
		snaps, err := sink.NewSnapshot(cfg.Output.Dir, channels)
		if err != nil {
			video.Close()
			return nil, err
		}
		return sink.Multi{video, snaps}, nil
	}

	eng, err := engine.New(engine.Config{
		Mode: m,
		Grid: partition.Grid{Rows: cfg.Processing.GridRows, Cols: cfg.Processing.GridCols},
		Loop: cfg.Output.Loop,
	}, src, opener, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Ctrl-C stops the run at the next frame boundary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("================================")
	fmt.Println("EDGEFLOW SPATIOTEMPORAL SOBEL EDGE DETECTION")
	fmt.Println("================================")
	fmt.Printf("Input: %s\n", *input)
	fmt.Printf("Mode: %s, grid: %dx%d, output: %s\n",
		m, cfg.Processing.GridRows, cfg.Processing.GridCols, cfg.Output.Dir)

	startTime := time.Now()
	metrics, err := eng.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(startTime)

	fmt.Printf("\nProcessing completed in %.2f seconds\n", elapsed.Seconds())
	fmt.Printf("Output channel streams saved to: %s\n\n", cfg.Output.Dir)

	fmt.Printf("Run statistics:\n")
	fmt.Printf("===============\n")
	fmt.Printf("Frames processed: %d\n", metrics.Steps)
	if metrics.Loops > 0 {
		fmt.Printf("Playback loops: %d\n", metrics.Loops)
	}
	fmt.Printf("Mean gradient magnitude: %.3f\n", metrics.MeanMagnitude)
	fmt.Printf("Magnitude std deviation: %.3f\n", metrics.StdDevMagnitude)
	fmt.Printf("Peak gradient magnitude: %.3f\n", metrics.MaxMagnitude)
	fmt.Printf("Mean edge density: %.2f%%\n", metrics.EdgeDensity*100)
	if metrics.Steps > 0 {
		fmt.Printf("Throughput: %.1f frames/second\n", float64(metrics.Steps)/elapsed.Seconds())
	}
}

// openSource picks the frame source from the input path: a directory is read
// as a numbered image sequence, anything else is decoded as a video file.
func openSource(path string) (source.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return source.OpenImageDir(path)
	}
	return source.OpenVideo(path)
}
