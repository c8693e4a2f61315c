package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/gifwise/gifsmith/internal/command"
	"github.com/gifwise/gifsmith/internal/config"
	"github.com/gifwise/gifsmith/internal/optimizer"
	"github.com/gifwise/gifsmith/internal/watcher"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a yaml/json config file")
		inPath     = flag.String("in", "", "input GIF path")
		outPath    = flag.String("out", "", "output GIF path")
		quality    = flag.Int("quality", 85, "quality percentage 1-100 (single-pass mode)")
		targetSize = flag.Int64("target-size", 0, "target output size in bytes (enables search mode)")
		width      = flag.Int("width", 0, "resize frames to this width in px")
		height     = flag.Int("height", 0, "resize frames to this height in px")
		keepAspect = flag.Bool("keep-aspect", true, "preserve aspect ratio when only one dimension is set")
		watchMode  = flag.Bool("watch", false, "run the watch-folder service instead of a one-shot optimization")
	)
	flag.Parse()

	manager := config.NewManager()
	if err := manager.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gifsmith: %v\n", err)
		os.Exit(1)
	}
	cfg := manager.Get()

	logger := newLogger(cfg.Logging)
	engine := optimizer.NewEngine(cfg.Encoder, command.NewExecRunner(), logger)

	ctx := context.Background()
	if err := engine.CheckAvailability(ctx); err != nil {
		logger.Error("encoder check failed", "error", err)
		os.Exit(1)
	}

	if *watchMode {
		runWatch(ctx, manager, engine, logger)
		return
	}

	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "gifsmith: -in and -out are required (or use -watch)")
		os.Exit(2)
	}

	input, err := os.ReadFile(*inPath)
	if err != nil {
		logger.Error("failed to read input", "path", *inPath, "error", err)
		os.Exit(1)
	}

	resize := buildResize(*width, *height, *keepAspect)

	var result *optimizer.Result
	if *targetSize > 0 {
		result, err = engine.OptimizeToTargetSize(ctx, input, *targetSize, resize)
	} else {
		result, err = engine.OptimizeWithQuality(ctx, input, *quality, resize)
	}
	if err != nil {
		logger.Error("optimization failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*outPath, result.Buffer, 0o644); err != nil {
		logger.Error("failed to write output", "path", *outPath, "error", err)
		os.Exit(1)
	}

	logger.Info("done",
		"output", *outPath,
		"input_bytes", len(input),
		"output_bytes", result.Size,
		"lossy_used", result.LossyUsed,
		"iterations", result.Iterations)
	if result.Warning != "" {
		logger.Warn(result.Warning)
	}
}

// runWatch runs the drop-folder service until SIGINT/SIGTERM. SIGHUP
// reloads the configuration file (logged; the running service keeps its
// original settings until restarted).
func runWatch(ctx context.Context, manager *config.Manager, engine *optimizer.Engine, logger hclog.Logger) {
	cfg := manager.Get()

	service, err := watcher.New(cfg.Watch, engine, logger)
	if err != nil {
		logger.Error("failed to create watch service", "error", err)
		os.Exit(1)
	}
	if err := service.Start(ctx); err != nil {
		logger.Error("failed to start watch service", "error", err)
		os.Exit(1)
	}

	manager.AddWatcher(func(_, _ *config.Config) {
		logger.Info("configuration reloaded; restart to apply watch settings")
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			if err := manager.Reload(); err != nil {
				logger.Error("config reload failed", "error", err)
			}
			continue
		}
		logger.Info("shutting down", "signal", sig)
		break
	}
	service.Stop()
}

func buildResize(width, height int, keepAspect bool) *optimizer.FrameResize {
	if width == 0 && height == 0 {
		return nil
	}
	return &optimizer.FrameResize{
		Enabled:             true,
		Width:               width,
		Height:              height,
		PreserveAspectRatio: keepAspect,
	}
}

func newLogger(cfg config.LoggingConfig) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "gifsmith",
		Level:      hclog.LevelFromString(cfg.Level),
		JSONFormat: cfg.Format == "json",
	})
}
