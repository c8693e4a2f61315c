// Package watcher implements the drop-folder batch optimizer: GIFs that
// appear in a watched input directory are optimized with the configured
// mode and written to the output directory under the same name.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/gifwise/gifsmith/internal/config"
	"github.com/gifwise/gifsmith/internal/optimizer"
)

// Service watches an input directory and feeds new GIFs through the
// optimizer with a bounded worker pool.
type Service struct {
	cfg    config.WatchConfig
	engine *optimizer.Engine
	logger hclog.Logger

	watcher *fsnotify.Watcher
	guard   *loadGuard

	jobs   chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Debounce rapid write events per file before enqueueing.
	pending map[string]*time.Timer
	mu      sync.Mutex
}

// New creates a watch-folder service. Both InputDir and OutputDir must be
// configured.
func New(cfg config.WatchConfig, engine *optimizer.Engine, logger hclog.Logger) (*Service, error) {
	if cfg.InputDir == "" || cfg.OutputDir == "" {
		return nil, fmt.Errorf("watch mode requires both input and output directories")
	}
	if cfg.Mode == "target-size" && cfg.TargetSizeBytes <= 0 {
		return nil, fmt.Errorf("watch mode %q requires a target size", cfg.Mode)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Service{
		cfg:     cfg,
		engine:  engine,
		logger:  logger.Named("watcher"),
		watcher: fsWatcher,
		guard:   newLoadGuard(cfg.MaxCPUPercent, cfg.MaxMemoryPercent),
		jobs:    make(chan string, 100),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. It returns once the watcher and workers are
// running; Stop shuts them down.
func (s *Service) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := s.watcher.Add(s.cfg.InputDir); err != nil {
		return fmt.Errorf("failed to watch input directory %s: %w", s.cfg.InputDir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	workers := resolveWorkerCount(s.cfg.Workers)
	s.logger.Info("watch-folder service starting",
		"input_dir", s.cfg.InputDir, "output_dir", s.cfg.OutputDir,
		"mode", s.cfg.Mode, "workers", workers)

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}

	s.wg.Add(1)
	go s.eventLoop(runCtx)

	return nil
}

// Stop shuts the service down and waits for in-flight jobs to finish.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.watcher.Close()
	s.wg.Wait()

	s.mu.Lock()
	for path, timer := range s.pending {
		timer.Stop()
		delete(s.pending, path)
	}
	s.mu.Unlock()
}

func (s *Service) eventLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isGifPath(event.Name) {
				continue
			}
			s.debounce(ctx, event.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

// debounce resets a per-file timer so a GIF still being copied in is only
// enqueued once its writes settle.
func (s *Service) debounce(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.pending[path]; exists {
		timer.Stop()
	}
	s.pending[path] = time.AfterFunc(s.cfg.DebounceInterval, func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()

		select {
		case s.jobs <- path:
		case <-ctx.Done():
		}
	})
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case path := <-s.jobs:
			s.guard.waitUntilAdmissible(ctx, s.logger)
			s.process(ctx, path)
		}
	}
}

func (s *Service) process(ctx context.Context, path string) {
	jobID := uuid.NewString()
	logger := s.logger.With("job_id", jobID, "file", path)

	input, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read dropped file", "error", err)
		return
	}

	start := time.Now()
	var result *optimizer.Result
	switch s.cfg.Mode {
	case "target-size":
		result, err = s.engine.OptimizeToTargetSize(ctx, input, s.cfg.TargetSizeBytes, nil)
	default:
		result, err = s.engine.OptimizeWithQuality(ctx, input, s.cfg.Quality, nil)
	}
	if err != nil {
		logger.Error("optimization failed", "error", err)
		return
	}

	outputPath := filepath.Join(s.cfg.OutputDir, filepath.Base(path))
	if err := os.WriteFile(outputPath, result.Buffer, 0o644); err != nil {
		logger.Error("failed to write optimized file", "output", outputPath, "error", err)
		return
	}

	logger.Info("optimized dropped file",
		"output", outputPath,
		"input_bytes", len(input),
		"output_bytes", result.Size,
		"lossy_used", result.LossyUsed,
		"iterations", result.Iterations,
		"duration", time.Since(start),
		"warning", result.Warning)
}

func isGifPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gif")
}
