package optimizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/gifwise/gifsmith/internal/command"
	"github.com/gifwise/gifsmith/internal/config"
)

// Result is the outcome of an optimization run.
type Result struct {
	// Buffer holds the optimized GIF bytes. Never empty on success.
	Buffer []byte
	// Size is the byte length of Buffer.
	Size int64
	// LossyUsed is the lossy level that produced Buffer, always in [10,200].
	LossyUsed int
	// Iterations counts encoder invocations: 1 for quality mode, up to the
	// configured maximum for target-size mode.
	Iterations int
	// Warning is set only when target-size mode could not converge within
	// tolerance; the result is still the best one observed.
	Warning string
}

// Engine drives the external GIF encoder. It is stateless beyond a single
// invocation: every encoder pass gets its own temp directory and its own
// subprocess, so concurrent calls are safe.
type Engine struct {
	cfg    config.EncoderConfig
	runner command.Runner
	logger hclog.Logger
}

// NewEngine creates an Engine using the given command runner. Pass a fake
// runner in tests to avoid spawning real processes.
func NewEngine(cfg config.EncoderConfig, runner command.Runner, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{
		cfg:    cfg,
		runner: runner,
		logger: logger.Named("optimizer"),
	}
}

// CheckAvailability verifies the encoder binary can be invoked at all.
func (e *Engine) CheckAvailability(ctx context.Context) error {
	result, err := e.runner.Run(ctx, e.cfg.Path, []string{"--version"}, e.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("encoder not available at %s: %w", e.cfg.Path, err)
	}
	e.logger.Info("encoder availability verified", "path", e.cfg.Path,
		"version", strings.TrimSpace(firstLine(result.Stdout)))
	return nil
}

// runEncoder executes exactly one compression pass: write the input to a
// scoped temp directory, invoke the encoder, read the output back. The
// temp directory is removed on every exit path.
func (e *Engine) runEncoder(ctx context.Context, jobID string, input []byte, lossy int, resize *FrameResize) (*Result, error) {
	workDir, err := os.MkdirTemp("", "gifsmith-"+jobID+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			e.logger.Warn("failed to remove work directory", "job_id", jobID, "dir", workDir, "error", rmErr)
		}
	}()

	inputPath := filepath.Join(workDir, "input.gif")
	outputPath := filepath.Join(workDir, "output.gif")

	if err := os.WriteFile(inputPath, input, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	args := e.buildEncoderArgs(lossy, resize, inputPath, outputPath)
	e.logger.Debug("invoking encoder", "job_id", jobID, "lossy", lossy,
		"command", e.cfg.Path, "args", strings.Join(args, " "))

	result, err := e.runner.Run(ctx, e.cfg.Path, args, e.cfg.Timeout)
	if err != nil {
		if errors.Is(err, command.ErrTimeout) {
			e.logger.Error("encoder timed out", "job_id", jobID, "lossy", lossy, "timeout", e.cfg.Timeout)
			return nil, &TimeoutError{Timeout: e.cfg.Timeout}
		}
		e.logger.Error("encoder failed", "job_id", jobID, "lossy", lossy,
			"exit_code", result.ExitCode, "stderr", result.Stderr)
		return nil, &EncoderError{
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			Err:      err,
		}
	}

	output, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, &EncoderError{
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			Err:      fmt.Errorf("encoder reported success but output file is unreadable: %w", err),
		}
	}
	if len(output) == 0 {
		return nil, &EncoderError{
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			Err:      errors.New("encoder reported success but wrote an empty output file"),
		}
	}

	return &Result{
		Buffer:     output,
		Size:       int64(len(output)),
		LossyUsed:  lossy,
		Iterations: 1,
	}, nil
}

// buildEncoderArgs constructs the encoder's argument list:
// --lossy=<LEVEL> -O<N> [--resize=<W>x<H>] <input> --output <output>.
func (e *Engine) buildEncoderArgs(lossy int, resize *FrameResize, inputPath, outputPath string) []string {
	args := []string{
		fmt.Sprintf("--lossy=%d", lossy),
		fmt.Sprintf("-O%d", e.cfg.OptimizeLevel),
	}
	if arg := resizeArg(resize); arg != "" {
		args = append(args, arg)
	}
	return append(args, inputPath, "--output", outputPath)
}

// OptimizeWithQuality runs a single compression pass at the given quality
// percentage. The quality is mapped onto the encoder's lossy scale before
// delegation.
func (e *Engine) OptimizeWithQuality(ctx context.Context, input []byte, quality int, resize *FrameResize) (*Result, error) {
	if len(input) == 0 {
		return nil, ErrInvalidInput
	}
	if quality < MinQuality || quality > MaxQuality {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuality, quality)
	}
	if err := ValidateFrameResize(resize); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	lossy := QualityToLossy(quality)
	e.logger.Info("starting quality optimization", "job_id", jobID,
		"quality", quality, "lossy", lossy, "input_bytes", len(input))

	result, err := e.runEncoder(ctx, jobID, input, lossy, resize)
	if err != nil {
		return nil, err
	}

	e.logger.Info("quality optimization complete", "job_id", jobID,
		"lossy", lossy, "output_bytes", result.Size)
	return result, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
