package optimizer

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gifwise/gifsmith/internal/command"
)

// fakeRunner stands in for the real encoder process. It records every
// argument list, then writes a synthetic GIF of a size determined by the
// requested lossy level, so the search loop can be driven without
// spawning anything.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	// sizeFor determines the synthetic output size per lossy level.
	// Defaults to a fixed 1KiB when nil.
	sizeFor func(lossy int) int

	// err is returned from encode calls; failOnCall limits the failure to
	// the nth encode call (1-based), 0 meaning every call.
	err        error
	failOnCall int

	// skipOutput simulates an encoder that exits 0 without writing the
	// output file.
	skipOutput bool
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, _ time.Duration) (command.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	n := len(f.calls)
	f.mu.Unlock()

	if len(args) > 0 && args[0] == "--version" {
		return command.Result{Stdout: "LCDF Gifsicle 1.94\n"}, nil
	}

	if f.err != nil && (f.failOnCall == 0 || n == f.failOnCall) {
		return command.Result{Stderr: "gifsicle: fatal error", ExitCode: 1}, f.err
	}

	if f.skipOutput {
		return command.Result{}, nil
	}

	size := 1024
	if f.sizeFor != nil {
		size = f.sizeFor(lossyFromArgs(args))
	}
	if err := os.WriteFile(outputPathFromArgs(args), syntheticGif(size), 0o644); err != nil {
		return command.Result{}, err
	}
	return command.Result{}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) call(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeRunner) lossyLevels() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	levels := make([]int, 0, len(f.calls))
	for _, args := range f.calls {
		levels = append(levels, lossyFromArgs(args))
	}
	return levels
}

func lossyFromArgs(args []string) int {
	for _, arg := range args {
		if value, ok := strings.CutPrefix(arg, "--lossy="); ok {
			lossy, _ := strconv.Atoi(value)
			return lossy
		}
	}
	return -1
}

func inputPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--output" && i > 0 {
			return args[i-1]
		}
	}
	return ""
}

func outputPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--output" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func syntheticGif(size int) []byte {
	payload := make([]byte, size)
	copy(payload, "GIF89a")
	return payload
}
