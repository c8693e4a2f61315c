package watcher

import (
	"context"
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// loadGuard keeps the encoder fan-out from saturating the host: before a
// worker admits a new job it samples system CPU and memory usage and
// waits while either is above its threshold. A threshold of zero disables
// that check.
type loadGuard struct {
	maxCPUPercent    float64
	maxMemoryPercent float64
	checkInterval    time.Duration
}

func newLoadGuard(maxCPUPercent, maxMemoryPercent float64) *loadGuard {
	return &loadGuard{
		maxCPUPercent:    maxCPUPercent,
		maxMemoryPercent: maxMemoryPercent,
		checkInterval:    2 * time.Second,
	}
}

func (g *loadGuard) waitUntilAdmissible(ctx context.Context, logger hclog.Logger) {
	for {
		overloaded, reason := g.overloaded()
		if !overloaded {
			return
		}
		logger.Warn("system under load, delaying next job", "reason", reason)
		select {
		case <-ctx.Done():
			return
		case <-time.After(g.checkInterval):
		}
	}
}

// overloaded samples current usage. Sampling errors count as not
// overloaded so a broken metrics source never wedges the pool.
func (g *loadGuard) overloaded() (bool, string) {
	if g.maxCPUPercent > 0 {
		if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
			if percents[0] > g.maxCPUPercent {
				return true, "cpu"
			}
		}
	}
	if g.maxMemoryPercent > 0 {
		if vm, err := mem.VirtualMemory(); err == nil {
			if vm.UsedPercent > g.maxMemoryPercent {
				return true, "memory"
			}
		}
	}
	return false, ""
}

// resolveWorkerCount maps the configured worker count onto a concrete
// pool size; zero means one worker per CPU.
func resolveWorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	if counts, err := cpu.Counts(true); err == nil && counts > 0 {
		return counts
	}
	return runtime.NumCPU()
}
