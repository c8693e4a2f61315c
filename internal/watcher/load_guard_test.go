package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestLoadGuardDisabledThresholds(t *testing.T) {
	guard := newLoadGuard(0, 0)

	overloaded, _ := guard.overloaded()
	assert.False(t, overloaded, "zero thresholds disable the load checks")
}

func TestLoadGuardImpossibleThresholdsAdmitImmediately(t *testing.T) {
	guard := newLoadGuard(100, 100)
	guard.checkInterval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		guard.waitUntilAdmissible(context.Background(), hclog.NewNullLogger())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("load guard never admitted a job despite headroom")
	}
}

func TestLoadGuardRespectsContextCancellation(t *testing.T) {
	// Thresholds so low that any live system trips them.
	guard := newLoadGuard(0.000001, 0.000001)
	guard.checkInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		guard.waitUntilAdmissible(ctx, hclog.NewNullLogger())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled context should release the guard")
	}
}

func TestResolveWorkerCount(t *testing.T) {
	assert.Equal(t, 4, resolveWorkerCount(4))
	assert.Greater(t, resolveWorkerCount(0), 0)
}
