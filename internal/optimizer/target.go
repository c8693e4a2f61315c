package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// OptimizeToTargetSize searches for a lossy level whose output size lands
// within tolerance of targetBytes, by bisecting the lossy range on the
// measured output size of each encoder pass. Output size is assumed to be
// non-increasing in lossy level; because that can fail for pathological
// inputs, the closest result seen across all iterations is tracked and is
// what gets returned when the search does not converge.
//
// Exhausting the iteration budget without converging is not an error: the
// best-effort result comes back with Warning set, so the caller always
// gets a usable GIF. An encoder failure on any iteration aborts the whole
// search immediately.
func (e *Engine) OptimizeToTargetSize(ctx context.Context, input []byte, targetBytes int64, resize *FrameResize) (*Result, error) {
	if len(input) == 0 {
		return nil, ErrInvalidInput
	}
	if targetBytes < e.cfg.MinTargetBytes || targetBytes > e.cfg.MaxTargetBytes {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidTargetSize, targetBytes)
	}
	if err := ValidateFrameResize(resize); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	e.logger.Info("starting target-size optimization", "job_id", jobID,
		"target_bytes", targetBytes, "input_bytes", len(input))

	withinTolerance := func(size int64) bool {
		return math.Abs(float64(size-targetBytes)) <= float64(targetBytes)*e.cfg.Tolerance
	}

	low, high := MinLossy, MaxLossy
	var best *Result
	bestDistance := int64(math.MaxInt64)
	iteration := 0

	for iteration < e.cfg.MaxIterations && low <= high {
		mid := int(math.Round(float64(low+high) / 2))

		result, err := e.runEncoder(ctx, jobID, input, mid, resize)
		iteration++
		if err != nil {
			return nil, err
		}

		distance := result.Size - targetBytes
		if distance < 0 {
			distance = -distance
		}
		// Ties go to the later probe so an input that never fits the
		// budget reports the most aggressive level actually tried.
		if distance <= bestDistance {
			best = result
			bestDistance = distance
		}

		e.logger.Debug("search probe", "job_id", jobID, "iteration", iteration,
			"lossy", mid, "size", result.Size, "target", targetBytes,
			"low", low, "high", high)

		if withinTolerance(result.Size) {
			break
		}
		if result.Size > targetBytes {
			// Too large: compression must be more aggressive.
			low = mid + 1
		} else {
			// Smaller than target but outside tolerance: quality can be
			// raised while still meeting the budget.
			high = mid - 1
		}
	}

	if best == nil {
		return nil, fmt.Errorf("target-size search performed no iterations")
	}

	best.Iterations = iteration
	if withinTolerance(best.Size) {
		e.logger.Info("target-size optimization converged", "job_id", jobID,
			"lossy", best.LossyUsed, "size", best.Size, "iterations", iteration)
		return best, nil
	}

	best.Warning = fmt.Sprintf(
		"Could not reach target size within tolerance after %d attempts; returning closest achievable size.",
		iteration)
	e.logger.Warn("target size not reachable, returning best effort", "job_id", jobID,
		"lossy", best.LossyUsed, "size", best.Size, "target", targetBytes,
		"iterations", iteration)
	return best, nil
}
