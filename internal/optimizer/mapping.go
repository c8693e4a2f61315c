package optimizer

import (
	"fmt"
	"math"
)

// Bounds of the encoder's native lossy scale. Lower means higher quality
// and larger output; higher means more aggressive compression.
const (
	MinLossy = 10
	MaxLossy = 200
)

// Caller-facing quality percentage bounds.
const (
	MinQuality = 1
	MaxQuality = 100
)

// QualityToLossy maps a caller-facing quality percentage onto the
// encoder's inverted lossy scale: quality 100 yields lossy 10 (least
// compression), quality 1 yields lossy 200, interpolated linearly in
// between. The input must already be validated to [1,100].
func QualityToLossy(quality int) int {
	lossy := int(math.Round(float64(MinLossy) + float64(MaxQuality-quality)*(float64(MaxLossy-MinLossy)/float64(MaxQuality-MinQuality))))
	if lossy < MinLossy {
		lossy = MinLossy
	}
	if lossy > MaxLossy {
		lossy = MaxLossy
	}
	return lossy
}

// minFrameDimension is the floor the encoder can sensibly scale down to.
const minFrameDimension = 16

// FrameResize requests downscaling of the GIF's frame dimensions as part
// of the same encoder invocation that applies lossy compression. A zero
// Width or Height means "not set" for that axis.
type FrameResize struct {
	Enabled             bool
	Width               int
	Height              int
	PreserveAspectRatio bool
}

// ValidateFrameResize enforces the 16px floor on any dimension that was
// supplied. An enabled resize with neither dimension set is permitted and
// is a no-op downstream.
func ValidateFrameResize(resize *FrameResize) error {
	if resize == nil || !resize.Enabled {
		return nil
	}
	if resize.Width != 0 && resize.Width < minFrameDimension {
		return fmt.Errorf("%w: frame width must be at least 16px", ErrInvalidDimension)
	}
	if resize.Height != 0 && resize.Height < minFrameDimension {
		return fmt.Errorf("%w: frame height must be at least 16px", ErrInvalidDimension)
	}
	return nil
}

// resizeArg renders the encoder's --resize flag for a validated request.
// An empty side in the WxH string means "auto" on that axis, which is how
// a single-dimension resize preserves aspect ratio. Returns "" when no
// dimension is set so the flag is omitted entirely.
func resizeArg(resize *FrameResize) string {
	if resize == nil || !resize.Enabled {
		return ""
	}
	if resize.Width == 0 && resize.Height == 0 {
		return ""
	}
	width, height := "", ""
	if resize.Width > 0 {
		width = fmt.Sprintf("%d", resize.Width)
	}
	if resize.Height > 0 {
		height = fmt.Sprintf("%d", resize.Height)
	}
	return fmt.Sprintf("--resize=%sx%s", width, height)
}
