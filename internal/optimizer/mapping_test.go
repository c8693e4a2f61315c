package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityToLossyBoundaries(t *testing.T) {
	assert.Equal(t, 10, QualityToLossy(100))

	lowest := QualityToLossy(1)
	assert.GreaterOrEqual(t, lowest, 195)
	assert.LessOrEqual(t, lowest, 200)

	mid := QualityToLossy(50)
	assert.GreaterOrEqual(t, mid, 100)
	assert.LessOrEqual(t, mid, 110)
}

func TestQualityToLossyStaysInRange(t *testing.T) {
	for q := MinQuality; q <= MaxQuality; q++ {
		lossy := QualityToLossy(q)
		assert.GreaterOrEqual(t, lossy, MinLossy, "quality %d", q)
		assert.LessOrEqual(t, lossy, MaxLossy, "quality %d", q)
	}
}

func TestQualityToLossyMonotonic(t *testing.T) {
	// Lower quality must never produce a gentler lossy level.
	for q := MinQuality; q < MaxQuality; q++ {
		assert.GreaterOrEqual(t, QualityToLossy(q), QualityToLossy(q+1), "quality %d vs %d", q, q+1)
	}
}

func TestValidateFrameResize(t *testing.T) {
	tests := []struct {
		name    string
		resize  *FrameResize
		wantErr string
	}{
		{
			name:   "nil resize is valid",
			resize: nil,
		},
		{
			name:   "disabled resize skips dimension checks",
			resize: &FrameResize{Enabled: false, Width: 4},
		},
		{
			name:   "enabled resize with no dimensions is a no-op",
			resize: &FrameResize{Enabled: true, PreserveAspectRatio: true},
		},
		{
			name:   "valid dimensions",
			resize: &FrameResize{Enabled: true, Width: 320, Height: 240},
		},
		{
			name:   "16px exactly is allowed",
			resize: &FrameResize{Enabled: true, Width: 16, Height: 16},
		},
		{
			name:    "width below floor",
			resize:  &FrameResize{Enabled: true, Width: 15},
			wantErr: "frame width must be at least 16px",
		},
		{
			name:    "height below floor",
			resize:  &FrameResize{Enabled: true, Height: 10},
			wantErr: "frame height must be at least 16px",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFrameResize(tt.resize)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDimension))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), "16px")
		})
	}
}

func TestValidateFrameResizeIdempotent(t *testing.T) {
	resize := &FrameResize{Enabled: true, Width: 320, Height: 240, PreserveAspectRatio: true}

	require.NoError(t, ValidateFrameResize(resize))
	require.NoError(t, ValidateFrameResize(resize))
}

func TestResizeArg(t *testing.T) {
	tests := []struct {
		name   string
		resize *FrameResize
		want   string
	}{
		{"nil", nil, ""},
		{"disabled", &FrameResize{Width: 320, Height: 240}, ""},
		{"no dimensions", &FrameResize{Enabled: true}, ""},
		{"both dimensions", &FrameResize{Enabled: true, Width: 320, Height: 240}, "--resize=320x240"},
		{"width only, auto height", &FrameResize{Enabled: true, Width: 320, PreserveAspectRatio: true}, "--resize=320x"},
		{"height only, auto width", &FrameResize{Enabled: true, Height: 240, PreserveAspectRatio: true}, "--resize=x240"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resizeArg(tt.resize))
		})
	}
}
