package sampler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePaths(n int) []string {
	paths := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		paths = append(paths, fmt.Sprintf("/tmp/frames/frame_%04d.jpg", i))
	}
	return paths
}

func TestSelectKeyFrames(t *testing.T) {
	t.Run("180 frames down to 12", func(t *testing.T) {
		paths := makePaths(180)
		selected := SelectKeyFrames(paths, 12)
		require.Len(t, selected, 12)

		// 等距步长 15：原始下标 0, 15, 30, ..., 165
		for i, p := range selected {
			assert.Equal(t, paths[i*15], p)
		}
	})

	t.Run("100 frames down to 12", func(t *testing.T) {
		paths := makePaths(100)
		selected := SelectKeyFrames(paths, 12)
		require.Len(t, selected, 12)

		// int(i * 100/12)
		expected := []int{0, 8, 16, 25, 33, 41, 50, 58, 66, 75, 83, 91}
		for i, p := range selected {
			assert.Equal(t, paths[expected[i]], p)
		}
	})

	t.Run("fewer frames than k returns all", func(t *testing.T) {
		paths := makePaths(5)
		selected := SelectKeyFrames(paths, 12)
		assert.Equal(t, paths, selected)
	})

	t.Run("exact count returns all", func(t *testing.T) {
		paths := makePaths(12)
		selected := SelectKeyFrames(paths, 12)
		assert.Equal(t, paths, selected)
	})

	t.Run("deterministic", func(t *testing.T) {
		paths := makePaths(77)
		assert.Equal(t, SelectKeyFrames(paths, 12), SelectKeyFrames(paths, 12))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, SelectKeyFrames(nil, 12))
	})
}

func TestOptimalFrameCount(t *testing.T) {
	tests := []struct {
		duration int
		want     int
	}{
		{0, 12},
		{120, 12},
		{299, 12},
		{300, 18},
		{599, 18},
		{600, 24},
		{899, 24},
		{900, 30},  // 900/30
		{1080, 36}, // 1080/30
		{3600, 36}, // 封顶
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%ds", tt.duration), func(t *testing.T) {
			assert.Equal(t, tt.want, OptimalFrameCount(tt.duration))
		})
	}
}

func TestFrameNumber(t *testing.T) {
	assert.Equal(t, 1, frameNumber("/tmp/frames/frame_0001.jpg"))
	assert.Equal(t, 42, frameNumber("/tmp/frames/frame_0042.jpg"))
	assert.Equal(t, 180, frameNumber("frame_0180.jpg"))
	assert.Equal(t, 0, frameNumber("not_a_frame.jpg"))
}

func TestNew_Defaults(t *testing.T) {
	s := New(0, 0)
	assert.Equal(t, 180, s.maxFrames)
	assert.Equal(t, 2, s.quality)

	s = New(90, 5)
	assert.Equal(t, 90, s.maxFrames)
	assert.Equal(t, 5, s.quality)
}

func TestTruncateOutput(t *testing.T) {
	short := "some output"
	assert.Equal(t, short, truncateOutput(short))

	long := make([]byte, 1200)
	for i := range long {
		long[i] = 'x'
	}
	truncated := truncateOutput(string(long))
	assert.Len(t, truncated, 503)
	assert.True(t, truncated[:3] == "...")
}
