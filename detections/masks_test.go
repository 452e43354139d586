package detections

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// protoPlanes builds 2 prototype planes over the 8x8 test grid: plane 0 is
// positive on the left half, plane 1 is positive everywhere.
func protoPlanes() []float32 {
	plane := testLayout.protoW * testLayout.protoH
	protos := make([]float32, 2*plane)
	for y := 0; y < testLayout.protoH; y++ {
		for x := 0; x < testLayout.protoW; x++ {
			p := y*testLayout.protoW + x
			if x < 4 {
				protos[p] = 1
			} else {
				protos[p] = -1
			}
			protos[plane+p] = 1
		}
	}
	return protos
}

func TestBuildMask(t *testing.T) {
	protos := protoPlanes()

	t.Run("keeps positive pixels inside the box", func(t *testing.T) {
		// The box covers proto columns 2..5 and rows 0..1; only columns 2,3 are positive.
		m := buildMask([]float32{1, 0}, protos, testLayout, [4]float32{8, 0, 24, 8})

		require.NotNil(t, m)
		assert.Equal(t, image.Rect(2, 0, 6, 2), m.Bounds)
		assert.Equal(t, 4, m.Area)
		assert.Len(t, m.Bits, 8)
		assert.True(t, m.Bits[0])
		assert.False(t, m.Bits[3])
	})

	t.Run("empty when every pixel is negative", func(t *testing.T) {
		m := buildMask([]float32{0, -1}, protos, testLayout, [4]float32{0, 0, 32, 32})

		require.NotNil(t, m)
		assert.Zero(t, m.Area)
		assert.Equal(t, image.Rect(0, 0, 8, 8), m.Bounds)
	})

	t.Run("empty when the box misses the grid", func(t *testing.T) {
		m := buildMask([]float32{0, 1}, protos, testLayout, [4]float32{40, 40, 50, 50})

		require.NotNil(t, m)
		assert.Zero(t, m.Area)
		assert.True(t, m.Bounds.Empty())
	})

	t.Run("clips the box to the grid", func(t *testing.T) {
		m := buildMask([]float32{0, 1}, protos, testLayout, [4]float32{-8, -8, 64, 64})

		require.NotNil(t, m)
		assert.Equal(t, image.Rect(0, 0, 8, 8), m.Bounds)
		assert.Equal(t, 64, m.Area)
	})
}

func TestAssembleDetections(t *testing.T) {
	out := buildOutput(testLayout, map[int][]float32{
		0: {16, 16, 16, 16, 0.95, 0, 0, 0, -1},
		1: {8, 8, 8, 8, 0, 0.6, 0, 1, 0},
	})
	lb := letterbox{scale: 1, srcW: 32, srcH: 32}

	candidates, err := decodeCandidates(out, testLayout, 0.25)
	require.NoError(t, err)
	kept := nonMaxSuppression(candidates, 0.7, 300)
	require.Len(t, kept, 2)

	t.Run("segmentation model keeps objects with empty masks", func(t *testing.T) {
		got := assembleDetections(kept, out, protoPlanes(), testLayout, lb)

		require.Len(t, got, 2)
		assert.Equal(t, 0, got[0].ClassID)
		assert.InDelta(t, 0.95, got[0].Confidence, 1e-6)
		assert.Equal(t, [4]float32{8, 8, 24, 24}, got[0].Box)
		require.NotNil(t, got[0].Mask)
		assert.Zero(t, got[0].Mask.Area)

		require.NotNil(t, got[1].Mask)
		assert.Positive(t, got[1].Mask.Area)
	})

	t.Run("detect-only model has no masks", func(t *testing.T) {
		got := assembleDetections(kept, out, nil, testLayout, lb)

		require.Len(t, got, 2)
		assert.Nil(t, got[0].Mask)
		assert.Nil(t, got[1].Mask)
	})
}
