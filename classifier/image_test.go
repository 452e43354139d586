package classifier

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/detections"
	"github.com/litterly/waste-classification-service/models"
	"github.com/litterly/waste-classification-service/vision"
)

type stubModel struct {
	names     map[int]string
	dets      []detections.RawDetection
	err       error
	threshold float32
}

func (s *stubModel) Infer(_ context.Context, _ string, threshold float32) ([]detections.RawDetection, error) {
	s.threshold = threshold
	return s.dets, s.err
}

func (s *stubModel) ClassName(id int) (string, bool) {
	name, ok := s.names[id]
	return name, ok
}

func someMask() *detections.Mask {
	return &detections.Mask{Bounds: image.Rect(0, 0, 1, 1), Bits: []bool{true}, Area: 1}
}

func tempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not really a jpeg"), 0o600))
	return path
}

func TestImageClassifier_Normalize(t *testing.T) {
	model := &stubModel{names: map[int]string{39: "bottle", 41: "cup"}}
	c := NewImageClassifier(model, 0.25, zap.NewNop())

	got := c.Normalize([]detections.RawDetection{
		{ClassID: 39, Confidence: 0.91234, Box: [4]float32{10.123, 20.456, 110.789, 220.004}, Mask: someMask()},
		{ClassID: 41, Confidence: 0.5, Box: [4]float32{1, 1, 2, 2}},
		{ClassID: 77, Confidence: 0.33333, Box: [4]float32{0, 0, 5.556, 5.556}, Mask: someMask()},
		{ClassID: 41, Confidence: 0.7, Box: [4]float32{3, 3, 9, 9}, Mask: &detections.Mask{}},
	})

	require.Len(t, got, 3)

	first := got[0].(models.Detection)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "bottle", first.ClassName)
	assert.Equal(t, 39, first.ClassID)
	assert.Equal(t, 0.912, first.Confidence)
	assert.Equal(t, models.BBox{X1: 10.12, Y1: 20.46, X2: 110.79, Y2: 220}, first.BBox)

	second := got[1].(models.Detection)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, "class_77", second.ClassName)
	assert.Equal(t, 0.333, second.Confidence)
	assert.Equal(t, 5.56, second.BBox.X2)

	third := got[2].(models.Detection)
	assert.Equal(t, 3, third.ID)
	assert.Equal(t, "cup", third.ClassName)
	assert.Equal(t, 0.7, third.Confidence)
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		digits int
		want   float64
	}{
		{v: 0.125, digits: 2, want: 0.12},
		{v: 0.375, digits: 2, want: 0.38},
		{v: 2.5, digits: 0, want: 2},
		{v: 3.5, digits: 0, want: 4},
		{v: 2.675, digits: 2, want: 2.67},
		{v: 1.0005, digits: 3, want: 1},
		{v: -0.125, digits: 2, want: -0.12},
		{v: float64(float32(0.91234)), digits: 3, want: 0.912},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, round(tt.v, tt.digits), "round(%v, %d)", tt.v, tt.digits)
	}
}

func TestImageClassifier_Classify(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		model := &stubModel{
			names: map[int]string{39: "bottle"},
			dets: []detections.RawDetection{
				{ClassID: 39, Confidence: 0.8, Box: [4]float32{1, 2, 3, 4}, Mask: someMask()},
			},
		}
		c := NewImageClassifier(model, 0, zap.NewNop())

		res, err := c.Classify(context.Background(), tempImage(t))

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 1, res.TotalDetections)
		assert.Equal(t, "Found 1 waste objects", res.Message)
		assert.Equal(t, float32(detections.DefaultConfThreshold), model.threshold)
	})

	t.Run("no detections is success", func(t *testing.T) {
		c := NewImageClassifier(&stubModel{}, 0.4, zap.NewNop())

		res, err := c.Classify(context.Background(), tempImage(t))

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Empty(t, res.Predictions)
		assert.Equal(t, "Found 0 waste objects", res.Message)
	})

	t.Run("missing file is a recovered failure", func(t *testing.T) {
		c := NewImageClassifier(&stubModel{}, 0.25, zap.NewNop())

		res, err := c.Classify(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Empty(t, res.Predictions)
		assert.Contains(t, res.Error, "image file not found")
		assert.Equal(t, ImageFailureMessage, res.Message)
	})

	t.Run("inference error is a recovered failure", func(t *testing.T) {
		c := NewImageClassifier(&stubModel{err: errors.New("decode image: unknown format")}, 0.25, zap.NewNop())

		res, err := c.Classify(context.Background(), tempImage(t))

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "decode image: unknown format", res.Error)
		assert.NotNil(t, res.Predictions)
	})

	t.Run("model not loaded is returned", func(t *testing.T) {
		c := NewImageClassifier(&stubModel{err: vision.ErrModelNotLoaded}, 0.25, zap.NewNop())

		res, err := c.Classify(context.Background(), tempImage(t))

		assert.Nil(t, res)
		assert.ErrorIs(t, err, vision.ErrModelNotLoaded)
	})
}
