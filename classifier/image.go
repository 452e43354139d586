package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/detections"
	"github.com/litterly/waste-classification-service/models"
	"github.com/litterly/waste-classification-service/vision"
)

const ImageFailureMessage = "Failed to classify image"

// Inferencer is the part of the vision manager the image classifier needs.
type Inferencer interface {
	Infer(ctx context.Context, imagePath string, threshold float32) ([]detections.RawDetection, error)
	ClassName(id int) (string, bool)
}

type ImageClassifier struct {
	model     Inferencer
	threshold float32
	log       *zap.Logger
}

func NewImageClassifier(model Inferencer, threshold float32, log *zap.Logger) *ImageClassifier {
	if threshold <= 0 {
		threshold = detections.DefaultConfThreshold
	}
	return &ImageClassifier{
		model:     model,
		threshold: threshold,
		log:       log.Named("image"),
	}
}

func (c *ImageClassifier) Threshold() float32 {
	return c.threshold
}

// Classify runs the model on the image at imagePath. Decode and inference
// failures come back as a result with Success false; only ErrModelNotLoaded
// is returned as an error.
func (c *ImageClassifier) Classify(ctx context.Context, imagePath string) (*models.ClassificationResult, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return failure(fmt.Errorf("image file not found: %s", imagePath)), nil
	}

	raw, err := c.model.Infer(ctx, imagePath, c.threshold)
	if errors.Is(err, vision.ErrModelNotLoaded) {
		return nil, err
	}
	if err != nil {
		c.log.Warn("Image inference failed", zap.String("path", imagePath), zap.Error(err))
		return failure(err), nil
	}

	predictions := c.Normalize(raw)
	return &models.ClassificationResult{
		Success:         true,
		Predictions:     predictions,
		TotalDetections: len(predictions),
		Message:         fmt.Sprintf("Found %d waste objects", len(predictions)),
	}, nil
}

// Normalize turns detector output into public detections. A nil Mask means the
// model has no segmentation output, so nothing is reported; an empty mask still
// counts. Detections are numbered from 1 in detector order.
func (c *ImageClassifier) Normalize(raw []detections.RawDetection) []models.Prediction {
	predictions := make([]models.Prediction, 0, len(raw))
	for _, r := range raw {
		if r.Mask == nil {
			continue
		}

		name, ok := c.model.ClassName(r.ClassID)
		if !ok {
			name = fmt.Sprintf("class_%d", r.ClassID)
		}

		predictions = append(predictions, models.Detection{
			ID:         len(predictions) + 1,
			ClassName:  name,
			ClassID:    r.ClassID,
			Confidence: round(float64(r.Confidence), 3),
			BBox: models.BBox{
				X1: round(float64(r.Box[0]), 2),
				Y1: round(float64(r.Box[1]), 2),
				X2: round(float64(r.Box[2]), 2),
				Y2: round(float64(r.Box[3]), 2),
			},
		})
	}
	return predictions
}

func failure(err error) *models.ClassificationResult {
	return &models.ClassificationResult{
		Success:     false,
		Predictions: []models.Prediction{},
		Error:       err.Error(),
		Message:     ImageFailureMessage,
	}
}

// round returns v correctly rounded to digits decimal places, ties to even.
func round(v float64, digits int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}
