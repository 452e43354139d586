// Package orchestrator decides which classifier handles a request and owns
// the request-scoped resources of the image path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/models"
	"github.com/litterly/waste-classification-service/upload"
	"github.com/litterly/waste-classification-service/vision"
)

var (
	ErrMissingInput     = errors.New("no text or image input")
	ErrInvalidImageType = errors.New("file must be an image")
)

// ClassificationError reports an image that could not be classified. The
// classifier recovered from the failure; the caller still answers with a
// server error.
type ClassificationError struct {
	Message string
	Cause   error
}

func (e *ClassificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClassificationError) Unwrap() error {
	return e.Cause
}

const (
	BranchImage = "image"
	BranchText  = "text"
	BranchNone  = "none"

	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

type ReadinessChecker interface {
	IsReady() bool
}

type ImageClassifier interface {
	Classify(ctx context.Context, imagePath string) (*models.ClassificationResult, error)
}

type TextClassifier interface {
	Classify(text string) *models.ClassificationResult
}

// ImageUpload is an image as received from the client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

type Input struct {
	Image *ImageUpload
	Text  string
}

type Options struct {
	Model  ReadinessChecker
	Images ImageClassifier
	Text   TextClassifier
	Arena  *upload.Arena
	Logger *zap.Logger
	// Outcomes counts terminal outcomes by branch and outcome. Optional.
	Outcomes *prometheus.CounterVec
}

type Orchestrator struct {
	model    ReadinessChecker
	images   ImageClassifier
	text     TextClassifier
	arena    *upload.Arena
	log      *zap.Logger
	outcomes *prometheus.CounterVec
	now      func() time.Time
}

func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		model:    opts.Model,
		images:   opts.Images,
		text:     opts.Text,
		arena:    opts.Arena,
		log:      log.Named("orchestrator"),
		outcomes: opts.Outcomes,
		now:      time.Now,
	}
}

// Classify picks the image path whenever an image is present, ignoring any
// text, and the text path otherwise. The declared content type of the image
// is not checked here.
func (o *Orchestrator) Classify(ctx context.Context, in Input) (*models.PredictionResult, error) {
	start := o.now()

	switch {
	case in.Image != nil:
		return o.classifyImage(ctx, start, in.Image)
	case in.Text != "":
		return o.classifyText(start, in.Text), nil
	default:
		o.record(BranchNone, OutcomeRejected, start, ErrMissingInput)
		return nil, ErrMissingInput
	}
}

// ClassifyImage is the image-only entry point. It additionally requires the
// declared content type to start with "image/".
func (o *Orchestrator) ClassifyImage(ctx context.Context, up *ImageUpload) (*models.PredictionResult, error) {
	start := o.now()

	if up == nil {
		o.record(BranchImage, OutcomeRejected, start, ErrMissingInput)
		return nil, ErrMissingInput
	}
	if !o.model.IsReady() {
		o.record(BranchImage, OutcomeFailed, start, vision.ErrModelNotLoaded)
		return nil, vision.ErrModelNotLoaded
	}
	if !strings.HasPrefix(strings.ToLower(up.ContentType), "image/") {
		o.record(BranchImage, OutcomeRejected, start, ErrInvalidImageType)
		return nil, fmt.Errorf("%w: got %q", ErrInvalidImageType, up.ContentType)
	}

	return o.classifyImage(ctx, start, up)
}

func (o *Orchestrator) ClassifyText(_ context.Context, text string) *models.PredictionResult {
	return o.classifyText(o.now(), text)
}

func (o *Orchestrator) classifyImage(ctx context.Context, start time.Time, up *ImageUpload) (*models.PredictionResult, error) {
	if !o.model.IsReady() {
		o.record(BranchImage, OutcomeFailed, start, vision.ErrModelNotLoaded)
		return nil, vision.ErrModelNotLoaded
	}

	tmp, err := o.arena.Write(up.Filename, up.Data)
	if err != nil {
		o.record(BranchImage, OutcomeFailed, start, err)
		return nil, fmt.Errorf("store upload: %w", err)
	}
	// Best-effort: Release logs removal failures and never returns them, so
	// the classification outcome below is always the one reported.
	defer o.arena.Release(tmp)

	timings := models.TimingsFrom(ctx)
	ctx = models.WithTimings(ctx, timings)
	defer o.logTimings(timings, start)

	res, err := o.images.Classify(ctx, tmp.Path())
	if err != nil {
		o.record(BranchImage, OutcomeFailed, start, err)
		return nil, err
	}
	if !res.Success {
		cerr := &ClassificationError{Message: "image prediction failed", Cause: errors.New(res.Error)}
		o.record(BranchImage, OutcomeFailed, start, cerr)
		return nil, cerr
	}

	elapsed := o.record(BranchImage, OutcomeSucceeded, start, nil)
	return o.result(res, elapsed), nil
}

func (o *Orchestrator) classifyText(start time.Time, text string) *models.PredictionResult {
	res := o.text.Classify(text)
	elapsed := o.record(BranchText, OutcomeSucceeded, start, nil)
	return o.result(res, elapsed)
}

func (o *Orchestrator) result(res *models.ClassificationResult, elapsed time.Duration) *models.PredictionResult {
	seconds := math.Round(elapsed.Seconds()*1000) / 1000
	return &models.PredictionResult{
		Success:        true,
		Predictions:    res.Predictions,
		Message:        res.Message,
		ProcessingTime: &seconds,
	}
}

func (o *Orchestrator) logTimings(t *models.ProcessingTimings, start time.Time) {
	t.Total = o.now().Sub(start)
	o.log.Debug("Image processing times",
		zap.String("request_id", t.RequestID),
		zap.Duration("image_decode", t.ImageDecode),
		zap.Duration("letterbox", t.Letterbox),
		zap.Duration("preprocess", t.Preprocess),
		zap.Duration("inference", t.Inference),
		zap.Duration("postprocess", t.Postprocess),
		zap.Duration("masks", t.Masks),
		zap.Duration("total", t.Total),
	)
}

func (o *Orchestrator) record(branch, outcome string, start time.Time, err error) time.Duration {
	elapsed := o.now().Sub(start)
	if o.outcomes != nil {
		o.outcomes.WithLabelValues(branch, outcome).Inc()
	}

	fields := []zap.Field{
		zap.String("branch", branch),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		o.log.Info("Classification finished", append(fields, zap.Error(err))...)
	} else {
		o.log.Debug("Classification finished", fields...)
	}
	return elapsed
}
