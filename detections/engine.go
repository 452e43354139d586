package detections

import (
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/litterly/waste-classification-service/models"
)

// Engine runs a YOLOv8 segmentation model through ONNX Runtime.
type Engine struct {
	cfg     Config
	layout  modelLayout
	pool    *SessionPool
	names   map[int]string
	workers int
	log     *zap.Logger
}

// NewEngine inspects the model, resolves its class table and opens a pool of
// sessions. The ONNX Runtime environment must already be initialized.
func NewEngine(cfg Config, log *zap.Logger) (*Engine, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultInputSize
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = DefaultIoUThreshold
	}
	if cfg.MaxDetections <= 0 {
		cfg.MaxDetections = DefaultMaxDetections
	}

	layout, err := inspectModel(cfg.ModelPath, cfg.InputSize)
	if err != nil {
		return nil, err
	}

	names, err := resolveNames(cfg)
	if err != nil {
		return nil, err
	}

	threads := cfg.IntraOpThreads
	if threads <= 0 {
		threads = preprocessWorkers(cfg.PoolSize)
	}

	pool, err := NewSessionPool(cfg.PoolSize, cfg.AcquireTimeout, func() (*ModelSession, error) {
		return initSession(cfg.ModelPath, layout, threads)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model session pool: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		layout:  layout,
		pool:    pool,
		names:   names,
		workers: preprocessWorkers(cfg.PoolSize),
		log:     log,
	}

	log.Info("Detection engine ready",
		zap.String("model", cfg.ModelPath),
		zap.Int("input_size", layout.inputSize),
		zap.Int("classes", layout.numClasses),
		zap.Bool("segmentation", layout.hasMasks()),
		zap.Int("pool_size", pool.Stats().Size),
		zap.Int("intra_op_threads", threads),
		zap.Strings("cpu_features", CPUFeatures()),
	)
	return e, nil
}

func resolveNames(cfg Config) (map[int]string, error) {
	if cfg.LabelsPath != "" {
		return loadNamesFile(cfg.LabelsPath)
	}
	names, err := loadNamesMetadata(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = map[int]string{}
	}
	return names, nil
}

// Detect decodes the image at imagePath and returns the objects scoring at
// least threshold, highest score first. Masks are nil only for detect-only models.
func (e *Engine) Detect(ctx context.Context, imagePath string, threshold float32) ([]RawDetection, error) {
	timings := models.TimingsFrom(ctx)

	decodeStart := time.Now()
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	timings.ImageDecode = time.Since(decodeStart)

	resizeStart := time.Now()
	canvas, lb := letterboxImage(img, e.layout.inputSize)
	timings.Letterbox = time.Since(resizeStart)

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer e.pool.Release(session)

	prepStart := time.Now()
	fillInput(session.Input.GetData(), canvas, e.workers)
	timings.Preprocess = time.Since(prepStart)

	inferStart := time.Now()
	if err := session.Session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	timings.Inference = time.Since(inferStart)

	postStart := time.Now()
	out := session.Output.GetData()
	candidates, err := decodeCandidates(out, e.layout, threshold)
	if err != nil {
		return nil, fmt.Errorf("process predictions: %w", err)
	}
	kept := nonMaxSuppression(candidates, e.cfg.IoUThreshold, e.cfg.MaxDetections)
	timings.Postprocess = time.Since(postStart)

	maskStart := time.Now()
	var protos []float32
	if session.Protos != nil {
		protos = session.Protos.GetData()
	}
	result := assembleDetections(kept, out, protos, e.layout, lb)
	timings.Masks = time.Since(maskStart)

	return result, nil
}

// ClassNames returns a copy of the index→label table.
func (e *Engine) ClassNames() map[int]string {
	out := make(map[int]string, len(e.names))
	for k, v := range e.names {
		out[k] = v
	}
	return out
}

func (e *Engine) PoolStats() PoolStats {
	return e.pool.Stats()
}

func (e *Engine) Close() error {
	e.pool.Destroy()
	return nil
}
