// Command classify-dir runs every image in a directory through the image
// classifier and reports per-file results and class totals.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/classifier"
	"github.com/litterly/waste-classification-service/config"
	"github.com/litterly/waste-classification-service/detections"
	"github.com/litterly/waste-classification-service/logger"
	"github.com/litterly/waste-classification-service/models"
	"github.com/litterly/waste-classification-service/orchestrator"
	"github.com/litterly/waste-classification-service/upload"
	"github.com/litterly/waste-classification-service/vision"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// FileResult is one line of the JSON report.
type FileResult struct {
	File        string              `json:"file"`
	Success     bool                `json:"success"`
	Predictions []models.Prediction `json:"predictions,omitempty"`
	Seconds     float64             `json:"processing_time,omitempty"`
	Error       string              `json:"error,omitempty"`
}

type Summary struct {
	Files   int
	Failed  int
	Objects int
	Classes map[string]int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir := pflag.String("dir", "", "directory of images to classify (required)")
	limit := pflag.Int("limit", 0, "stop after this many images; 0 means all")
	jsonOut := pflag.Bool("json", false, "write one JSON result per line to stdout")
	pflag.Parse()

	if *dir == "" {
		pflag.Usage()
		return fmt.Errorf("--dir is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	files, err := collectImages(*dir, *limit)
	if err != nil {
		return err
	}
	log.Info("Found images", zap.String("dir", *dir), zap.Int("count", len(files)))

	destroy, err := detections.InitRuntime(cfg.Model.RuntimeLibrary)
	if err != nil {
		return err
	}
	defer func() { _ = destroy() }()

	manager := vision.NewManager(func(context.Context) (vision.Detector, error) {
		engine, err := detections.NewEngine(detections.Config{
			ModelPath:      cfg.Model.Path,
			LabelsPath:     cfg.Model.LabelsPath,
			InputSize:      cfg.Model.InputSize,
			IoUThreshold:   float32(cfg.Model.IoUThreshold),
			MaxDetections:  cfg.Model.MaxDetections,
			PoolSize:       1,
			AcquireTimeout: cfg.Model.AcquireTimeout,
			IntraOpThreads: cfg.Model.IntraOpThreads,
		}, log)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}, log)
	if err := manager.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer func() { _ = manager.Close() }()

	arena, err := upload.NewArena(cfg.Upload.Dir, log)
	if err != nil {
		return err
	}
	defer func() { _ = arena.Close() }()

	orch := orchestrator.New(orchestrator.Options{
		Model:  manager,
		Images: classifier.NewImageClassifier(manager, float32(cfg.Model.ConfidenceThreshold), log),
		Text:   classifier.NewTextClassifier(),
		Arena:  arena,
		Logger: log,
	})

	var out io.Writer
	if *jsonOut {
		out = os.Stdout
	}
	summary := classifyAll(context.Background(), orch, files, out, log)

	logSummary(log, summary)
	return nil
}

// collectImages lists image files under dir in lexical order.
func collectImages(dir string, limit int) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		if limit > 0 && len(files) >= limit {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

func classifyAll(ctx context.Context, orch *orchestrator.Orchestrator, files []string, out io.Writer, log *zap.Logger) Summary {
	summary := Summary{Classes: map[string]int{}}
	var enc *json.Encoder
	if out != nil {
		enc = json.NewEncoder(out)
	}

	for _, path := range files {
		res := classifyFile(ctx, orch, path)
		summary.add(res)

		if enc != nil {
			if err := enc.Encode(res); err != nil {
				log.Warn("Failed to write result", zap.String("file", path), zap.Error(err))
			}
		}
		if res.Success {
			log.Debug("Classified", zap.String("file", path), zap.Int("objects", len(res.Predictions)))
		} else {
			log.Warn("Classification failed", zap.String("file", path), zap.String("error", res.Error))
		}
	}
	return summary
}

func classifyFile(ctx context.Context, orch *orchestrator.Orchestrator, path string) FileResult {
	f, err := os.Open(path)
	if err != nil {
		return FileResult{File: path, Error: err.Error()}
	}
	defer f.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "image/" + strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	res, err := orch.ClassifyImage(ctx, &orchestrator.ImageUpload{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        f,
	})
	if err != nil {
		return FileResult{File: path, Error: err.Error()}
	}

	r := FileResult{File: path, Success: true, Predictions: res.Predictions}
	if res.ProcessingTime != nil {
		r.Seconds = *res.ProcessingTime
	}
	return r
}

func (s *Summary) add(r FileResult) {
	s.Files++
	if !r.Success {
		s.Failed++
		return
	}
	for _, p := range r.Predictions {
		s.Objects++
		s.Classes[p.Label()]++
	}
}

func logSummary(log *zap.Logger, s Summary) {
	log.Info("Batch finished",
		zap.Int("files", s.Files),
		zap.Int("failed", s.Failed),
		zap.Int("objects", s.Objects),
	)

	names := make([]string, 0, len(s.Classes))
	for name := range s.Classes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Classes[names[i]] != s.Classes[names[j]] {
			return s.Classes[names[i]] > s.Classes[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		log.Info("Class total", zap.String("class_name", name), zap.Int("count", s.Classes[name]))
	}
}
