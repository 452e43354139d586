package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/classifier"
	"github.com/litterly/waste-classification-service/config"
	"github.com/litterly/waste-classification-service/detections"
	"github.com/litterly/waste-classification-service/logger"
	"github.com/litterly/waste-classification-service/orchestrator"
	"github.com/litterly/waste-classification-service/upload"
	"github.com/litterly/waste-classification-service/vision"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	arena, err := upload.NewArena(cfg.Upload.Dir, log)
	if err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	defer func() {
		if err := arena.Close(); err != nil {
			log.Warn("Failed to remove upload dir", zap.String("dir", arena.Dir()), zap.Error(err))
		}
	}()

	// A missing runtime library only disables image classification.
	destroyRuntime, runtimeErr := detections.InitRuntime(cfg.Model.RuntimeLibrary)
	if runtimeErr != nil {
		log.Error("ONNX Runtime unavailable", zap.String("library", cfg.Model.RuntimeLibrary), zap.Error(runtimeErr))
	} else {
		defer func() {
			if err := destroyRuntime(); err != nil {
				log.Warn("Failed to destroy ONNX Runtime environment", zap.Error(err))
			}
		}()
	}

	manager := vision.NewManager(engineLoader(cfg.Model, runtimeErr, log), log)
	defer func() {
		if err := manager.Close(); err != nil {
			log.Warn("Failed to close model", zap.Error(err))
		}
	}()

	loadCtx, cancelLoad := context.WithCancel(context.Background())
	defer cancelLoad()
	go func() { _ = manager.Load(loadCtx) }()

	metrics := NewMetrics(manager)
	state := &AppState{
		Model: manager,
		Orchestrator: orchestrator.New(orchestrator.Options{
			Model:    manager,
			Images:   classifier.NewImageClassifier(manager, float32(cfg.Model.ConfidenceThreshold), log),
			Text:     classifier.NewTextClassifier(),
			Arena:    arena,
			Logger:   log,
			Outcomes: metrics.Classifications(),
		}),
		Metrics:        metrics,
		Log:            log,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      state.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

// engineLoader builds the detection engine from the model config. runtimeErr
// is the outcome of runtime initialization; a non-nil value fails the load.
func engineLoader(cfg config.ModelConfig, runtimeErr error, log *zap.Logger) vision.Loader {
	return func(ctx context.Context) (vision.Detector, error) {
		if runtimeErr != nil {
			return nil, runtimeErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		engine, err := detections.NewEngine(detections.Config{
			ModelPath:      cfg.Path,
			LabelsPath:     cfg.LabelsPath,
			InputSize:      cfg.InputSize,
			IoUThreshold:   float32(cfg.IoUThreshold),
			MaxDetections:  cfg.MaxDetections,
			PoolSize:       cfg.PoolSize,
			AcquireTimeout: cfg.AcquireTimeout,
			IntraOpThreads: cfg.IntraOpThreads,
		}, log)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			_ = engine.Close()
			return nil, err
		}
		return engine, nil
	}
}
