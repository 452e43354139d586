package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/classifier"
	"github.com/litterly/waste-classification-service/detections"
	"github.com/litterly/waste-classification-service/orchestrator"
	"github.com/litterly/waste-classification-service/upload"
	"github.com/litterly/waste-classification-service/vision"
)

// contentDetector finds one bottle in files containing "bottle" and fails on
// files containing "broken".
type contentDetector struct{}

func (contentDetector) Detect(_ context.Context, path string, _ float32) ([]detections.RawDetection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch string(data) {
	case "broken":
		return nil, errors.New("image: unknown format")
	case "bottle":
		mask := &detections.Mask{Bounds: image.Rect(0, 0, 1, 1), Bits: []bool{true}, Area: 1}
		return []detections.RawDetection{{ClassID: 39, Confidence: 0.9, Box: [4]float32{1, 1, 5, 5}, Mask: mask}}, nil
	}
	return nil, nil
}

func (contentDetector) ClassNames() map[int]string { return map[int]string{39: "bottle"} }
func (contentDetector) Close() error               { return nil }

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return dir
}

func TestCollectImages(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.jpg":        "x",
		"b.PNG":        "x",
		"notes.txt":    "x",
		"sub/c.webp":   "x",
		"sub/d.tiff":   "x",
		"sub/README":   "x",
		"sub/e.jpeg.1": "x",
	})

	files, err := collectImages(dir, 0)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a.jpg", "b.PNG", "sub/c.webp", "sub/d.tiff"}, rel)

	limited, err := collectImages(dir, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = collectImages(filepath.Join(dir, "missing"), 0)
	assert.Error(t, err)
}

func TestClassifyAll(t *testing.T) {
	log := zap.NewNop()
	dir := writeFiles(t, map[string]string{
		"1.jpg": "bottle",
		"2.jpg": "bottle",
		"3.png": "empty",
		"4.jpg": "broken",
	})
	files, err := collectImages(dir, 0)
	require.NoError(t, err)

	manager := vision.NewManager(func(context.Context) (vision.Detector, error) { return contentDetector{}, nil }, log)
	require.NoError(t, manager.Load(context.Background()))

	arena, err := upload.NewArena(t.TempDir(), log)
	require.NoError(t, err)
	defer arena.Close()

	orch := orchestrator.New(orchestrator.Options{
		Model:  manager,
		Images: classifier.NewImageClassifier(manager, 0.25, log),
		Text:   classifier.NewTextClassifier(),
		Arena:  arena,
		Logger: log,
	})

	var out bytes.Buffer
	summary := classifyAll(context.Background(), orch, files, &out, log)

	assert.Equal(t, 4, summary.Files)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Objects)
	assert.Equal(t, map[string]int{"bottle": 2}, summary.Classes)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)

	var last struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &last))
	assert.False(t, last.Success)
	assert.Contains(t, last.Error, "unknown format")

	entries, err := os.ReadDir(arena.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
