// Package upload stores request images on disk for the lifetime of a single
// classification.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxExtLen = 8

// Arena is a private directory holding in-flight uploads. Every file gets a
// fresh UUID name, so concurrent uploads with the same client filename never
// collide.
type Arena struct {
	dir   string
	log   *zap.Logger
	newID func() string
}

// TempUpload is one stored upload. Its path is valid until Release.
type TempUpload struct {
	path string
	size int64
}

func (t *TempUpload) Path() string { return t.path }
func (t *TempUpload) Size() int64  { return t.size }

// NewArena creates a process-private directory under baseDir, or under the
// system temp dir when baseDir is empty.
func NewArena(baseDir string, log *zap.Logger) (*Arena, error) {
	if baseDir != "" {
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload base dir: %w", err)
		}
	}

	dir, err := os.MkdirTemp(baseDir, "litterly-uploads-")
	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &Arena{
		dir:   dir,
		log:   log.Named("upload"),
		newID: uuid.NewString,
	}, nil
}

func (a *Arena) Dir() string {
	return a.dir
}

// Write copies src into a new file named after a UUID plus the sanitized
// extension of filename. A partially written file is removed on error.
func (a *Arena) Write(filename string, src io.Reader) (*TempUpload, error) {
	path := filepath.Join(a.dir, a.newID()+Extension(filename))

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	return &TempUpload{path: path, size: n}, nil
}

// Release removes the upload. Failures are logged and otherwise ignored.
func (a *Arena) Release(t *TempUpload) {
	if t == nil {
		return
	}
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Warn("Failed to remove temp upload", zap.String("path", t.path), zap.Error(err))
	}
}

// Close removes the arena directory and anything left in it.
func (a *Arena) Close() error {
	return os.RemoveAll(a.dir)
}

// Extension returns the lowercased extension of filename with a leading dot,
// or "" when it is missing, too long or not alphanumeric.
func Extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return ""
		}
	}
	return "." + ext
}
