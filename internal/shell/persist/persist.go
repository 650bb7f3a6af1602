// Package persist writes compiled artifacts to a filesystem.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/artpar/giac/internal/core/artifact"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("invalid artifact key")

	// ErrWriteFailed is returned when the filesystem rejects a write.
	ErrWriteFailed = errors.New("artifact write failed")
)

// PersistError wraps a failed write with the artifact key and path.
type PersistError struct {
	Key  string
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("persist %s (%s): %v", e.Key, e.Path, e.Err)
	}
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Handler
// =============================================================================

// Result describes one persisted artifact.
type Result struct {
	Key    string
	Path   string
	Nature string
	Mode   fs.FileMode
	Size   int
}

// Handler implements artifact.Handler on an afero filesystem. Keys are
// slash separated paths relative to the destination directory.
type Handler struct {
	fs      afero.Fs
	dest    string
	logger  *slog.Logger
	dryRun  bool
	mu      sync.Mutex
	results []Result
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithDryRun records results without touching the filesystem.
func WithDryRun() Option {
	return func(h *Handler) { h.dryRun = true }
}

// New creates a handler writing below dest on fsys.
func New(fsys afero.Fs, dest string, opts ...Option) *Handler {
	h := &Handler{fs: fsys, dest: dest, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewOS writes below dest on the operating system filesystem.
func NewOS(dest string, opts ...Option) *Handler {
	return New(afero.NewOsFs(), dest, opts...)
}

// NewMemory writes to an in-memory filesystem rooted at "/".
func NewMemory(opts ...Option) *Handler {
	return New(afero.NewMemMapFs(), "/", opts...)
}

// Fs returns the underlying filesystem.
func (h *Handler) Fs() afero.Fs { return h.fs }

// Path returns the filesystem path for key.
func (h *Handler) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return filepath.Join(h.dest, clean), nil
}

// Persist implements artifact.Handler. Parent directories are created.
func (h *Handler) Persist(ctx context.Context, key string, a *artifact.Artifact, opts ...artifact.Option) error {
	if err := ctx.Err(); err != nil {
		return &PersistError{Key: key, Err: err}
	}
	path, err := h.Path(key)
	if err != nil {
		return &PersistError{Key: key, Err: err}
	}

	wo := artifact.ApplyOptions(opts...)
	body := a.Bytes()

	if !h.dryRun {
		if err := h.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return &PersistError{Key: key, Path: path, Err: fmt.Errorf("%w: %v", ErrWriteFailed, err)}
		}
		if err := afero.WriteFile(h.fs, path, body, wo.Mode); err != nil {
			return &PersistError{Key: key, Path: path, Err: fmt.Errorf("%w: %v", ErrWriteFailed, err)}
		}
		// WriteFile keeps the mode of an existing file
		if wo.Chmoded {
			if err := h.fs.Chmod(path, wo.Mode); err != nil {
				return &PersistError{Key: key, Path: path, Err: fmt.Errorf("%w: %v", ErrWriteFailed, err)}
			}
		}
	}

	h.mu.Lock()
	h.results = append(h.results, Result{
		Key:    key,
		Path:   path,
		Nature: a.Nature().Name,
		Mode:   wo.Mode,
		Size:   len(body),
	})
	h.mu.Unlock()

	h.logger.Debug("artifact persisted",
		"key", key,
		"path", path,
		"bytes", len(body),
		"mode", wo.Mode.String(),
		"dry_run", h.dryRun,
	)
	return nil
}

// Results returns the persisted artifacts in write order.
func (h *Handler) Results() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Result(nil), h.results...)
}
