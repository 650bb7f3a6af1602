package store

import (
	"context"
	"io/fs"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Ledger Records
// =============================================================================

// RunStatus is the outcome of a compile run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of the compiler.
type Run struct {
	ID           string
	ProjectPath  string
	ContextName  string
	Status       RunStatus
	Services     int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// NewRun starts a run with a fresh ID.
func NewRun(projectPath, contextName string) *Run {
	return &Run{
		ID:          uuid.NewString(),
		ProjectPath: projectPath,
		ContextName: contextName,
		Status:      RunRunning,
		StartedAt:   time.Now().UTC(),
	}
}

// ArtifactRecord is one artifact persisted by a run.
type ArtifactRecord struct {
	ID        int64
	RunID     string
	Key       string
	Nature    string
	Mode      fs.FileMode
	Size      int
	SHA256    string
	CreatedAt time.Time
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the compile ledger.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, opts ListOptions) ([]Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Artifact operations
	RecordArtifact(ctx context.Context, rec *ArtifactRecord) error
	ListArtifacts(ctx context.Context, runID string) ([]ArtifactRecord, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
