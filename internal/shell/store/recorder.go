package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/artpar/giac/internal/core/artifact"
)

// =============================================================================
// Recording Handler
// =============================================================================

// Recorder is an artifact.Handler that forwards to Next and records every
// successful write under RunID.
type Recorder struct {
	Next  artifact.Handler
	Store Store
	RunID string
}

// NewRecorder wraps next so that writes are recorded for run.
func NewRecorder(next artifact.Handler, s Store, run *Run) *Recorder {
	return &Recorder{Next: next, Store: s, RunID: run.ID}
}

// Persist implements artifact.Handler.
func (r *Recorder) Persist(ctx context.Context, key string, a *artifact.Artifact, opts ...artifact.Option) error {
	if err := r.Next.Persist(ctx, key, a, opts...); err != nil {
		return err
	}

	body := a.Bytes()
	sum := sha256.Sum256(body)
	return r.Store.RecordArtifact(ctx, &ArtifactRecord{
		RunID:  r.RunID,
		Key:    key,
		Nature: a.Nature().Name,
		Mode:   artifact.ApplyOptions(opts...).Mode,
		Size:   len(body),
		SHA256: hex.EncodeToString(sum[:]),
	})
}
