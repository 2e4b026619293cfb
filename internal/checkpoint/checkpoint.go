// Package checkpoint decides whether a stage already ran.
//
// The output directory tree is the checkpoint store: a stage whose expected
// outputs all exist is complete. On top of that coarse predicate the
// orchestrator keeps an advisory record per stage it ran itself, holding a
// size fingerprint per output; a record whose fingerprint no longer matches
// marks the stage incomplete again. Existence stays sufficient on its own
// so operator-provisioned artifacts still count as done.
package checkpoint

import (
	"context"
	"os"
	"time"

	"github.com/wzhanglab/nabainfer/internal/ctxlog"
)

// Output is one recorded artifact fingerprint. Size is -1 for directories.
type Output struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Record is the advisory completion record of one stage.
type Record struct {
	Stage       string    `json:"stage"`
	Outputs     []Output  `json:"outputs"`
	CompletedAt time.Time `json:"completed_at"`
}

// Checker answers the completion predicate for stages, consulting an
// optional record store. A nil store degrades to pure existence checks.
type Checker struct {
	store *Store
}

// NewChecker returns a Checker backed by store (which may be nil).
func NewChecker(store *Store) *Checker {
	return &Checker{store: store}
}

// IsComplete reports whether every path in outputs exists, and, when a
// record for the stage is on file, whether the recorded fingerprints still
// match. An empty output list never counts as complete.
func (c *Checker) IsComplete(ctx context.Context, stage string, outputs []string) bool {
	if len(outputs) == 0 {
		return false
	}
	for _, path := range outputs {
		if !exists(path) {
			return false
		}
	}
	if c.store == nil {
		return true
	}
	rec, ok := c.store.Record(stage)
	if !ok {
		return true
	}
	for _, out := range rec.Outputs {
		if out.Size < 0 {
			continue
		}
		info, err := os.Stat(out.Path)
		if err != nil || info.Size() != out.Size {
			ctxlog.FromContext(ctx).Warn("Checkpoint fingerprint mismatch, stage will re-run.",
				"stage", stage, "path", out.Path)
			return false
		}
	}
	return true
}

// MarkComplete fingerprints outputs and persists a record for stage.
// Persistence failures are warnings: the store is advisory.
func (c *Checker) MarkComplete(ctx context.Context, stage string, outputs []string) {
	if c.store == nil {
		return
	}
	rec := Record{Stage: stage, CompletedAt: time.Now().UTC()}
	for _, path := range outputs {
		size := int64(-1)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			size = info.Size()
		}
		rec.Outputs = append(rec.Outputs, Output{Path: path, Size: size})
	}
	c.store.put(ctx, rec)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
