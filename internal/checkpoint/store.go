package checkpoint

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/wzhanglab/nabainfer/internal/ctxlog"
)

// Store persists stage records as a single JSON document next to the
// artifacts it describes. Every failure path is a warning: losing the
// store costs fingerprint checking, never correctness of the run.
type Store struct {
	path    string
	records map[string]Record
}

// OpenStore loads the record file at path if one exists.
func OpenStore(ctx context.Context, path string) *Store {
	s := &Store{path: path, records: map[string]Record{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s
	}
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Checkpoint store unreadable, starting empty.", "path", path, "error", err)
		return s
	}
	if err := sonic.Unmarshal(data, &s.records); err != nil {
		ctxlog.FromContext(ctx).Warn("Checkpoint store corrupt, starting empty.", "path", path, "error", err)
		s.records = map[string]Record{}
	}
	return s
}

// Record returns the stored record for stage, if any.
func (s *Store) Record(stage string) (Record, bool) {
	rec, ok := s.records[stage]
	return rec, ok
}

func (s *Store) put(ctx context.Context, rec Record) {
	s.records[rec.Stage] = rec
	data, err := sonic.Marshal(s.records)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Checkpoint record not encodable.", "stage", rec.Stage, "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		ctxlog.FromContext(ctx).Warn("Checkpoint store directory not writable.", "path", s.path, "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		ctxlog.FromContext(ctx).Warn("Checkpoint store not writable.", "path", s.path, "error", err)
	}
}
