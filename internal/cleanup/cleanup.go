// Package cleanup prunes intermediate artifacts after a successful run.
//
// Tiers are strictly additive: tier 2 runs tier 1's pass first, then its
// own, so the surviving artifact set can only shrink as the tier rises.
// Deletion errors never fail the run; it already succeeded.
package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wzhanglab/nabainfer/internal/ctxlog"
	"github.com/wzhanglab/nabainfer/internal/layout"
)

// Cleanup tiers.
const (
	TierKeep    = 0
	TierMinimal = 1
	TierMaximal = 2
)

// Apply removes intermediates for the given tier. Call only after the
// terminal stage completed.
func Apply(ctx context.Context, tier int, l *layout.Layout) {
	if tier >= TierMinimal {
		minimalPass(ctx, l)
	}
	if tier >= TierMaximal {
		maximalPass(ctx, l)
	}
}

// minimalPass drops the pre-outlier-removal clusters and the un-transform
// staging tree; everything downstream only reads the separated clusters.
func minimalPass(ctx context.Context, l *layout.Layout) {
	removeAll(ctx, l.InitialClustersDir())
	removeAll(ctx, l.TransformedClustersRoot())
}

// maximalPass additionally strips registration down to its transforms and
// logs, and the outlier-removal tree down to its logs.
func maximalPass(ctx context.Context, l *layout.Layout) {
	pruneRegistration(ctx, l.RegistrationDir())
	stripToLogs(ctx, l.OutlierRemovedDir())
	pruneFiles(ctx, l.TransformedClustersRoot())
}

// pruneRegistration deletes the bulky registration intermediates: every
// .vtk geometry under an output_tractography folder and every per-iteration
// diagnostic subdirectory. Transform files and logs survive.
func pruneRegistration(ctx context.Context, regDir string) {
	if _, err := os.Stat(regDir); err != nil {
		return
	}
	filepath.WalkDir(regDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warn(ctx, path, err)
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), "iteration") {
			removeAll(ctx, path)
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".vtk") &&
			filepath.Base(filepath.Dir(path)) == "output_tractography" {
			remove(ctx, path)
		}
		return nil
	})
}

// stripToLogs removes everything under root except .log files, dropping
// directories that end up empty.
func stripToLogs(ctx context.Context, root string) {
	if _, err := os.Stat(root); err != nil {
		return
	}
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warn(ctx, path, err)
			return nil
		}
		if d.IsDir() {
			if path != root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".log") {
			remove(ctx, path)
		}
		return nil
	})
	// Deepest first so emptied parents can go too. Non-empty directories
	// (still holding logs) are left alone.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		os.Remove(dir)
	}
}

// pruneFiles removes every non-directory entry under root, keeping the
// directory skeleton.
func pruneFiles(ctx context.Context, root string) {
	if _, err := os.Stat(root); err != nil {
		return
	}
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warn(ctx, path, err)
			return nil
		}
		if !d.IsDir() {
			remove(ctx, path)
		}
		return nil
	})
}

func removeAll(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		warn(ctx, path, err)
	}
}

func remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil {
		warn(ctx, path, err)
	}
}

func warn(ctx context.Context, path string, err error) {
	ctxlog.FromContext(ctx).Warn("Cleanup could not remove artifact.", "path", path, "error", err)
}
