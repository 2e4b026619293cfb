// Package app wires one pipeline run: configuration, logging, atlas
// resolution, stage-graph construction, execution and cleanup.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/wzhanglab/nabainfer/internal/atlas"
	"github.com/wzhanglab/nabainfer/internal/checkpoint"
	"github.com/wzhanglab/nabainfer/internal/cleanup"
	"github.com/wzhanglab/nabainfer/internal/ctxlog"
	"github.com/wzhanglab/nabainfer/internal/execcmd"
	"github.com/wzhanglab/nabainfer/internal/layout"
	"github.com/wzhanglab/nabainfer/internal/pipeline"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle. Progress (command echoes) goes to outW, diagnostics to the
// logger on errW.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp constructs the application with its own isolated logger.
func NewApp(outW, errW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, errW)
	return &App{outW: outW, logger: logger, config: config}
}

// Run executes the full pipeline for the configured case. It returns nil
// only when the terminal stage completed; cleanup problems after that point
// are warnings, never errors.
func (a *App) Run(ctx context.Context) error {
	logger := a.logger.With("run_id", uuid.NewString())
	ctx = ctxlog.WithLogger(ctx, logger)

	// The optional measurement tool may only exist on another host by the
	// time measurements run, so a missing path is a warning here and a
	// stage failure later if it is genuinely absent.
	if a.config.MeasurementTool != "" {
		if _, err := os.Stat(a.config.MeasurementTool); err != nil {
			logger.Warn("Measurement tool not found on disk, continuing.", "path", a.config.MeasurementTool)
		}
	}

	bundle, err := atlas.Resolve(a.config.AtlasDir)
	if err != nil {
		return err
	}
	logger.Debug("Atlas resolved.", "registration", bundle.RegistrationDir, "clustering", bundle.ClusteringDir)

	lay, err := layout.New(a.config.OutputDir, a.config.InputFile,
		a.config.RegistrationMode, a.config.TransformFile != "")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(lay.CaseDir(), 0o755); err != nil {
		return fmt.Errorf("creating case directory: %w", err)
	}
	logger.Info("Case prepared.", "subject", lay.SubjectID, "case_dir", lay.CaseDir())

	scratchDir := filepath.Dir(lay.CheckpointFile())
	hemisphereFile, err := bundle.HemisphereLocationFile(scratchDir)
	if err != nil {
		return err
	}

	stages := pipeline.Build(pipeline.Params{
		InputFile:              a.config.InputFile,
		Layout:                 lay,
		Atlas:                  bundle,
		HemisphereLocationFile: hemisphereFile,
		TransformFile:          a.config.TransformFile,
		SlicerPath:             a.config.SlicerPath,
		Threads:                a.config.Threads,
		Measurements:           a.config.Measurements,
		MeasurementTool:        a.config.MeasurementTool,
		VirtualDisplay:         a.config.VirtualDisplay,
	})
	logger.Debug("Stage graph built.", "stage_count", len(stages))

	store := checkpoint.OpenStore(ctx, lay.CheckpointFile())
	checker := checkpoint.NewChecker(store)

	runner := execcmd.New(a.config.VirtualDisplay, envSlice(a.config.ExtraEnv))
	runner.Progress = a.outW

	orch := pipeline.New(stages, checker, runner)
	if err := orch.Run(ctx); err != nil {
		return err
	}
	logger.Info("Pipeline complete.", "terminal_artifact", lay.TerminalTract())

	cleanup.Apply(ctx, a.config.CleanupTier, lay)
	return nil
}

// envSlice flattens the extra env map deterministically.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
