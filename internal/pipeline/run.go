package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/wzhanglab/nabainfer/internal/checkpoint"
	"github.com/wzhanglab/nabainfer/internal/ctxlog"
	"github.com/wzhanglab/nabainfer/internal/execcmd"
)

// Orchestrator drives a materialized stage list to completion or first
// failure. Strictly sequential; the filesystem is the only shared state.
type Orchestrator struct {
	stages  []Stage
	checker *checkpoint.Checker
	invoker execcmd.Invoker
}

// New wires a stage list to its completion checker and command invoker.
func New(stages []Stage, checker *checkpoint.Checker, invoker execcmd.Invoker) *Orchestrator {
	return &Orchestrator{stages: stages, checker: checker, invoker: invoker}
}

// Run executes every stage in order. The first failure aborts the run;
// artifacts already written stay where they are.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, st := range o.stages {
		if st.Expand != nil {
			subs, err := st.Expand()
			if err != nil {
				return &ExecError{Stage: st.Name, Err: err}
			}
			for _, sub := range subs {
				if err := o.runStage(ctx, sub); err != nil {
					return err
				}
			}
			continue
		}
		if err := o.runStage(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, st Stage) error {
	logger := ctxlog.FromContext(ctx).With("stage", st.Name)

	if o.checker.IsComplete(ctx, st.Name, st.Outputs) {
		logger.Info("Stage already complete, skipping.")
		return nil
	}

	for _, dir := range st.WorkDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &ExecError{Stage: st.Name, Err: fmt.Errorf("creating %s: %w", dir, err)}
		}
	}

	logger.Info("Running stage.")
	if err := o.invoker.Invoke(ctx, st.Command); err != nil {
		return &ExecError{Stage: st.Name, Err: err}
	}

	if missing := missingOutputs(st.Outputs); len(missing) > 0 {
		return &MissingOutputError{Stage: st.Name, Missing: missing}
	}

	o.checker.MarkComplete(ctx, st.Name, st.Outputs)
	logger.Info("Stage complete.")
	return nil
}

func missingOutputs(outputs []string) []string {
	var missing []string
	for _, path := range outputs {
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	return missing
}
