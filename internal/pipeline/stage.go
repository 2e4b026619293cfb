// Package pipeline builds and drives the per-subject stage sequence.
//
// All configuration branching happens once, in Build, which materializes the
// ordered stage list before anything executes. The orchestrator then applies
// one uniform discipline to every stage: skip when the expected outputs
// already exist, otherwise create the work directories, invoke the external
// tool, and verify the outputs appeared.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/wzhanglab/nabainfer/internal/tools"
)

// Stage is one externally-executed step of a run. Outputs is the completion
// contract: the stage is done exactly when every listed path exists.
type Stage struct {
	Name string
	// Outputs are the artifacts this stage must produce.
	Outputs []string
	// WorkDirs are created immediately before invocation, never earlier, so
	// an empty directory is not mistaken for progress.
	WorkDirs []string
	// Command is the external invocation.
	Command tools.Command

	// Expand, when non-nil, materializes sub-stages at execution time in
	// place of this stage. Used by the per-hemisphere-folder inverse
	// transform, whose fan-out depends on what hemisphere separation wrote.
	Expand func() ([]Stage, error)
}

// ExecError reports an external tool that failed outright.
type ExecError struct {
	Stage string
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// MissingOutputError reports a tool that exited successfully without
// producing its declared outputs. Kept distinct from ExecError so the
// operator can tell a crashed tool from a silently unproductive one.
type MissingOutputError struct {
	Stage   string
	Missing []string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("stage %s produced no output: %s missing", e.Stage, strings.Join(e.Missing, ", "))
}
