// Package runcfg loads the optional HCL run-configuration file.
//
// The file carries the same settings as the command line plus an env map of
// extra environment variables exported to every external tool. Settings
// fields are pointers so the CLI can tell "set in file" from "absent" when
// merging: explicit flags always win.
package runcfg

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/wzhanglab/nabainfer/internal/ctxlog"
)

// Settings mirrors the CLI surface. Nil means the file did not set it.
type Settings struct {
	Input            *string
	Output           *string
	Atlas            *string
	Slicer           *string
	Transform        *string
	RegistrationMode *string
	Threads          *int
	VirtualDisplay   *bool
	Measurements     *bool
	MeasurementTool  *string
	CleanupTier      *int

	// Env holds extra environment variables for external tools.
	Env map[string]string
}

type fileRoot struct {
	Pipeline *pipelineBlock `hcl:"pipeline,block"`
	Remain   hcl.Body       `hcl:",remain"`
}

type pipelineBlock struct {
	Input            *string        `hcl:"input,optional"`
	Output           *string        `hcl:"output,optional"`
	Atlas            *string        `hcl:"atlas,optional"`
	Slicer           *string        `hcl:"slicer,optional"`
	Transform        *string        `hcl:"transform,optional"`
	RegistrationMode *string        `hcl:"registration_mode,optional"`
	Threads          *int           `hcl:"threads,optional"`
	VirtualDisplay   *bool          `hcl:"virtual_display,optional"`
	Measurements     *bool          `hcl:"measurements,optional"`
	MeasurementTool  *string        `hcl:"measurement_tool,optional"`
	CleanupTier      *int           `hcl:"cleanup_tier,optional"`
	Env              hcl.Expression `hcl:"env,optional"`
}

// Load parses and decodes path. The file must contain exactly one pipeline
// block.
func Load(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading run-config file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}
	if root.Pipeline == nil {
		return nil, fmt.Errorf("%s: missing pipeline block", path)
	}

	env, err := decodeEnv(root.Pipeline.Env)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	b := root.Pipeline
	return &Settings{
		Input:            b.Input,
		Output:           b.Output,
		Atlas:            b.Atlas,
		Slicer:           b.Slicer,
		Transform:        b.Transform,
		RegistrationMode: b.RegistrationMode,
		Threads:          b.Threads,
		VirtualDisplay:   b.VirtualDisplay,
		Measurements:     b.Measurements,
		MeasurementTool:  b.MeasurementTool,
		CleanupTier:      b.CleanupTier,
		Env:              env,
	}, nil
}

// decodeEnv evaluates the env attribute into a string map. Values are
// converted to string so numbers and bools read naturally in the file.
func decodeEnv(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("env must be a map of strings, got %s", val.Type().FriendlyName())
	}

	env := map[string]string{}
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		str, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("env value for %s: %w", k.AsString(), err)
		}
		env[k.AsString()] = str.AsString()
	}
	return env, nil
}
