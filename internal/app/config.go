package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/wzhanglab/nabainfer/internal/layout"
)

// Config holds everything one pipeline run needs. Built once at startup
// and treated as immutable afterwards.
type Config struct {
	InputFile        string
	OutputDir        string
	AtlasDir         string
	SlicerPath       string
	TransformFile    string
	RegistrationMode layout.RegistrationMode
	Threads          int
	VirtualDisplay   bool
	Measurements     bool
	MeasurementTool  string
	CleanupTier      int

	LogFormat string
	LogLevel  string

	// ExtraEnv is exported to every external tool invocation.
	ExtraEnv map[string]string
}

// NewConfig validates cfg and returns its canonical form. All configuration
// errors surface here, before any stage runs.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.InputFile == "" {
		return nil, errors.New("input file is required")
	}
	if info, err := os.Stat(cfg.InputFile); err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("input file not found: %s", cfg.InputFile)
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.AtlasDir == "" {
		return nil, errors.New("atlas directory is required")
	}
	if cfg.SlicerPath == "" {
		return nil, errors.New("slicer path is required")
	}
	if _, err := os.Stat(cfg.SlicerPath); err != nil {
		return nil, fmt.Errorf("slicer not found: %s", cfg.SlicerPath)
	}
	if cfg.TransformFile != "" {
		if info, err := os.Stat(cfg.TransformFile); err != nil || !info.Mode().IsRegular() {
			return nil, fmt.Errorf("transform file not found: %s", cfg.TransformFile)
		}
	}

	switch cfg.RegistrationMode {
	case "":
		cfg.RegistrationMode = layout.ModeRigid
	case layout.ModeRigid, layout.ModeNonRigid:
	default:
		return nil, fmt.Errorf("invalid registration mode %q: must be %q or %q",
			cfg.RegistrationMode, layout.ModeRigid, layout.ModeNonRigid)
	}

	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.CleanupTier < 0 || cfg.CleanupTier > 2 {
		return nil, fmt.Errorf("invalid cleanup tier %d: must be 0, 1 or 2", cfg.CleanupTier)
	}
	if cfg.Measurements && cfg.MeasurementTool == "" {
		return nil, errors.New("measurement export requires the measurement tool path")
	}

	return &cfg, nil
}
