package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wzhanglab/nabainfer/internal/app"
	"github.com/wzhanglab/nabainfer/internal/layout"
	"github.com/wzhanglab/nabainfer/internal/runcfg"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments into a validated app.Config. It
// returns a boolean indicating the program should exit cleanly (help), or
// an ExitError.
//
// Setting precedence, lowest to highest: NABAINFER_* environment variables
// (optionally loaded from a .env file), the -config HCL file, explicit
// flags.
func Parse(ctx context.Context, args []string, output io.Writer) (*app.Config, bool, error) {
	// A .env in the working directory supplies environment defaults; its
	// absence is the normal case.
	_ = godotenv.Load()

	flagSet := flag.NewFlagSet("nabainfer", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
nabainfer - atlas-based tractography parcellation pipeline for one subject.

Usage:
  nabainfer -i input.vtk -o outputDir -a atlasDir -s /path/to/Slicer [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	inputFlag := flagSet.String("i", "", "Input tractography data (.vtk or .vtp).")
	outputFlag := flagSet.String("o", "", "Output directory root; the case subfolder is created inside it.")
	atlasFlag := flagSet.String("a", os.Getenv("NABAINFER_ATLAS"), "Atlas root folder (ORG or NABA naming).")
	slicerFlag := flagSet.String("s", os.Getenv("NABAINFER_SLICER"), "Path to the 3D Slicer executable.")
	transformFlag := flagSet.String("t", "", "Optional transform file matching the data to adult brain size.")
	regModeFlag := flagSet.String("r", string(layout.ModeRigid), "Registration mode: 'rigid' or 'nonrigid'.")
	threadsFlag := flagSet.Int("n", 1, "Number of threads for tools that parallelize internally.")
	xvfbFlag := flagSet.Bool("x", false, "Wrap display-requiring tools in xvfb-run.")
	measureFlag := flagSet.Bool("d", false, "Export diffusion measurements (requires -m).")
	measureToolFlag := flagSet.String("m", os.Getenv("NABAINFER_MEASURE_TOOL"), "Path to the FiberTractMeasurements CLI module.")
	cleanupFlag := flagSet.Int("c", 0, "Cleanup tier: 0 keep all, 1 minimal, 2 maximal.")
	configFlag := flagSet.String("config", "", "Optional HCL run-config file; explicit flags override it.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Log level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}

	explicit := map[string]bool{}
	flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var extraEnv map[string]string
	if *configFlag != "" {
		settings, err := runcfg.Load(ctx, *configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 1, Message: err.Error()}
		}
		mergeString(explicit, "i", inputFlag, settings.Input)
		mergeString(explicit, "o", outputFlag, settings.Output)
		mergeString(explicit, "a", atlasFlag, settings.Atlas)
		mergeString(explicit, "s", slicerFlag, settings.Slicer)
		mergeString(explicit, "t", transformFlag, settings.Transform)
		mergeString(explicit, "r", regModeFlag, settings.RegistrationMode)
		mergeString(explicit, "m", measureToolFlag, settings.MeasurementTool)
		mergeInt(explicit, "n", threadsFlag, settings.Threads)
		mergeInt(explicit, "c", cleanupFlag, settings.CleanupTier)
		mergeBool(explicit, "x", xvfbFlag, settings.VirtualDisplay)
		mergeBool(explicit, "d", measureFlag, settings.Measurements)
		extraEnv = settings.Env
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 1, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 1, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		InputFile:        *inputFlag,
		OutputDir:        *outputFlag,
		AtlasDir:         *atlasFlag,
		SlicerPath:       *slicerFlag,
		TransformFile:    *transformFlag,
		RegistrationMode: layout.RegistrationMode(strings.ToLower(*regModeFlag)),
		Threads:          *threadsFlag,
		VirtualDisplay:   *xvfbFlag,
		Measurements:     *measureFlag,
		MeasurementTool:  *measureToolFlag,
		CleanupTier:      *cleanupFlag,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
		ExtraEnv:         extraEnv,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}

	return config, false, nil
}

func mergeString(explicit map[string]bool, name string, dst *string, fromFile *string) {
	if !explicit[name] && fromFile != nil {
		*dst = *fromFile
	}
}

func mergeInt(explicit map[string]bool, name string, dst *int, fromFile *int) {
	if !explicit[name] && fromFile != nil {
		*dst = *fromFile
	}
}

func mergeBool(explicit map[string]bool, name string, dst *bool, fromFile *bool) {
	if !explicit[name] && fromFile != nil {
		*dst = *fromFile
	}
}
