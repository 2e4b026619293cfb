package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wzhanglab/nabainfer/internal/atlas"
	"github.com/wzhanglab/nabainfer/internal/layout"
	"github.com/wzhanglab/nabainfer/internal/tools"
)

// Params are the configuration axes the stage graph depends on. They are
// read once by Build; nothing is re-evaluated mid-run.
type Params struct {
	InputFile string
	Layout    *layout.Layout
	Atlas     *atlas.Bundle

	// HemisphereLocationFile is the resolved cluster-location reference.
	HemisphereLocationFile string

	// TransformFile, when non-empty, enables the size-matching transform
	// branch: a harden-transform prologue and a per-hemisphere-folder
	// inverse-transform epilogue.
	TransformFile string

	SlicerPath string
	Threads    int

	// Measurements appends the diffusion-measurement stages. Requires
	// MeasurementTool; validated by the configuration layer.
	Measurements    bool
	MeasurementTool string

	// VirtualDisplay only affects the measurement launcher string here; the
	// command runner applies the wrapper to display-requiring stages itself.
	VirtualDisplay bool
}

// Build materializes the ordered stage list for one run.
func Build(p Params) []Stage {
	l := p.Layout
	fcDir := p.Atlas.ClusteringDir
	var stages []Stage

	if p.TransformFile != "" {
		stages = append(stages, Stage{
			Name:     "harden-transform",
			Outputs:  []string{l.TransformedInput()},
			WorkDirs: []string{l.TransformedTractsDir()},
			Command: tools.HardenTransform(p.TransformFile, filepath.Dir(p.InputFile),
				l.TransformedTractsDir(), p.SlicerPath, false),
		})
	}

	activeInput := l.ActiveInput(p.InputFile)
	regAtlas := p.Atlas.RegistrationAtlasFile()
	if l.Mode == layout.ModeNonRigid {
		stages = append(stages,
			Stage{
				Name:     "registration-affine",
				Outputs:  []string{l.AffineRegOutput(), l.AffineTransformFile()},
				WorkDirs: []string{l.RegistrationDir()},
				Command:  tools.RegisterToAtlas(tools.RegModeAffine, activeInput, regAtlas, l.RegistrationDir()),
			},
			Stage{
				Name:     "registration-nonrigid",
				Outputs:  []string{l.RegOutput(), l.NonRigidTransformFile()},
				WorkDirs: []string{l.RegistrationDir()},
				Command:  tools.RegisterToAtlas(tools.RegModeNonRigid, l.AffineRegOutput(), regAtlas, l.RegistrationDir()),
			},
		)
	} else {
		stages = append(stages, Stage{
			Name:     "registration",
			Outputs:  []string{l.RegOutput(), l.AffineTransformFile()},
			WorkDirs: []string{l.RegistrationDir()},
			Command:  tools.RegisterToAtlas(tools.RegModeRigidAffineFast, activeInput, regAtlas, l.RegistrationDir()),
		})
	}

	stages = append(stages,
		Stage{
			Name:     "fiber-clustering",
			Outputs:  []string{l.InitialClusterOutput()},
			WorkDirs: []string{l.InitialClustersDir()},
			Command:  tools.ClusterFromAtlas(p.Threads, l.RegOutput(), fcDir, l.InitialClustersDir()),
		},
		Stage{
			Name:     "outlier-removal",
			Outputs:  []string{l.OutlierOutput()},
			WorkDirs: []string{l.OutlierRemovedDir()},
			Command:  tools.RemoveOutliers(p.Threads, l.InitialClusterCaseDir(), fcDir, l.OutlierRemovedDir()),
		},
		Stage{
			Name:    "hemisphere-assessment",
			Outputs: []string{l.HemisphereLog()},
			Command: tools.AssessHemisphereLocation(p.HemisphereLocationFile, l.OutlierCaseDir()),
		},
	)

	// Clusters live in atlas space after registration; harden the forward
	// transforms inverted to map them back. Non-rigid mode chains two
	// transforms and must undo them in reverse order (non-rigid first, then
	// affine) through a staging directory, because they do not commute.
	if l.Mode == layout.ModeNonRigid {
		stages = append(stages,
			Stage{
				Name:     "cluster-untransform-nonrigid",
				Outputs:  []string{l.TransformedClusterTmpOutput()},
				WorkDirs: []string{l.TransformedClustersTmpDir()},
				Command: tools.HardenTransform(l.NonRigidTransformFile(), l.OutlierCaseDir(),
					l.TransformedClustersTmpDir(), p.SlicerPath, true),
			},
			Stage{
				Name:     "cluster-untransform-affine",
				Outputs:  []string{l.TransformedClusterOutput()},
				WorkDirs: []string{l.TransformedClustersDir()},
				Command: tools.HardenTransform(l.AffineTransformFile(), l.TransformedClustersTmpDir(),
					l.TransformedClustersDir(), p.SlicerPath, true),
			},
		)
	} else {
		stages = append(stages, Stage{
			Name:     "cluster-untransform",
			Outputs:  []string{l.TransformedClusterOutput()},
			WorkDirs: []string{l.TransformedClustersDir()},
			Command: tools.HardenTransform(l.AffineTransformFile(), l.OutlierCaseDir(),
				l.TransformedClustersDir(), p.SlicerPath, true),
		})
	}

	stages = append(stages, Stage{
		Name:     "hemisphere-separation",
		Outputs:  []string{l.SeparatedSentinel()},
		WorkDirs: []string{l.SeparatedClustersDir()},
		Command:  tools.SeparateByHemisphere(l.TransformedClustersDir(), l.SeparatedClustersDir()),
	})

	if p.TransformFile != "" {
		stages = append(stages, Stage{
			Name:   "inverse-transform",
			Expand: inverseTransformFanOut(l, p.TransformFile, p.SlicerPath),
		})
	}

	stages = append(stages, Stage{
		Name:     "anatomical-tracts",
		Outputs:  []string{l.TerminalTract()},
		WorkDirs: []string{l.AnatomicalTractsDir()},
		Command:  tools.AppendAnatomicalTracts(l.FinalClustersDir(), fcDir, l.AnatomicalTractsDir()),
	})

	if p.Measurements {
		launcher := tools.MeasurementLauncher(p.SlicerPath, p.MeasurementTool, p.VirtualDisplay)
		regions := []struct{ name, folder string }{
			{"commissural", "tracts_commissural"},
			{"left", "tracts_left_hemisphere"},
			{"right", "tracts_right_hemisphere"},
		}
		for _, r := range regions {
			stages = append(stages, Stage{
				Name:    "measurements-" + r.name,
				Outputs: []string{l.MeasurementCSV(r.name)},
				Command: tools.DiffusionMeasurements(filepath.Join(l.FinalClustersDir(), r.folder),
					l.MeasurementCSV(r.name), launcher),
			})
		}
		stages = append(stages, Stage{
			Name:    "measurements-anatomical-tracts",
			Outputs: []string{l.AnatomicalMeasurementCSV()},
			Command: tools.DiffusionMeasurements(l.AnatomicalTractsDir(),
				l.AnatomicalMeasurementCSV(), launcher),
		})
	}

	return stages
}

// inverseTransformFanOut defers sub-stage materialization until hemisphere
// separation has written its tracts_* subfolders. Each subfolder becomes an
// independently resumable sub-stage.
func inverseTransformFanOut(l *layout.Layout, transformFile, slicerPath string) func() ([]Stage, error) {
	return func() ([]Stage, error) {
		entries, err := os.ReadDir(l.SeparatedClustersDir())
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", l.SeparatedClustersDir(), err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		var subs []Stage
		for _, name := range names {
			srcDir := filepath.Join(l.SeparatedClustersDir(), name)
			outDir := filepath.Join(l.InvTransformedDir(), name)
			subs = append(subs, Stage{
				Name:     "inverse-transform/" + name,
				Outputs:  []string{filepath.Join(outDir, layout.ClusterFileName)},
				WorkDirs: []string{outDir},
				Command:  tools.HardenTransform(transformFile, srcDir, outDir, slicerPath, true),
			})
		}
		return subs, nil
	}
}
