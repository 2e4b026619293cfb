// Package layout derives the per-subject output directory tree.
//
// Every stage reads and writes paths produced here; the exact shape of the
// tree doubles as the resume-detection contract, so nothing outside this
// package is allowed to invent a path by convention.
package layout

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// RegistrationMode selects the registration branch of the pipeline.
type RegistrationMode string

const (
	// ModeRigid runs a single rigid-affine registration pass.
	ModeRigid RegistrationMode = "rigid"
	// ModeNonRigid runs an affine pass followed by a non-rigid refinement.
	ModeNonRigid RegistrationMode = "nonrigid"
)

// Fixed terminal filenames per stage. Changing any of these breaks resume
// detection against trees written by earlier versions.
const (
	ClusterFileName       = "cluster_00800.vtp"
	HemisphereLogName     = "cluster_location_by_hemisphere.log"
	TerminalTractFileName = "T_UF_right.vtp"
	checkpointDirName     = ".nabainfer"
)

// ErrInvalidSubjectID reports an input filename from which no subject
// identifier can be derived.
var ErrInvalidSubjectID = errors.New("invalid subject id")

// Layout computes every stage path for one case. It is a pure value: all
// methods derive paths, none touch the filesystem.
type Layout struct {
	OutputRoot   string
	SubjectID    string
	InputName    string
	Mode         RegistrationMode
	HasTransform bool
}

// New derives the layout for the given input artifact under outputRoot.
// The subject id is the input's base name without its extension.
func New(outputRoot, inputFile string, mode RegistrationMode, hasTransform bool) (*Layout, error) {
	base := filepath.Base(inputFile)
	subject := strings.TrimSuffix(base, filepath.Ext(base))
	if subject == "" {
		return nil, fmt.Errorf("%w: cannot derive subject from %q", ErrInvalidSubjectID, inputFile)
	}
	return &Layout{
		OutputRoot:   outputRoot,
		SubjectID:    subject,
		InputName:    base,
		Mode:         mode,
		HasTransform: hasTransform,
	}, nil
}

// CaseDir is the root of everything written for this subject.
func (l *Layout) CaseDir() string {
	return filepath.Join(l.OutputRoot, l.SubjectID)
}

// TransformedTractsDir holds the size-matched copy of the raw input.
func (l *Layout) TransformedTractsDir() string {
	return filepath.Join(l.CaseDir(), "TransformedTracts")
}

// TransformedInput is the size-matched input artifact. Harden-transform
// preserves the input filename.
func (l *Layout) TransformedInput() string {
	return filepath.Join(l.TransformedTractsDir(), l.InputName)
}

// ActiveInput is the artifact registration consumes: the size-matched copy
// when a transform is configured, otherwise the raw input.
func (l *Layout) ActiveInput(rawInput string) string {
	if l.HasTransform {
		return l.TransformedInput()
	}
	return rawInput
}

// RegistrationDir is the root the registration tool writes into.
func (l *Layout) RegistrationDir() string {
	return filepath.Join(l.CaseDir(), "TractRegistration")
}

func (l *Layout) regTractographyDir(caseName string) string {
	return filepath.Join(l.RegistrationDir(), caseName, "output_tractography")
}

// AffineRegOutput is the output of the first registration pass. In rigid
// mode it is also the final registration output.
func (l *Layout) AffineRegOutput() string {
	return filepath.Join(l.regTractographyDir(l.SubjectID), l.SubjectID+"_reg.vtk")
}

// RegOutput is the registered tractography consumed by clustering.
func (l *Layout) RegOutput() string {
	if l.Mode == ModeNonRigid {
		return filepath.Join(l.regTractographyDir(l.SubjectID+"_reg"), l.SubjectID+"_reg_reg.vtk")
	}
	return l.AffineRegOutput()
}

// AffineTransformFile is the forward transform from the affine (or rigid)
// registration pass.
func (l *Layout) AffineTransformFile() string {
	return filepath.Join(l.regTractographyDir(l.SubjectID), "itk_txform_"+l.SubjectID+".tfm")
}

// NonRigidTransformFile is the forward transform from the non-rigid
// refinement pass. Only meaningful in non-rigid mode.
func (l *Layout) NonRigidTransformFile() string {
	return filepath.Join(l.regTractographyDir(l.SubjectID+"_reg"), "itk_txform_"+l.SubjectID+"_reg.tfm")
}

// FCCaseID is the case name the clustering tools derive from the
// registration output filename.
func (l *Layout) FCCaseID() string {
	if l.Mode == ModeNonRigid {
		return l.SubjectID + "_reg_reg"
	}
	return l.SubjectID + "_reg"
}

// FiberClusteringDir groups all clustering-phase outputs.
func (l *Layout) FiberClusteringDir() string {
	return filepath.Join(l.CaseDir(), "FiberClustering")
}

// InitialClustersDir is the clustering tool's output root.
func (l *Layout) InitialClustersDir() string {
	return filepath.Join(l.FiberClusteringDir(), "InitialClusters")
}

// InitialClusterCaseDir is the per-case folder inside InitialClustersDir.
func (l *Layout) InitialClusterCaseDir() string {
	return filepath.Join(l.InitialClustersDir(), l.FCCaseID())
}

// InitialClusterOutput is the sentinel artifact of the clustering stage.
func (l *Layout) InitialClusterOutput() string {
	return filepath.Join(l.InitialClusterCaseDir(), ClusterFileName)
}

// OutlierRemovedDir is the outlier-removal tool's output root.
func (l *Layout) OutlierRemovedDir() string {
	return filepath.Join(l.FiberClusteringDir(), "OutlierRemovedClusters")
}

// OutlierCaseDir is the per-case folder inside OutlierRemovedDir.
func (l *Layout) OutlierCaseDir() string {
	return filepath.Join(l.OutlierRemovedDir(), l.FCCaseID()+"_outlier_removed")
}

// OutlierOutput is the sentinel artifact of the outlier-removal stage.
func (l *Layout) OutlierOutput() string {
	return filepath.Join(l.OutlierCaseDir(), ClusterFileName)
}

// HemisphereLog is the sentinel artifact of the hemisphere-assessment stage.
func (l *Layout) HemisphereLog() string {
	return filepath.Join(l.OutlierCaseDir(), HemisphereLogName)
}

// TransformedClustersRoot holds per-subject un-transform staging trees.
func (l *Layout) TransformedClustersRoot() string {
	return filepath.Join(l.FiberClusteringDir(), "TransformedClusters")
}

// TransformedClustersDir is the staging tree for this subject's clusters
// mapped back out of atlas space.
func (l *Layout) TransformedClustersDir() string {
	return filepath.Join(l.TransformedClustersRoot(), l.SubjectID)
}

// TransformedClustersTmpDir stages the intermediate pass of the non-rigid
// un-transform chain.
func (l *Layout) TransformedClustersTmpDir() string {
	return filepath.Join(l.TransformedClustersDir(), "tmp")
}

// TransformedClusterOutput is the sentinel artifact of the un-transform
// stage.
func (l *Layout) TransformedClusterOutput() string {
	return filepath.Join(l.TransformedClustersDir(), ClusterFileName)
}

// TransformedClusterTmpOutput is the sentinel of the intermediate non-rigid
// un-transform pass.
func (l *Layout) TransformedClusterTmpOutput() string {
	return filepath.Join(l.TransformedClustersTmpDir(), ClusterFileName)
}

// SeparatedClustersDir holds the per-hemisphere tracts_* subfolders.
func (l *Layout) SeparatedClustersDir() string {
	return filepath.Join(l.FiberClusteringDir(), "SeparatedClusters")
}

// SeparatedSentinel is the artifact proving hemisphere separation ran.
func (l *Layout) SeparatedSentinel() string {
	return filepath.Join(l.SeparatedClustersDir(), "tracts_commissural", ClusterFileName)
}

// InvTransformedDir holds the separated clusters mapped back to the
// subject's native size. Only used when a size-matching transform is set.
func (l *Layout) InvTransformedDir() string {
	return filepath.Join(l.CaseDir(), "InvTransformedTracts")
}

// FinalClustersDir is where downstream aggregation reads separated clusters
// from: the inverse-transformed tree when a transform is configured,
// otherwise the separated tree directly.
func (l *Layout) FinalClustersDir() string {
	if l.HasTransform {
		return l.InvTransformedDir()
	}
	return l.SeparatedClustersDir()
}

// AnatomicalTractsDir holds the aggregated named tracts.
func (l *Layout) AnatomicalTractsDir() string {
	return filepath.Join(l.CaseDir(), "AnatomicalTracts")
}

// TerminalTract is the pipeline's terminal artifact.
func (l *Layout) TerminalTract() string {
	return filepath.Join(l.AnatomicalTractsDir(), TerminalTractFileName)
}

// MeasurementCSV is the per-region measurement export. Region is one of
// "commissural", "left", "right". The CSVs live under SeparatedClusters
// regardless of which tree the measurements were taken from.
func (l *Layout) MeasurementCSV(region string) string {
	return filepath.Join(l.SeparatedClustersDir(), "diffusion_measurements_"+region+".csv")
}

// AnatomicalMeasurementCSV is the aggregate measurement export.
func (l *Layout) AnatomicalMeasurementCSV() string {
	return filepath.Join(l.AnatomicalTractsDir(), "diffusion_measurements_anatomical_tracts.csv")
}

// CheckpointFile stores the orchestrator's advisory stage records.
func (l *Layout) CheckpointFile() string {
	return filepath.Join(l.CaseDir(), checkpointDirName, "checkpoints.json")
}
