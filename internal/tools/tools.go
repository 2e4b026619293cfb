// Package tools isolates the argv conventions of the external
// whitematteranalysis and Slicer programs the pipeline drives.
//
// Each builder returns the exact positional argument order the tool
// documents; nothing else in the repo constructs an external command line.
package tools

import "strconv"

// Command is one external invocation: the argument vector plus whether the
// tool needs a display (and therefore the virtual-framebuffer wrapper when
// running headless).
type Command struct {
	Argv    []string
	Display bool
}

// HardenTransform bakes transformFile into every dataset in srcDir, writing
// results to dstDir. inverse applies the transform inverted. Runs through
// Slicer, so it needs a display.
func HardenTransform(transformFile, srcDir, dstDir, slicerPath string, inverse bool) Command {
	argv := []string{"wm_harden_transform.py"}
	if inverse {
		argv = append(argv, "-i")
	}
	argv = append(argv, "-t", transformFile, srcDir, dstDir, slicerPath)
	return Command{Argv: argv, Display: true}
}

// Registration modes understood by wm_register_to_atlas_new.py.
const (
	RegModeRigidAffineFast = "rigid_affine_fast"
	RegModeAffine          = "affine"
	RegModeNonRigid        = "nonrigid"
)

// RegisterToAtlas aligns input to the registration atlas, writing under
// outDir a folder named after the input's stem.
func RegisterToAtlas(mode, input, regAtlasFile, outDir string) Command {
	return Command{Argv: []string{
		"wm_register_to_atlas_new.py", "-mode", mode, input, regAtlasFile, outDir,
	}}
}

// ClusterFromAtlas groups the registered fibers using the clustering atlas.
func ClusterFromAtlas(threads int, input, fcDir, outDir string) Command {
	return Command{Argv: []string{
		"wm_cluster_from_atlas.py", "-j", strconv.Itoa(threads), input, fcDir, outDir, "-norender",
	}}
}

// RemoveOutliers filters atypical fibers out of each cluster.
func RemoveOutliers(threads int, clusterDir, fcDir, outDir string) Command {
	return Command{Argv: []string{
		"wm_cluster_remove_outliers.py", "-j", strconv.Itoa(threads), clusterDir, fcDir, outDir,
	}}
}

// AssessHemisphereLocation annotates each cluster with its hemisphere
// location, writing a log next to the clusters.
func AssessHemisphereLocation(locationFile, clusterDir string) Command {
	return Command{Argv: []string{
		"wm_assess_cluster_location_by_hemisphere.py", "-clusterLocationFile", locationFile, clusterDir,
	}}
}

// SeparateByHemisphere partitions clusters into tracts_commissural,
// tracts_left_hemisphere and tracts_right_hemisphere subfolders.
func SeparateByHemisphere(inDir, outDir string) Command {
	return Command{Argv: []string{
		"wm_separate_clusters_by_hemisphere.py", inDir, outDir,
	}}
}

// AppendAnatomicalTracts aggregates separated clusters into named
// anatomical tracts.
func AppendAnatomicalTracts(inDir, fcDir, outDir string) Command {
	return Command{Argv: []string{
		"wm_append_clusters_to_anatomical_tracts.py", inDir, fcDir, outDir,
	}}
}

// MeasurementLauncher builds the launcher string wm_diffusion_measurements.py
// expects as its third argument: Slicer launching the measurement CLI
// module. The display wrapper goes inside this string, not around the
// orchestrating command.
func MeasurementLauncher(slicerPath, toolPath string, virtualDisplay bool) string {
	launcher := slicerPath + " --launch " + toolPath
	if virtualDisplay {
		launcher = "xvfb-run -a " + launcher
	}
	return launcher
}

// DiffusionMeasurements extracts per-tract measurements from every dataset
// in inDir into outCSV.
func DiffusionMeasurements(inDir, outCSV, launcher string) Command {
	return Command{Argv: []string{
		"wm_diffusion_measurements.py", inDir, outCSV, launcher,
	}}
}
