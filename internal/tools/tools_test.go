package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHardenTransform(t *testing.T) {
	t.Run("forward", func(t *testing.T) {
		cmd := HardenTransform("t.tfm", "/in", "/out", "/opt/Slicer", false)
		assert.Equal(t, []string{"wm_harden_transform.py", "-t", "t.tfm", "/in", "/out", "/opt/Slicer"}, cmd.Argv)
		assert.True(t, cmd.Display)
	})

	t.Run("inverse", func(t *testing.T) {
		cmd := HardenTransform("t.tfm", "/in", "/out", "/opt/Slicer", true)
		assert.Equal(t, []string{"wm_harden_transform.py", "-i", "-t", "t.tfm", "/in", "/out", "/opt/Slicer"}, cmd.Argv)
	})
}

func TestRegisterToAtlas(t *testing.T) {
	cmd := RegisterToAtlas(RegModeRigidAffineFast, "in.vtk", "atlas.vtk", "/reg")
	assert.Equal(t, []string{"wm_register_to_atlas_new.py", "-mode", "rigid_affine_fast", "in.vtk", "atlas.vtk", "/reg"}, cmd.Argv)
	assert.False(t, cmd.Display)
}

func TestClusteringCommands(t *testing.T) {
	cluster := ClusterFromAtlas(8, "reg.vtk", "/fc", "/clusters")
	assert.Equal(t, []string{"wm_cluster_from_atlas.py", "-j", "8", "reg.vtk", "/fc", "/clusters", "-norender"}, cluster.Argv)

	outliers := RemoveOutliers(8, "/clusters/case", "/fc", "/outliers")
	assert.Equal(t, []string{"wm_cluster_remove_outliers.py", "-j", "8", "/clusters/case", "/fc", "/outliers"}, outliers.Argv)

	assess := AssessHemisphereLocation("loc.txt", "/outliers/case")
	assert.Equal(t, []string{"wm_assess_cluster_location_by_hemisphere.py", "-clusterLocationFile", "loc.txt", "/outliers/case"}, assess.Argv)
}

func TestMeasurementLauncher(t *testing.T) {
	assert.Equal(t, "/opt/Slicer --launch /opt/FTM", MeasurementLauncher("/opt/Slicer", "/opt/FTM", false))
	assert.Equal(t, "xvfb-run -a /opt/Slicer --launch /opt/FTM", MeasurementLauncher("/opt/Slicer", "/opt/FTM", true))
}
