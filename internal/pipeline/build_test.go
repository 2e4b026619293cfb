package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhanglab/nabainfer/internal/atlas"
	"github.com/wzhanglab/nabainfer/internal/layout"
)

func buildParams(t *testing.T, mode layout.RegistrationMode, transform string) Params {
	t.Helper()
	lay, err := layout.New("/out", "/data/subjectA.vtk", mode, transform != "")
	require.NoError(t, err)
	return Params{
		InputFile:              "/data/subjectA.vtk",
		Layout:                 lay,
		Atlas:                  &atlas.Bundle{RegistrationDir: "/atlas/reg", ClusteringDir: "/atlas/fc"},
		HemisphereLocationFile: "/atlas/fc/cluster_hemisphere_location.txt",
		TransformFile:          transform,
		SlicerPath:             "/opt/Slicer",
		Threads:                4,
	}
}

func stageNames(stages []Stage) []string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	return names
}

func TestBuildBranchSelection(t *testing.T) {
	cases := []struct {
		name      string
		mode      layout.RegistrationMode
		transform string
		want      []string
	}{
		{
			name: "rigid without transform",
			mode: layout.ModeRigid,
			want: []string{
				"registration", "fiber-clustering", "outlier-removal",
				"hemisphere-assessment", "cluster-untransform",
				"hemisphere-separation", "anatomical-tracts",
			},
		},
		{
			name: "nonrigid without transform",
			mode: layout.ModeNonRigid,
			want: []string{
				"registration-affine", "registration-nonrigid",
				"fiber-clustering", "outlier-removal", "hemisphere-assessment",
				"cluster-untransform-nonrigid", "cluster-untransform-affine",
				"hemisphere-separation", "anatomical-tracts",
			},
		},
		{
			name:      "rigid with transform",
			mode:      layout.ModeRigid,
			transform: "/data/size.tfm",
			want: []string{
				"harden-transform", "registration", "fiber-clustering",
				"outlier-removal", "hemisphere-assessment", "cluster-untransform",
				"hemisphere-separation", "inverse-transform", "anatomical-tracts",
			},
		},
		{
			name:      "nonrigid with transform",
			mode:      layout.ModeNonRigid,
			transform: "/data/size.tfm",
			want: []string{
				"harden-transform", "registration-affine", "registration-nonrigid",
				"fiber-clustering", "outlier-removal", "hemisphere-assessment",
				"cluster-untransform-nonrigid", "cluster-untransform-affine",
				"hemisphere-separation", "inverse-transform", "anatomical-tracts",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stages := Build(buildParams(t, tc.mode, tc.transform))
			if diff := cmp.Diff(tc.want, stageNames(stages)); diff != "" {
				t.Fatalf("stage sequence mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildMeasurementStages(t *testing.T) {
	p := buildParams(t, layout.ModeRigid, "")
	p.Measurements = true
	p.MeasurementTool = "/opt/FTM"
	p.VirtualDisplay = true

	stages := Build(p)
	names := stageNames(stages)
	want := []string{
		"measurements-commissural", "measurements-left", "measurements-right",
		"measurements-anatomical-tracts",
	}
	require.GreaterOrEqual(t, len(names), 4)
	if diff := cmp.Diff(want, names[len(names)-4:]); diff != "" {
		t.Fatalf("measurement stages mismatch (-want +got):\n%s", diff)
	}

	// The launcher string carries the display wrapper, not the argv.
	last := stages[len(stages)-1]
	assert.False(t, last.Command.Display)
	assert.Contains(t, last.Command.Argv, "xvfb-run -a /opt/Slicer --launch /opt/FTM")
}

func TestBuildCommandWiring(t *testing.T) {
	t.Run("registration consumes the transformed input when a transform is set", func(t *testing.T) {
		stages := Build(buildParams(t, layout.ModeRigid, "/data/size.tfm"))
		reg := stages[1]
		require.Equal(t, "registration", reg.Name)
		assert.Contains(t, reg.Command.Argv, filepath.Join("/out", "subjectA", "TransformedTracts", "subjectA.vtk"))
	})

	t.Run("registration declares both geometry and transform outputs", func(t *testing.T) {
		stages := Build(buildParams(t, layout.ModeRigid, ""))
		reg := stages[0]
		require.Len(t, reg.Outputs, 2)
		assert.Contains(t, reg.Outputs[1], "itk_txform_subjectA.tfm")
	})

	t.Run("nonrigid un-transform chains in reverse order through staging", func(t *testing.T) {
		p := buildParams(t, layout.ModeNonRigid, "")
		stages := Build(p)
		l := p.Layout

		first := stages[5]
		require.Equal(t, "cluster-untransform-nonrigid", first.Name)
		assert.Contains(t, first.Command.Argv, l.NonRigidTransformFile())
		assert.Contains(t, first.Command.Argv, l.TransformedClustersTmpDir())

		second := stages[6]
		require.Equal(t, "cluster-untransform-affine", second.Name)
		assert.Contains(t, second.Command.Argv, l.AffineTransformFile())
		assert.Contains(t, second.Command.Argv, l.TransformedClustersTmpDir())
		assert.Contains(t, second.Command.Argv, l.TransformedClustersDir())
	})

	t.Run("fan-out stage defers materialization", func(t *testing.T) {
		stages := Build(buildParams(t, layout.ModeRigid, "/data/size.tfm"))
		var fanOut *Stage
		for i := range stages {
			if stages[i].Name == "inverse-transform" {
				fanOut = &stages[i]
			}
		}
		require.NotNil(t, fanOut)
		assert.NotNil(t, fanOut.Expand)
		assert.Empty(t, fanOut.Outputs)
	})
}
