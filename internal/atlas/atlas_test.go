package atlas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAtlas lays out a minimal valid bundle under root using the given
// directory names.
func writeAtlas(t *testing.T, root, regName, fcName string) {
	t.Helper()
	regDir := filepath.Join(root, regName)
	fcDir := filepath.Join(root, fcName)
	require.NoError(t, os.MkdirAll(regDir, 0o755))
	require.NoError(t, os.MkdirAll(fcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(regDir, "registration_atlas.vtk"), []byte("reg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fcDir, "atlas.p"), []byte("p"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fcDir, "atlas.vtp"), []byte("vtp"), 0o644))
}

func TestResolve(t *testing.T) {
	t.Run("valid ORG naming", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "ORG-RegAtlas-100HCP", "ORG-800FC-100HCP")

		b, err := Resolve(root)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "ORG-RegAtlas-100HCP"), b.RegistrationDir)
		assert.Equal(t, filepath.Join(root, "ORG-800FC-100HCP"), b.ClusteringDir)
		assert.Equal(t, filepath.Join(b.RegistrationDir, "registration_atlas.vtk"), b.RegistrationAtlasFile())
	})

	t.Run("valid NABA naming", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "NABA-RegAtlas", "NABA-800FC")

		b, err := Resolve(root)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "NABA-RegAtlas"), b.RegistrationDir)
	})

	t.Run("first naming variant wins when both exist", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "ORG-RegAtlas-100HCP", "ORG-800FC-100HCP")
		writeAtlas(t, root, "NABA-RegAtlas", "NABA-800FC")

		b, err := Resolve(root)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "ORG-RegAtlas-100HCP"), b.RegistrationDir)
		assert.Equal(t, filepath.Join(root, "ORG-800FC-100HCP"), b.ClusteringDir)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := Resolve(filepath.Join(t.TempDir(), "nope"))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("root is a file", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "atlas")
		require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))
		_, err := Resolve(root)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing clustering folder", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "ORG-RegAtlas-100HCP", "ORG-800FC-100HCP")
		require.NoError(t, os.RemoveAll(filepath.Join(root, "ORG-800FC-100HCP")))

		_, err := Resolve(root)
		require.ErrorIs(t, err, ErrStructureInvalid)
	})

	t.Run("missing registration reference artifact", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "ORG-RegAtlas-100HCP", "ORG-800FC-100HCP")
		require.NoError(t, os.Remove(filepath.Join(root, "ORG-RegAtlas-100HCP", "registration_atlas.vtk")))

		_, err := Resolve(root)
		require.ErrorIs(t, err, ErrStructureInvalid)
	})

	t.Run("missing clustering model artifact", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "ORG-RegAtlas-100HCP", "ORG-800FC-100HCP")
		require.NoError(t, os.Remove(filepath.Join(root, "ORG-800FC-100HCP", "atlas.p")))

		_, err := Resolve(root)
		require.ErrorIs(t, err, ErrStructureInvalid)
	})
}

func TestHemisphereLocationFile(t *testing.T) {
	t.Run("prefers the atlas copy", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "ORG-RegAtlas-100HCP", "ORG-800FC-100HCP")
		atlasCopy := filepath.Join(root, "ORG-800FC-100HCP", "cluster_hemisphere_location.txt")
		require.NoError(t, os.WriteFile(atlasCopy, []byte("cluster_00001.vtp\themispheric\n"), 0o644))

		b, err := Resolve(root)
		require.NoError(t, err)

		got, err := b.HemisphereLocationFile(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, atlasCopy, got)
	})

	t.Run("falls back to the embedded default", func(t *testing.T) {
		root := t.TempDir()
		writeAtlas(t, root, "ORG-RegAtlas-100HCP", "ORG-800FC-100HCP")

		b, err := Resolve(root)
		require.NoError(t, err)

		scratch := filepath.Join(t.TempDir(), "scratch")
		got, err := b.HemisphereLocationFile(scratch)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(scratch, "cluster_hemisphere_location.txt"), got)

		data, err := os.ReadFile(got)
		require.NoError(t, err)
		assert.Contains(t, string(data), "cluster_00001.vtp")
		assert.Contains(t, string(data), "cluster_00800.vtp")
	})
}
