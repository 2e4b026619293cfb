// Package atlas validates and resolves the external atlas bundle.
//
// An atlas root must carry two sub-bundles: a registration atlas and a
// clustering atlas. Two naming conventions are in circulation (the ORG
// releases and the NABA repackaging); both are accepted, with a fixed
// first-match-wins resolution order per bundle kind.
package atlas

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed resources/cluster_hemisphere_location.txt
var resources embed.FS

const hemisphereFileName = "cluster_hemisphere_location.txt"

var (
	// ErrNotFound reports an atlas root that is not a directory.
	ErrNotFound = errors.New("atlas root not found")
	// ErrStructureInvalid reports an atlas root that is missing a required
	// sub-bundle or reference artifact.
	ErrStructureInvalid = errors.New("atlas structure invalid")
	// ErrHemisphereReferenceNotFound reports that neither the atlas nor the
	// bundled default could supply the hemisphere-location reference.
	ErrHemisphereReferenceNotFound = errors.New("cluster hemisphere location reference not found")
)

// Resolution order is fixed; the first existing directory wins.
var (
	regCandidates = []string{"ORG-RegAtlas-100HCP", "NABA-RegAtlas", "ORG-RegAtlas"}
	fcCandidates  = []string{"ORG-800FC-100HCP", "NABA-800FC", "ORG-800FC"}
)

// Bundle is a validated atlas. Immutable after Resolve.
type Bundle struct {
	// RegistrationDir contains registration_atlas.vtk.
	RegistrationDir string
	// ClusteringDir contains atlas.p and atlas.vtp.
	ClusteringDir string

	// hemisphereFile is the atlas-bundled location reference, or empty when
	// the embedded default must be materialized on demand.
	hemisphereFile string
}

// RegistrationAtlasFile is the reference tractography registration aligns to.
func (b *Bundle) RegistrationAtlasFile() string {
	return filepath.Join(b.RegistrationDir, "registration_atlas.vtk")
}

// Resolve validates root and returns the bundle. The hemisphere-location
// reference prefers the copy inside the clustering atlas; the default
// shipped in the binary covers atlases without one.
func Resolve(root string) (*Bundle, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}

	regDir := firstDir(root, regCandidates)
	fcDir := firstDir(root, fcCandidates)
	if regDir == "" || fcDir == "" {
		return nil, fmt.Errorf("%w: root %s must contain a registration folder (%v) and a clustering folder (%v)",
			ErrStructureInvalid, root, regCandidates, fcCandidates)
	}

	b := &Bundle{RegistrationDir: regDir, ClusteringDir: fcDir}
	if !fileExists(b.RegistrationAtlasFile()) {
		return nil, fmt.Errorf("%w: registration_atlas.vtk missing in %s", ErrStructureInvalid, regDir)
	}
	if !fileExists(filepath.Join(fcDir, "atlas.p")) || !fileExists(filepath.Join(fcDir, "atlas.vtp")) {
		return nil, fmt.Errorf("%w: atlas.p/atlas.vtp missing in %s", ErrStructureInvalid, fcDir)
	}

	if ref := filepath.Join(fcDir, hemisphereFileName); fileExists(ref) {
		b.hemisphereFile = ref
	}
	return b, nil
}

// HemisphereLocationFile returns a path to the hemisphere-location
// reference usable by external tools. When the atlas does not bundle one,
// the embedded default is written under scratchDir.
func (b *Bundle) HemisphereLocationFile(scratchDir string) (string, error) {
	if b.hemisphereFile != "" {
		return b.hemisphereFile, nil
	}
	data, err := resources.ReadFile("resources/" + hemisphereFileName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHemisphereReferenceNotFound, err)
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHemisphereReferenceNotFound, err)
	}
	dst := filepath.Join(scratchDir, hemisphereFileName)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHemisphereReferenceNotFound, err)
	}
	return dst, nil
}

func firstDir(root string, names []string) string {
	for _, name := range names {
		cand := filepath.Join(root, name)
		if info, err := os.Stat(cand); err == nil && info.IsDir() {
			return cand
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
