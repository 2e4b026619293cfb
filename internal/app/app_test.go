package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhanglab/nabainfer/internal/atlas"
)

func TestRunFailsFastOnBadAtlas(t *testing.T) {
	cfg, err := NewConfig(validConfig(t))
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	a := NewApp(&out, &errOut, cfg)

	// The atlas dir exists but has no bundles in it.
	err = a.Run(context.Background())
	require.ErrorIs(t, err, atlas.ErrStructureInvalid)
	assert.Empty(t, out.String(), "no command may run before validation passes")
}

func TestEnvSlice(t *testing.T) {
	assert.Nil(t, envSlice(nil))
	assert.Equal(t,
		[]string{"A=1", "B=2", "C=3"},
		envSlice(map[string]string{"C": "3", "A": "1", "B": "2"}))
}
