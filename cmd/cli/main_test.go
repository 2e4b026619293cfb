package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhanglab/nabainfer/internal/cli"
)

func TestRun(t *testing.T) {
	t.Run("help exits cleanly", func(t *testing.T) {
		var out, errOut bytes.Buffer
		err := run(&out, &errOut, []string{"-h"})
		require.NoError(t, err)
		assert.Contains(t, errOut.String(), "Usage:")
	})

	t.Run("missing required flags yields an ExitError", func(t *testing.T) {
		var out, errOut bytes.Buffer
		err := run(&out, &errOut, nil)
		var exitErr *cli.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.Code)
	})
}
