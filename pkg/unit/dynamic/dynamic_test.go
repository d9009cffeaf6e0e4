package dynamic

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/treerun/pkg/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	assert.Contains(t, unit.List(), LoaderName)
	loader, path, err := unit.Resolve("/tmp/model.so")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/model.so", path)
	assert.NotNil(t, loader)
}

func TestOpenMissingLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does_not_exist.so")
	lib, err := Open(path)
	require.Error(t, err)
	assert.Nil(t, lib)
	assert.ErrorIs(t, err, unit.ErrLoad)
	assert.Contains(t, err.Error(), path)

	u, err := unit.Bind(path)
	require.ErrorIs(t, err, unit.ErrLoad)
	assert.Nil(t, u)
}
