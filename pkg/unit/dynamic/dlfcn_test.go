//go:build cgo && linux

package dynamic

import (
	"testing"

	"github.com/gomlx/treerun/pkg/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libm is present in every glibc based system, and exports no computation unit symbols.
const libm = "libm.so.6"

func TestResolveSymbols(t *testing.T) {
	lib, err := Open(libm)
	if err != nil {
		t.Skipf("%s not available: %v", libm, err)
	}
	assert.Equal(t, libm, lib.Path())

	// Resolution only: cos doesn't follow the calling contract, so it's never called.
	fn, err := lib.PredictFunc("cos")
	require.NoError(t, err)
	assert.NotNil(t, fn)

	_, err = lib.QueryFunc(unit.QuerySymbol)
	require.ErrorIs(t, err, unit.ErrSymbolNotFound)
	assert.Contains(t, err.Error(), unit.QuerySymbol)

	require.NoError(t, lib.Close())
	_, err = lib.PredictFunc("cos")
	require.ErrorIs(t, err, unit.ErrNotLoaded)
}

func TestBindRejectsNonUnit(t *testing.T) {
	lib, err := Open(libm)
	if err != nil {
		t.Skipf("%s not available: %v", libm, err)
	}
	require.NoError(t, lib.Close())

	u, err := unit.Bind(libm)
	require.ErrorIs(t, err, unit.ErrSymbolNotFound)
	assert.Nil(t, u)
	assert.Contains(t, err.Error(), libm)
}
