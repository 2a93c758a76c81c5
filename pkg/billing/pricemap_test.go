package billing

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralpost/astralpost/pkg/observability"
)

func writePriceFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPriceMap(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	t.Run("loads mappings", func(t *testing.T) {
		path := writePriceFile(t, t.TempDir(), `
prices:
  price_basic_monthly: basic
  price_pro_monthly: pro
`)
		pm, err := LoadPriceMap(path, logger)
		require.NoError(t, err)
		assert.Equal(t, 2, pm.Len())

		tier, ok := pm.Resolve("price_pro_monthly")
		require.True(t, ok)
		assert.Equal(t, TierPro, tier)

		_, ok = pm.Resolve("price_unknown")
		assert.False(t, ok)
	})

	t.Run("missing file starts empty", func(t *testing.T) {
		pm, err := LoadPriceMap(filepath.Join(t.TempDir(), "absent.yaml"), logger)
		require.NoError(t, err)
		assert.Equal(t, 0, pm.Len())
	})

	t.Run("rejects non-paid tiers", func(t *testing.T) {
		path := writePriceFile(t, t.TempDir(), `
prices:
  price_weird: trial
`)
		_, err := LoadPriceMap(path, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-paid tier")
	})

	t.Run("rejects bad yaml", func(t *testing.T) {
		path := writePriceFile(t, t.TempDir(), "prices: [not a map")
		_, err := LoadPriceMap(path, logger)
		require.Error(t, err)
	})
}

func TestPriceMapReloadKeepsPreviousOnError(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	dir := t.TempDir()
	path := writePriceFile(t, dir, "prices:\n  price_basic: basic\n")

	pm, err := LoadPriceMap(path, logger)
	require.NoError(t, err)
	require.Equal(t, 1, pm.Len())

	// A broken rewrite must not clobber the working map.
	require.NoError(t, os.WriteFile(path, []byte("prices: [broken"), 0o644))
	require.Error(t, pm.reload())

	tier, ok := pm.Resolve("price_basic")
	assert.True(t, ok)
	assert.Equal(t, TierBasic, tier)
}
