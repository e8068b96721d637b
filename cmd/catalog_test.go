package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCPUCatalog(t *testing.T) {
	c := DefaultCPUCatalog()
	assert.Equal(t, []string{"large", "light", "medium", "small"}, c.ClassNames())
	cores, err := c.Cores("medium")
	require.NoError(t, err)
	assert.Equal(t, 4.0, cores)

	// Mutating one catalog leaves the built-in classes alone.
	c.Classes["medium"] = 99
	assert.Equal(t, 4.0, DefaultCPUCatalog().Classes["medium"])
}

func TestCPUCatalog_UnknownClass(t *testing.T) {
	_, err := DefaultCPUCatalog().Cores("huge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown cpu class "huge"`)
}

func TestLoadCPUCatalog(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		c, err := LoadCPUCatalog("")
		require.NoError(t, err)
		assert.Equal(t, "builtin", c.Version)
		assert.Len(t, c.Classes, 4)
	})

	t.Run("file overrides and extends", func(t *testing.T) {
		path := writeFile(t, "catalog.yaml", "version: v2\nclasses:\n  small: 2\n  xlarge: 16\n")
		c, err := LoadCPUCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, "v2", c.Version)
		assert.Equal(t, 2.0, c.Classes["small"])
		assert.Equal(t, 16.0, c.Classes["xlarge"])
		assert.Equal(t, 0.5, c.Classes["light"])
	})

	t.Run("non-positive cores rejected", func(t *testing.T) {
		path := writeFile(t, "catalog.yaml", "classes:\n  tiny: 0\n")
		_, err := LoadCPUCatalog(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"tiny"`)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		path := writeFile(t, "catalog.yaml", "clases:\n  small: 2\n")
		_, err := LoadCPUCatalog(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCPUCatalog("/nonexistent/catalog.yaml")
		assert.Error(t, err)
	})
}
