package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/config"
)

func TestLoadConfigFallsBackToDefaultWithoutAnExplicitOrDiscoverablePath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigErrorsOnAnUnreadableExplicitPath(t *testing.T) {
	_, err := loadConfig("no-such-pytypeconfig.json")
	assert.Error(t, err)
}

func TestDialectForParsesConfiguredPythonVersion(t *testing.T) {
	d := dialectFor(&config.Config{PythonVersion: "3.9", PythonPlatform: "Linux"})
	assert.Equal(t, [2]int{3, 9}, d.PythonVersion)
	assert.Equal(t, "Linux", d.PythonPlatform)
}

func TestDialectForDefaultsWhenPythonVersionOmitted(t *testing.T) {
	d := dialectFor(&config.Config{})
	assert.Equal(t, [2]int{3, 12}, d.PythonVersion)
}
