package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEncodesSpecRuleTables(t *testing.T) {
	cfg := Default()
	assert.Contains(t, cfg.SystemPathSubstrings, "/usr/")
	assert.Contains(t, cfg.SystemPathSubstrings, "include/c++/")
	assert.Contains(t, cfg.StdlibHeaderBasenames, "iostream")
	assert.Contains(t, cfg.InternalFuncPrefixes, "__gnu_cxx::")
	assert.Contains(t, cfg.StaticInitPatterns, "GLOBAL__sub")
	assert.Contains(t, cfg.StrictNoiseFuncPrefixes, "std::")
	assert.Contains(t, cfg.StrictNoiseFileBasenames, "ios")
	assert.Equal(t, 3*time.Second, cfg.ResolverTimeout)
}

func TestLoadWithEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	contents := "systemPathSubstrings:\n  - /opt/custom/\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/opt/custom/"}, cfg.SystemPathSubstrings)
	// Untouched fields keep the built-in default.
	assert.Equal(t, Default().StdlibHeaderBasenames, cfg.StdlibHeaderBasenames)
	assert.Equal(t, Default().InternalFuncPrefixes, cfg.InternalFuncPrefixes)
}

func TestLoadRejectsUnreadablePath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
