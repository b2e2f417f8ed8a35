package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and rejection of malformed settings.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings are filled with defaults.
	cfg := new(Config)

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultVendorDir, cfg.VendorDir)
	require.Equal(t, filepath.Join(DefaultVendorDir, DefaultAppSubdir), cfg.AppDir)
	require.Equal(t, DefaultRemoteRef, cfg.RemoteRef)
	require.Equal(t, NpmPolicyAuto, cfg.NpmPolicy)
	require.Equal(t, NpmModeInstall, cfg.NpmMode)

	// Unknown install policy.
	cfg = &Config{NpmPolicy: "sometimes"}

	require.Error(t, Validate(cfg))

	// Unknown install mode.
	cfg = &Config{NpmMode: "clean-install"}

	require.Error(t, Validate(cfg))

	// Out-of-range port.
	cfg = &Config{ServerPort: 70000}

	require.Error(t, Validate(cfg))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		VendorDir:        filepath.Join(dir, "vendor", "WeylandTavern"),
		RemoteRef:        "origin/nightly",
		AllowInAppPull:   true,
		ServerPort:       8000,
		ServerArgs:       []string{"--disableCsrf"},
		CharacterSyncURL: "https://example.com/content",
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.VendorDir, loaded.VendorDir)
	require.Equal(t, "origin/nightly", loaded.RemoteRef)
	require.True(t, loaded.AllowInAppPull)
	require.Equal(t, 8000, loaded.ServerPort)
	require.Equal(t, []string{"--disableCsrf"}, loaded.ServerArgs)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadMissingFile verifies that a missing settings file yields defaults.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultServerHost, cfg.ServerHost)
	require.False(t, cfg.AllowInAppPull)
}
