// pkg/config/settings_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoadReadsSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"backup_root: /srv/backup\nstop_timeout: 60s\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/backup", s.BackupRoot)
	assert.Equal(t, 60*time.Second, s.StopTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, Defaults().StartTimeout, s.StartTimeout)
	assert.Equal(t, Defaults().APIVersion, s.APIVersion)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OMBOOT_SETTLE_DELAY", "5s")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.SettleDelay)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}
