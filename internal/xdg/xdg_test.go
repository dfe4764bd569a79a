// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirs(t *testing.T) {
	tests := []struct {
		name string
		env  string
		fn   func() (string, error)
		home string
	}{
		{"config", "XDG_CONFIG_HOME", ConfigDir, "/home/testuser/.config/timeline"},
		{"data", "XDG_DATA_HOME", DataDir, "/home/testuser/.local/share/timeline"},
		{"state", "XDG_STATE_HOME", StateDir, "/home/testuser/.local/state/timeline"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" env", func(t *testing.T) {
			t.Setenv(tt.env, "/custom")
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, "/custom/timeline", got)
		})
		t.Run(tt.name+" default", func(t *testing.T) {
			t.Setenv(tt.env, "")
			t.Setenv("HOME", "/home/testuser")
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.home, got)
		})
		t.Run(tt.name+" no home", func(t *testing.T) {
			t.Setenv(tt.env, "")
			t.Setenv("HOME", "")
			_, err := tt.fn()
			assert.Error(t, err)
		})
	}
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/timeline/config.yaml", got)
}

func TestReplayDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	got, err := ReplayDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/data/timeline/replays", got)
}

func TestEnsureDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "nested", "dir")

	require.NoError(t, EnsureDir(testPath))
	require.NoError(t, EnsureDir(testPath), "idempotent")

	info, err := os.Stat(testPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
