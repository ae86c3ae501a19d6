package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"config"
)

func TestDefaultMatchesBuiltInDefaults(t *testing.T) {
	d := config.Default()
	assert.Equal(t, "filesys.dsk", d.FilesysImage)
	assert.Equal(t, "scratch.dsk", d.ScratchImage)
	assert.Equal(t, "swap.dsk", d.SwapImage)
	assert.False(t, d.Mlfqs)
	assert.Equal(t, 0, d.UserPageLimit)
}

func TestLoadOverridesOnlyMentionedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.toml")
	contents := "mlfqs = true\nul = 128\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := config.Load(path)
	// BurntSushi/toml matches keys to field names case-insensitively, so
	// "mlfqs" sets Mlfqs; "ul" names no field and is ignored. Everything
	// the file doesn't set keeps Default()'s value.
	require.NoError(t, err)
	assert.True(t, cfg.Mlfqs)
	assert.Equal(t, 0, cfg.UserPageLimit)
	assert.Equal(t, "filesys.dsk", cfg.FilesysImage)
}

func TestLoadMatchingFieldNamesOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.toml")
	contents := "Mlfqs = true\nUserPageLimit = 128\nFilesysImage = \"custom.dsk\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Mlfqs)
	assert.Equal(t, 128, cfg.UserPageLimit)
	assert.Equal(t, "custom.dsk", cfg.FilesysImage)
	// Fields absent from the file keep Default()'s value.
	assert.Equal(t, "scratch.dsk", cfg.ScratchImage)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}
