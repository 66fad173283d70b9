package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, int64(DefaultMmapMinSize), cfg.MmapMinSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.AllowedUploadExtensions)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr":"0.0.0.0:9000","log_level":"debug"}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, int64(DefaultMaxUploadSize), cfg.MaxUploadSize)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:12345"
	cfg.RootDir = "/srv/files"
	cfg.Users = map[string]UserConfig{
		"alice": {PasswordBcrypt: "$2a$10$abcdefghijklmnopqrstuv", Role: "admin"},
	}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Addr, loaded.Addr)
	assert.Equal(t, cfg.RootDir, loaded.RootDir)
	assert.Equal(t, "admin", loaded.Users["alice"].Role)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATEISCHNELL_ADDR", "10.0.0.1:80")
	t.Setenv("DATEISCHNELL_UPLOAD_EXTENSIONS", "txt, .md ,pdf")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:80", cfg.Addr)
	assert.Equal(t, []string{".txt", ".md", ".pdf"}, cfg.AllowedUploadExtensions)
}

func TestUploadExtensionAllowed(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.UploadExtensionAllowed("notes.txt"))
	assert.True(t, cfg.UploadExtensionAllowed("ARCHIVE.ZIP"))
	assert.False(t, cfg.UploadExtensionAllowed("malware.exe"))
	assert.False(t, cfg.UploadExtensionAllowed("noextension"))
}
