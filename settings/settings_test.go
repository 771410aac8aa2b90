package settings

import (
	"os"
	"path/filepath"
	"testing"

	"comfynodes/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "config.toml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadConfigWithServiceFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	writeFile(t, configPath, `
[loras]
path = "/srv/comfy/models/loras"
defaultPercent = 35

[cache]
enabled = true
path = "/tmp/tags.db"
`)
	writeFile(t, filepath.Join(dir, "settings", "logging.toml"), `
level = "debug"
format = "json"
`)
	writeFile(t, filepath.Join(dir, "settings", "attributes.toml"), `
lowWeightMax = 0.2
mediumWeightMax = 0.5
separator = " | "
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/srv/comfy/models/loras", config.Loras.Path)
	assert.Equal(t, 35, config.Loras.DefaultPercent)
	assert.Equal(t, 4, config.Loras.ScanConcurrency, "unset values keep defaults")
	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, "/tmp/tags.db", config.Cache.Path)
	assert.Equal(t, logger.LevelDebug, config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, 0.2, config.Attributes.LowWeightMax)
	assert.Equal(t, " | ", config.Attributes.Separator)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"percent-too-high", "[loras]\npath = \"x\"\ndefaultPercent = 150\n"},
		{"thresholds-inverted", "[attributes]\nlowWeightMax = 0.8\nmediumWeightMax = 0.5\n"},
		{"medium-not-below-one", "[attributes]\nlowWeightMax = 0.3\nmediumWeightMax = 1.0\n"},
		{"bad-log-level", "[logging]\nlevel = \"chatty\"\nformat = \"text\"\n"},
		{"bad-addr", "[server]\naddr = \"not an address\"\n"},
		{"not-toml", "[loras\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeFile(t, path, tt.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLoraPath, "/env/loras")
	t.Setenv(EnvCachePath, "/env/cache.db")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvAddr, "0.0.0.0:9000")
	t.Setenv(EnvPercent, "40")

	config := Default()
	require.NoError(t, ApplyEnv(config))

	assert.Equal(t, "/env/loras", config.Loras.Path)
	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, "/env/cache.db", config.Cache.Path)
	assert.Equal(t, logger.LevelWarn, config.Logging.Level)
	assert.Equal(t, "0.0.0.0:9000", config.Server.Addr)
	assert.Equal(t, 40, config.Loras.DefaultPercent)

	t.Setenv(EnvPercent, "lots")
	assert.Error(t, ApplyEnv(Default()))
}
