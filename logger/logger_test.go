package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"json-debug", Config{Level: LevelDebug, Format: "json"}, false},
		{"bad-level", Config{Level: "loud", Format: "text"}, true},
		{"bad-format", Config{Level: LevelInfo, Format: "xml"}, true},
		{"empty", Config{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: LevelWarn, Format: "json"}, &buf)
	t.Cleanup(func() { InitWriter(DefaultConfig(), &bytes.Buffer{}) })

	Info("dropped")
	Lora("a.safetensors").Warn("No tag frequency data", "reason", "missing_tag_frequency")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "a.safetensors", entry["lora"])
	assert.Equal(t, "missing_tag_frequency", entry["reason"])
}

func TestDebugAndWith(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: LevelDebug, Format: "json"}, &buf)
	t.Cleanup(func() { InitWriter(DefaultConfig(), &bytes.Buffer{}) })

	Debug("Configuration loaded", "cache", false)
	With("loras", 3).With("cached", 2).Info("Scan complete")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var debug, scan map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &debug))
	require.NoError(t, json.Unmarshal(lines[1], &scan))
	assert.Equal(t, "DEBUG", debug["level"])
	assert.Equal(t, false, debug["cache"])
	assert.Equal(t, float64(3), scan["loras"])
	assert.Equal(t, float64(2), scan["cached"])
}
