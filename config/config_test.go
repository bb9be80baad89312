package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("WHISGO_DATA_DIR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, 100*time.Millisecond, cfg.MinRecording())
	assert.Equal(t, 10, cfg.LogMaxSizeMB)
	assert.False(t, cfg.CopyToClipboard)
	assert.Contains(t, cfg.DataDir, "whisgo")
}

func TestLoadFile(t *testing.T) {
	t.Setenv("WHISGO_DATA_DIR", "")
	path := filepath.Join(t.TempDir(), FileName)
	data := `
data_dir = "/srv/whisgo"
endpoint = "http://localhost:8080/v1/audio/transcriptions"
copy_to_clipboard = true
min_recording_ms = 250
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/whisgo", cfg.DataDir)
	assert.Equal(t, "http://localhost:8080/v1/audio/transcriptions", cfg.Endpoint)
	assert.True(t, cfg.CopyToClipboard)
	assert.Equal(t, 250*time.Millisecond, cfg.MinRecording())
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, filepath.Join("/srv/whisgo", "whisgo.db"), cfg.DBPath())
}

func TestLoadEnvOverridesDataDir(t *testing.T) {
	t.Setenv("WHISGO_DATA_DIR", "/tmp/from-env")
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`data_dir = "/srv/whisgo"`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.DataDir)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `endpoint = `},
		{"negative min recording", `min_recording_ms = -5`},
		{"negative log size", `log_max_size_mb = -1`},
		{"bad hotkey", `hotkey = "alt+f4"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("WHISGO_DATA_DIR", "")
	path := filepath.Join(t.TempDir(), "sub", FileName)
	cfg := Default()
	cfg.DataDir = "/data"
	cfg.CopyToClipboard = true
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestPath(t *testing.T) {
	t.Setenv("WHISGO_DATA_DIR", "/env")
	assert.Equal(t, "/x/c.toml", Path("/x/c.toml"))
	assert.Equal(t, filepath.Join("/env", FileName), Path(""))
}
