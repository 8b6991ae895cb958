package reflex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REFLEX_ADDR", "")
	t.Setenv("REFLEX_LOG_LEVEL", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflex.toml")
	body := `
[server]
addr = ":8080"

[editor]
autosave_seconds = 10
validate_on_change = false

[log]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("DATABASE_URL", "postgres://localhost/reflex")
	t.Setenv("REFLEX_ADDR", "")
	t.Setenv("REFLEX_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Editor.AutosaveSeconds)
	assert.Equal(t, 300, cfg.Editor.DebounceMs)
	assert.False(t, cfg.Editor.ValidateOnChange)
	assert.True(t, cfg.Editor.UpdateNodeClasses)
	assert.Equal(t, "postgres://localhost/reflex", cfg.Database.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr ="), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestEditorConfigSessionOptions(t *testing.T) {
	ec := EditorConfig{AutosaveSeconds: 5, DebounceMs: 50, ValidateOnChange: false, UpdateNodeClasses: true, HistoryLimit: 7}
	s := NewSession("r", saveOnly{}, ec.SessionOptions()...)
	assert.Equal(t, 5*time.Second, s.autosave)
	assert.Equal(t, 50*time.Millisecond, s.debounce)
	assert.False(t, s.validateOnChange)
	assert.True(t, s.updateNodeClasses)
	assert.Equal(t, 7, s.history.limit)

	// Zero durations keep the defaults.
	s = NewSession("r", saveOnly{}, EditorConfig{}.SessionOptions()...)
	assert.Equal(t, DefaultAutosaveInterval, s.autosave)
	assert.Equal(t, DefaultDebounce, s.debounce)
	assert.Equal(t, DefaultHistoryLimit, s.history.limit)
}
