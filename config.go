package reflex

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the settings of the reflex server and editor sessions.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Editor   EditorConfig   `toml:"editor"`
	Log      LogConfig      `toml:"log"`
}

type DatabaseConfig struct {
	URL string `toml:"url"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// EditorConfig tunes the save and validation timing of a Session.
type EditorConfig struct {
	AutosaveSeconds   int  `toml:"autosave_seconds"`
	DebounceMs        int  `toml:"debounce_ms"`
	ValidateOnChange  bool `toml:"validate_on_change"`
	UpdateNodeClasses bool `toml:"update_node_classes"`
	HistoryLimit      int  `toml:"history_limit"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// DefaultConfig returns the settings used when no file overrides them.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":3000"},
		Editor: EditorConfig{
			AutosaveSeconds:   30,
			DebounceMs:        300,
			ValidateOnChange:  true,
			UpdateNodeClasses: true,
			HistoryLimit:      DefaultHistoryLimit,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a TOML file over DefaultConfig. An empty path only
// applies the environment. DATABASE_URL, REFLEX_ADDR and REFLEX_LOG_LEVEL
// override the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reflex: read config %q: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("reflex: parse config %q: %w", path, err)
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REFLEX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REFLEX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// SessionOptions converts the editor settings into session options.
func (c EditorConfig) SessionOptions() []SessionOption {
	return []SessionOption{
		WithAutosaveInterval(time.Duration(c.AutosaveSeconds) * time.Second),
		WithDebounce(time.Duration(c.DebounceMs) * time.Millisecond),
		WithValidateOnChange(c.ValidateOnChange),
		WithUpdateNodeClasses(c.UpdateNodeClasses),
		WithHistoryLimit(c.HistoryLimit),
	}
}
