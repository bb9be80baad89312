package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"

	"whisgo/hotkey"
)

const (
	FileName        = "config.toml"
	DefaultEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"
	DefaultLanguage = "en"
)

// Config holds settings that are not user preferences (those live in the
// store): where things go and how the upload is made.
type Config struct {
	DataDir         string `toml:"data_dir"`
	Endpoint        string `toml:"endpoint"`
	Language        string `toml:"language"`
	CopyToClipboard bool   `toml:"copy_to_clipboard"`
	MinRecordingMs  int    `toml:"min_recording_ms"`
	LogMaxSizeMB    int    `toml:"log_max_size_mb"`
	// Hotkey is a global shortcut for the interactive recorder, e.g.
	// "ctrl+shift+space". Empty disables it.
	Hotkey string `toml:"hotkey"`
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path. A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if env := os.Getenv("WHISGO_DATA_DIR"); env != "" {
		cfg.DataDir = env
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.MinRecordingMs == 0 {
		c.MinRecordingMs = 100
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 10
	}
}

func (c *Config) Validate() error {
	if c.MinRecordingMs < 0 {
		return fmt.Errorf("invalid min_recording_ms: %d", c.MinRecordingMs)
	}
	if c.LogMaxSizeMB < 0 {
		return fmt.Errorf("invalid log_max_size_mb: %d", c.LogMaxSizeMB)
	}
	if c.Hotkey != "" {
		if _, err := hotkey.ParseCombo(c.Hotkey); err != nil {
			return err
		}
	}
	return nil
}

// Save writes c to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) MinRecording() time.Duration {
	return time.Duration(c.MinRecordingMs) * time.Millisecond
}

func (c *Config) DBPath() string   { return filepath.Join(c.DataDir, "whisgo.db") }
func (c *Config) SoundDir() string { return filepath.Join(c.DataDir, "sounds") }

// Path returns the config file location: the flag value when set, else the
// file inside the default data dir.
func Path(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv("WHISGO_DATA_DIR"); env != "" {
		return filepath.Join(env, FileName)
	}
	return filepath.Join(DefaultDataDir(), FileName)
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "whisgo")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "whisgo")
		}
		return filepath.Join(home, "AppData", "Roaming", "whisgo")
	}
	xdg := os.Getenv("XDG_DATA_HOME")
	if xdg == "" {
		xdg = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(xdg, "whisgo")
}
