package log

import (
	"os"
	"path/filepath"
	"runtime"
)

// getDefaultDir is the platform log location: ~/Library/Logs on darwin,
// %LOCALAPPDATA% on windows, $XDG_CONFIG_HOME elsewhere.
func getDefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "whisgo"), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "whisgo", "logs"), nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "whisgo", "logs"), nil
}
