package config

import (
	"os"
	"path/filepath"
)

// DataDir returns the journal directory: $XEVSOURCE_DATA_DIR, else
// $XDG_DATA_HOME/xevsource, else ~/.local/share/xevsource.
func DataDir() string {
	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		return dir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "xevsource")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "xevsource")
}

// ConfigDir returns $XDG_CONFIG_HOME/xevsource or ~/.config/xevsource.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "xevsource")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "xevsource")
}

// ConfigPath returns the config file to use when none is named: the first
// existing config.{toml,json,yaml,yml} in the working directory or
// ConfigDir, else ConfigDir/config.toml.
func ConfigPath() string {
	if path := FindConfigFile(); path != "" {
		return path
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

// SupportedConfigFormats returns the recognised config file extensions.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches the working directory, then ConfigDir. It returns
// "" when nothing is found.
func FindConfigFile() string {
	for _, dir := range []string{".", ConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func homeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// expandPaths resolves "~/" in the file paths the daemon opens.
func (c *Config) expandPaths() {
	c.Journal.Path = expandPath(c.Journal.Path)
	c.Logging.FilePath = expandPath(c.Logging.FilePath)
	c.Devices.ProcPath = expandPath(c.Devices.ProcPath)
	c.Devices.DevDir = expandPath(c.Devices.DevDir)
}
