// Package config holds runtime configuration for fitcli.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned when username or password is unset.
var ErrMissingCredentials = errors.New("USERNAME and PASSWORD must be set (environment or .env)")

// Config holds all runtime configuration.
type Config struct {
	Username string
	Password string

	APIURL   string
	AuthURL  string
	Realm    string
	ClientID string

	DataDir  string
	LogLevel string
	Verbose  bool
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		APIURL:   "https://api.meshcapade.com/api/v1",
		AuthURL:  "https://auth.meshcapade.com",
		Realm:    "meshcapade-me",
		ClientID: "meshcapade-me",
		DataDir:  "data",
		LogLevel: "info",
	}
}

// fileConfig mirrors the optional YAML config file
// (~/.config/fitcli/config.yaml). Fields left empty keep their defaults.
type fileConfig struct {
	DataDir  string `yaml:"data_dir"`
	APIURL   string `yaml:"api_url"`
	AuthURL  string `yaml:"auth_url"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfigPath returns the config file location, or "" when the
// user config directory cannot be resolved.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fitcli", "config.yaml")
}

// LoadFile overlays settings from a YAML config file onto cfg.
// A missing file is not an error; a malformed one is.
func LoadFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, err
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.APIURL != "" {
		cfg.APIURL = fc.APIURL
	}
	if fc.AuthURL != "" {
		cfg.AuthURL = fc.AuthURL
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	return cfg, nil
}

// FromEnv overlays environment variables onto cfg. Credentials accept
// both the MESHCAPADE_-prefixed names and the bare names the original
// .env convention uses; the prefixed form wins when both are set.
func FromEnv(cfg Config) Config {
	cfg.Username = firstEnv("MESHCAPADE_USERNAME", "USERNAME")
	cfg.Password = firstEnv("MESHCAPADE_PASSWORD", "PASSWORD")
	if v := strings.TrimSpace(os.Getenv("API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_URL")); v != "" {
		cfg.AuthURL = v
	}
	return cfg
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	defaults := DefaultConfig()

	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.AuthURL = strings.TrimRight(strings.TrimSpace(cfg.AuthURL), "/")
	cfg.Realm = strings.TrimSpace(cfg.Realm)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if cfg.APIURL == "" {
		cfg.APIURL = defaults.APIURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.Realm == "" {
		cfg.Realm = defaults.Realm
	}
	if cfg.ClientID == "" {
		cfg.ClientID = defaults.ClientID
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	return cfg
}

// Validate checks that credentials are present. It must pass before any
// network client is constructed.
func Validate(cfg Config) error {
	if cfg.Username == "" || cfg.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}
