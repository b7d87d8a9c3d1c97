// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable [Load] reads the config path from.
const EnvVar = "TASKLIST_CONFIG"

// CredentialFileEnvVar overrides the default credential file location.
// It only affects [Default]; a path set in the config file wins.
const CredentialFileEnvVar = "TASKLIST_CREDENTIAL_FILE"

// Config is the complete client configuration.
type Config struct {
	// Server configures the task API endpoint.
	Server ServerConfig `yaml:"server"`

	// Credential configures where the bearer credential is persisted.
	Credential CredentialConfig `yaml:"credential"`

	// Session configures session lifecycle behavior.
	Session SessionConfig `yaml:"session"`

	// Log configures the command logger.
	Log LogConfig `yaml:"log"`
}

// ServerConfig configures the task API endpoint.
type ServerConfig struct {
	// URL is the base URL of the task API, without the /api prefix.
	// Default: http://localhost:5000
	URL string `yaml:"url"`

	// RequestTimeout bounds every HTTP request, including reading the
	// response body. Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CredentialConfig configures credential persistence.
type CredentialConfig struct {
	// Path is the credential file. Default:
	// $TASKLIST_CREDENTIAL_FILE, else $XDG_CONFIG_HOME/tasklist/credential.
	Path string `yaml:"path"`

	// SealIdentity is an age identity file. When set, the credential
	// file is encrypted to this identity's public key. Generate one
	// with "taskctl keygen".
	SealIdentity string `yaml:"seal_identity"`
}

// SessionConfig configures session lifecycle behavior.
type SessionConfig struct {
	// TeardownDelay is how long the reason for an authentication
	// failure stays visible before the session is torn down.
	// Default: 0 (immediate)
	TeardownDelay time.Duration `yaml:"teardown_delay"`
}

// LogConfig configures the command logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is one of auto, text, json. "auto" picks text on a
	// terminal and JSON otherwise. Default: auto
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given, and
// the base every loaded file is merged onto.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://localhost:5000",
			RequestTimeout: 30 * time.Second,
		},
		Credential: CredentialConfig{
			Path: DefaultCredentialPath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// DefaultCredentialPath returns $TASKLIST_CREDENTIAL_FILE if set, else
// tasklist/credential under the user config directory. Returns "" when
// neither the override nor a config directory is available.
func DefaultCredentialPath() string {
	if path := os.Getenv(CredentialFileEnvVar); path != "" {
		return path
	}
	configDirectory, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDirectory, "tasklist", "credential")
}

// Load loads configuration from the file named by TASKLIST_CONFIG.
// It fails if the variable is unset; callers that can run without a
// file check [EnvVar] themselves and fall back to [Default].
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your tasklist config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, merged onto [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// Plain JSON is valid YAML, so the stripped document goes
		// through the same decoder and the same field tags.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_CONFIG_HOME": xdgConfigHome(),
	}
	c.Server.URL = expandVars(c.Server.URL, vars)
	c.Credential.Path = expandVars(c.Credential.Path, vars)
	c.Credential.SealIdentity = expandVars(c.Credential.SealIdentity, vars)
}

func xdgConfigHome() string {
	if value := os.Getenv("XDG_CONFIG_HOME"); value != "" {
		return value
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config")
	}
	return ""
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. Provided vars are
// consulted before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.URL == "" {
		errs = append(errs, fmt.Errorf("server.url is required"))
	} else if parsed, err := url.Parse(c.Server.URL); err != nil {
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	} else if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("server.url must be an absolute http or https URL, got %q", c.Server.URL))
	}

	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout))
	}

	if c.Credential.Path == "" {
		errs = append(errs, fmt.Errorf("credential.path is required (no user config directory found)"))
	}

	if c.Session.TeardownDelay < 0 {
		errs = append(errs, fmt.Errorf("session.teardown_delay must not be negative, got %s", c.Session.TeardownDelay))
	}

	if !contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	return errors.Join(errs...)
}

// SlogLevel maps Log.Level to a slog level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
