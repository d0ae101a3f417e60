package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
)

// DefaultConfigFile is looked up in the working directory when no config is given.
const DefaultConfigFile = "_docmeld.yaml"

// Settings are process-level options, as opposed to the build configuration.
type Settings struct {
	ConfigFile   string
	TemplateRoot string
	LogLevel     string
	LogFormat    string
	HTTPTimeout  time.Duration
	Shell        string
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		ConfigFile:  DefaultConfigFile,
		LogLevel:    "info",
		LogFormat:   "text",
		HTTPTimeout: 10 * time.Second,
		Shell:       "sh",
	}
}

// Environment variables read by SettingsFromEnv.
const (
	EnvConfig      = "DOCMELD_CONFIG"
	EnvTemplates   = "DOCMELD_TEMPLATES"
	EnvLogLevel    = "DOCMELD_LOG_LEVEL"
	EnvLogFormat   = "DOCMELD_LOG_FORMAT"
	EnvHTTPTimeout = "DOCMELD_HTTP_TIMEOUT"
	EnvShell       = "DOCMELD_SHELL"
)

// SettingsFromEnv reads settings from the environment and fills the rest from defaults.
func SettingsFromEnv() (Settings, error) {
	s := Settings{
		ConfigFile:   os.Getenv(EnvConfig),
		TemplateRoot: os.Getenv(EnvTemplates),
		LogLevel:     os.Getenv(EnvLogLevel),
		LogFormat:    os.Getenv(EnvLogFormat),
		Shell:        os.Getenv(EnvShell),
	}
	if raw := os.Getenv(EnvHTTPTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvHTTPTimeout, err)
		}
		s.HTTPTimeout = d
	}
	if err := mergo.Merge(&s, DefaultSettings()); err != nil {
		return s, err
	}
	return s, nil
}

func applyEnv(vars map[string]string) {
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		_ = os.Setenv(k, v)
	}
}
