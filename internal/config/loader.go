package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Load when the config file does not exist.
var ErrNotFound = errors.New("config file not found")

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the YAML file at configPath over Defaults() and validates the
// result. Keys missing from the file keep their default.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, absPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.Source = absPath
	return cfg, nil
}

// Parse decodes YAML config bytes over Defaults() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	interpolated := interpolateEnv(string(data))
	dec := yaml.NewDecoder(strings.NewReader(interpolated))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Fingerprint = Fingerprint(data)
	return cfg, nil
}

// interpolateEnv replaces ${VAR} with the variable's value. Unset variables
// are left in place so validation can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text (got %q)", cfg.Log.Format)
	}

	if err := checkResolved("window.url", cfg.Window.URL); err != nil {
		return err
	}
	if cfg.Window.URL == "" {
		return fmt.Errorf("window.url is required")
	}
	if err := checkResolved("window.title", cfg.Window.Title); err != nil {
		return err
	}
	if cfg.Window.Width == 0 || cfg.Window.Height == 0 {
		return fmt.Errorf("window.width and window.height must be positive (got %dx%d)", cfg.Window.Width, cfg.Window.Height)
	}

	if cfg.Journal.Enabled {
		if err := checkResolved("journal.path", cfg.Journal.Path); err != nil {
			return err
		}
		if cfg.Journal.Path == "" {
			return fmt.Errorf("journal.path is required when the journal is enabled")
		}
	}

	if cfg.API.Enabled {
		if err := checkResolved("api.listen", cfg.API.Listen); err != nil {
			return err
		}
		if err := checkLoopback(cfg.API.Listen); err != nil {
			return fmt.Errorf("api.listen: %w", err)
		}
		if err := checkResolved("api.token", cfg.API.Token); err != nil {
			return err
		}
	}

	return nil
}

func checkResolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// checkLoopback keeps the status server off external interfaces.
func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("address %q is not a loopback address", addr)
	}
	return nil
}
