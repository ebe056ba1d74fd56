package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is picked up from the working directory when no
	// explicit --config path is given.
	ConfigFileName = "vmrelay.yaml"

	// EnvRows and EnvCols carry the host terminal dimensions into the
	// guest. The identity-override shim loaded into the child reads the
	// same two variables to patch zero-sized terminal queries.
	EnvRows = "VMRELAY_TERM_ROWS"
	EnvCols = "VMRELAY_TERM_COLS"

	EnvDefaultCommand = "VMRELAY_DEFAULT_CMD"
	EnvLogLevel       = "VMRELAY_LOG_LEVEL"

	DefaultRows = 24
	DefaultCols = 80

	// DefaultCommand is what the relay executes when invoked without a
	// command vector. Deployment images override it via config or env.
	DefaultCommand = "/init.sh"
)

// Config is the effective relay configuration after merging defaults, the
// optional YAML file, .env, and the real environment (highest priority).
type Config struct {
	Rows           int    `yaml:"rows"`
	Cols           int    `yaml:"cols"`
	DefaultCommand string `yaml:"default_command"`
	LogLevel       string `yaml:"log_level"`

	// ConfigPath records which YAML file was loaded, if any.
	ConfigPath string `yaml:"-"`
}

// Load builds the effective configuration. path may be empty, in which case
// ./vmrelay.yaml is used when present. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Rows:           DefaultRows,
		Cols:           DefaultCols,
		DefaultCommand: DefaultCommand,
		LogLevel:       "info",
	}

	if path == "" {
		if _, err := os.Stat(ConfigFileName); err == nil {
			path = ConfigFileName
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		cfg.ConfigPath = path
	}

	envMap := loadDotEnvIfExists(filepath.Dir(firstNonEmpty(path, ".")))

	if v, ok := lookupEnv(EnvDefaultCommand, envMap); ok && v != "" {
		cfg.DefaultCommand = v
	}
	if v, ok := lookupEnv(EnvLogLevel, envMap); ok && v != "" {
		cfg.LogLevel = v
	}
	cfg.Rows = dimensionFromEnv(EnvRows, envMap, cfg.Rows)
	cfg.Cols = dimensionFromEnv(EnvCols, envMap, cfg.Cols)

	if cfg.Rows < 1 || cfg.Rows > 0xffff {
		cfg.Rows = DefaultRows
	}
	if cfg.Cols < 1 || cfg.Cols > 0xffff {
		cfg.Cols = DefaultCols
	}
	if cfg.DefaultCommand == "" {
		cfg.DefaultCommand = DefaultCommand
	}

	return cfg, nil
}

// loadDotEnvIfExists reads dir/.env into a map. No .env, or a broken one,
// yields an empty map; the file never overrides the real environment.
func loadDotEnvIfExists(dir string) map[string]string {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return map[string]string{}
	}
	m, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}
	return m
}

// lookupEnv resolves name with precedence OS env > .env map.
func lookupEnv(name string, envMap map[string]string) (string, bool) {
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	if v, ok := envMap[name]; ok {
		return v, true
	}
	return "", false
}

// dimensionFromEnv parses a terminal dimension variable. Absent or
// unparsable values keep the fallback so a half-configured environment
// still gets a usable terminal.
func dimensionFromEnv(name string, envMap map[string]string, fallback int) int {
	v, ok := lookupEnv(name, envMap)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 0xffff {
		return fallback
	}
	return n
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
