package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/module"
)

const configFilename = "executor.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a file or a directory containing executor.yaml.
// Values not present in the file keep their defaults. Relative paths are resolved
// against the file's directory.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, configFilename)
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but %s not found: %s", configFilename, absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.SourceFile = absPath

	applyEnvOverrides(cfg)
	resolvePaths(cfg, filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configPath when set, otherwise the discovered file, otherwise defaults.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DiscoverConfigFile()
	}
	if configPath == "" {
		cfg := Defaults()
		applyEnvOverrides(cfg)
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return Load(configPath)
}

// DiscoverConfigFile finds executor.yaml in standard locations.
// Priority order: $EXECUTOR_CONFIG_DIR, ./executor.yaml, ~/.config/executor. Returns "" when none exist.
func DiscoverConfigFile() string {
	var candidates []string
	if dir := os.Getenv("EXECUTOR_CONFIG_DIR"); dir != "" {
		candidates = append(candidates, filepath.Join(dir, configFilename))
	}
	candidates = append(candidates, configFilename)
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "executor", configFilename))
	}

	for _, path := range candidates {
		if fsutil.Is(path, fsutil.KindFile) {
			return path
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EXECUTOR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("EXECUTOR_LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := os.Getenv("EXECUTOR_CONFIG_ROOT"); v != "" {
		cfg.ConfigRoot = v
	}
}

func resolvePaths(cfg *Config, baseDir string) {
	if cfg.ConfigRoot != "" && !filepath.IsAbs(cfg.ConfigRoot) {
		cfg.ConfigRoot = filepath.Join(baseDir, cfg.ConfigRoot)
	}
	if cfg.History.Path != "" && !filepath.IsAbs(cfg.History.Path) {
		cfg.History.Path = filepath.Join(baseDir, cfg.History.Path)
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text (got %q)", cfg.Log.Format)
	}
	if cfg.ConfigRoot == "" {
		return fmt.Errorf("config_root is required")
	}
	if _, err := module.ParseFailurePolicy(cfg.Batch.FailurePolicy); err != nil {
		return fmt.Errorf("batch.failure_policy: %w", err)
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if cfg.History.Retention < 0 {
		return fmt.Errorf("history.retention must not be negative")
	}
	if cfg.Collaborator.Timeout <= 0 {
		return fmt.Errorf("collaborator.timeout must be positive")
	}
	if cfg.Collaborator.MaxStderrBytes <= 0 {
		return fmt.Errorf("collaborator.max_stderr_bytes must be positive")
	}
	if unresolved := envVarPattern.FindString(cfg.ConfigRoot + cfg.History.Path); unresolved != "" {
		return fmt.Errorf("unresolved environment variable %s", unresolved)
	}
	return nil
}

// FailurePolicy returns the parsed batch failure policy.
func (c *Config) FailurePolicy() module.FailurePolicy {
	p, err := module.ParseFailurePolicy(c.Batch.FailurePolicy)
	if err != nil {
		return module.IsolateFailures
	}
	return p
}
