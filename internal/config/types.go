package config

import "time"

// Config represents the complete executor configuration.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	Locale       string             `yaml:"locale"`
	ConfigRoot   string             `yaml:"config_root"`
	Batch        BatchConfig        `yaml:"batch"`
	History      HistoryConfig      `yaml:"history"`
	Collaborator CollaboratorConfig `yaml:"collaborator"`
	API          APIConfig          `yaml:"api"`

	// VerifyIntegrity checks module configuration files against .checksums on load.
	VerifyIntegrity bool `yaml:"verify_integrity"`

	// SourceFile is the file the configuration was loaded from, empty for defaults.
	SourceFile string `yaml:"-"`
}

// LogConfig defines structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BatchConfig defines batch dispatch behavior.
type BatchConfig struct {
	// FailurePolicy is "isolate" (continue past failing entries) or "abort".
	FailurePolicy string `yaml:"failure_policy"`
}

// HistoryConfig defines the command history database.
type HistoryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// CollaboratorConfig defines defaults for external codec processes.
type CollaboratorConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxStderrBytes int           `yaml:"max_stderr_bytes"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
	// Token, when set, is required as "Authorization: Bearer <token>" on every route but /healthz.
	Token string `yaml:"token"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Locale:     "en-US",
		ConfigRoot: "./modules",
		Batch: BatchConfig{
			FailurePolicy: "isolate",
		},
		History: HistoryConfig{
			Enabled:   true,
			Path:      "./data/history.db",
			Retention: 30 * 24 * time.Hour,
		},
		Collaborator: CollaboratorConfig{
			Timeout:        5 * time.Minute,
			MaxStderrBytes: 64 * 1024,
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
	}
}
