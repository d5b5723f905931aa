package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Output   OutputConfig   `yaml:"output"`
	Diagrams DiagramsConfig `yaml:"diagrams"`
	Tools    ToolsConfig    `yaml:"tools"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watch    WatchConfig    `yaml:"watch"`
}

// SourceConfig describes the tree to document.
type SourceConfig struct {
	Root    string   `yaml:"root"`
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// OutputConfig describes where artifacts land.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	// Title is used as the index document heading.
	Title string `yaml:"title,omitempty"`
}

// DiagramsConfig controls UML generation.
type DiagramsConfig struct {
	Disabled bool `yaml:"disabled,omitempty"`
	// Directory is relative to the output directory.
	Directory string `yaml:"directory,omitempty"`
}

// ToolsConfig names the external tool binaries and bounds their runtime.
type ToolsConfig struct {
	PydocMarkdown string `yaml:"pydoc_markdown,omitempty"`
	Pyreverse     string `yaml:"pyreverse,omitempty"`
	// Timeout is a duration string, e.g. "60s".
	Timeout string `yaml:"timeout,omitempty"`
}

// TimeoutDuration parses the configured tool timeout, defaulting to 60s for
// empty or malformed values.
func (t ToolsConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(t.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce coalesces bursts of filesystem events into one build,
	// as a duration string.
	Debounce string `yaml:"debounce,omitempty"`
	// Interval triggers a periodic full rebuild; empty disables it.
	Interval string `yaml:"interval,omitempty"`
	// MetricsAddr exposes Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DebounceDuration parses the configured debounce window, defaulting to 2s.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// IntervalDuration parses the periodic rebuild interval; zero disables it.
func (w WatchConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(w.Interval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// Load reads configuration from the specified file, expanding environment
// variables in the YAML content. A .env file alongside the process is loaded
// first so tokens and paths can live outside the config.
func Load(configPath string) (*Config, error) {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file read.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Source.Root == "" {
		c.Source.Root = "./src"
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./docs/api"
	}
	if c.Output.Title == "" {
		c.Output.Title = "Documentation Index"
	}
	if c.Diagrams.Directory == "" {
		c.Diagrams.Directory = "uml"
	}
	if c.Tools.PydocMarkdown == "" {
		c.Tools.PydocMarkdown = "pydoc-markdown"
	}
	if c.Tools.Pyreverse == "" {
		c.Tools.Pyreverse = "pyreverse"
	}
	if c.Tools.Timeout == "" {
		c.Tools.Timeout = "60s"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "2s"
	}
}

func (c *Config) validate() error {
	if c.Source.Root == "" {
		return fmt.Errorf("source.root must not be empty")
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("output.directory must not be empty")
	}
	return nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Source: SourceConfig{
			Root:    "./src",
			Include: []string{"**/*.py"},
			Exclude: []string{"**/test_*.py", "**/tests/**", "**/.venv/**"},
		},
		Output: OutputConfig{
			Directory: "./docs/api",
			Title:     "API Documentation",
		},
		Diagrams: DiagramsConfig{
			Directory: "uml",
		},
		Tools: ToolsConfig{
			Timeout: "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
