// Package config handles simreq configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/simreq/config.yaml, /config/config.yaml,
// /etc/simreq/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "simreq", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/simreq/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all simreq configuration.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Report   ReportConfig   `yaml:"report"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
}

// BridgeConfig selects and configures the transport a run connects
// through: rosbridge's WebSocket protocol or MQTT.
type BridgeConfig struct {
	// Kind is "rosbridge" or "mqtt".
	Kind string `yaml:"kind"`

	// Rosbridge settings, used when Kind == "rosbridge".
	RosbridgeURL string `yaml:"rosbridge_url"`

	// MQTT settings, used when Kind == "mqtt".
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTClientID string `yaml:"mqtt_client_id"`
}

// TimeoutsConfig sets the manager-level deadlines for a whole run. They
// apply independently of any per-pattern "within" clause in the HPL.
type TimeoutsConfig struct {
	// MaxSeconds is the hard stop deadline for the whole run. Zero
	// means no deadline (run until satisfied or a descendant stops
	// the simulation).
	MaxSeconds float64 `yaml:"max_seconds"`
	// MinSeconds is the earliest-assessment deadline (0 means "assess
	// immediately" at connect, catching vacuously-satisfied patterns
	// like an Absence whose child never fires).
	MinSeconds float64 `yaml:"min_seconds"`
}

// CatalogConfig points at the named-requirement-definition database.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ReportConfig controls what a finished run's verdict is rendered to
// and published against, beyond the Markdown report always printed to
// stdout.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`

	GitHub GitHubStatusConfig `yaml:"github"`
}

// GitHubStatusConfig enables posting a run's verdict as a commit
// status, for CI pipelines gating merges on a simulation run.
type GitHubStatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	Repo    string `yaml:"repo"`
}

// Configured reports whether GitHub status posting has enough
// information to run.
func (c GitHubStatusConfig) Configured() bool {
	return c.Enabled && c.Token != "" && c.Repo != ""
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${HOME}, ${MQTT_PASSWORD}).
	// This is a convenience for container deployments; the recommended
	// approach is to put values directly in the config file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Bridge.Kind == "" {
		c.Bridge.Kind = "rosbridge"
	}
	if c.Bridge.RosbridgeURL == "" {
		c.Bridge.RosbridgeURL = "ws://localhost:9090"
	}
	if c.Bridge.MQTTClientID == "" {
		c.Bridge.MQTTClientID = "simreq"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.DataDir, "catalog.db")
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = filepath.Join(c.DataDir, "reports")
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	switch c.Bridge.Kind {
	case "rosbridge", "mqtt":
	default:
		return fmt.Errorf("bridge.kind %q must be \"rosbridge\" or \"mqtt\"", c.Bridge.Kind)
	}
	if c.Bridge.Kind == "mqtt" && c.Bridge.MQTTBroker == "" {
		return fmt.Errorf("bridge.mqtt_broker is required when bridge.kind is \"mqtt\"")
	}
	if c.Timeouts.MaxSeconds < 0 {
		return fmt.Errorf("timeouts.max_seconds must not be negative")
	}
	if c.Timeouts.MinSeconds < 0 {
		return fmt.Errorf("timeouts.min_seconds must not be negative")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local
// development against a rosbridge server on localhost. All defaults
// are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
