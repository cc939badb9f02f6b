package pmtu

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the enumerated configuration options from spec.md §6.
type Config struct {
	MinMTU                 uint16        `yaml:"min_mtu"`
	MaxMTU                 uint16        `yaml:"max_mtu"`
	StepSize               uint16        `yaml:"step_size"`
	ProbeTimeout           time.Duration `yaml:"probe_timeout"`
	BlackholeThreshold     uint32        `yaml:"blackhole_threshold"`
	AdaptiveCheckInterval  time.Duration `yaml:"adaptive_check_interval"`
	BidirectionalEnabled   bool          `yaml:"bidirectional_enabled"`
	HighLossThreshold      float32       `yaml:"high_loss_threshold"`
	LowLossThreshold       float32       `yaml:"low_loss_threshold"`
	GoodRTTThresholdMs     uint32        `yaml:"good_rtt_threshold_ms"`
}

// DefaultConfig returns the configuration defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		MinMTU:                1200,
		MaxMTU:                1500,
		StepSize:              32,
		ProbeTimeout:          1000 * time.Millisecond,
		BlackholeThreshold:    3,
		AdaptiveCheckInterval: 5000 * time.Millisecond,
		BidirectionalEnabled:  true,
		HighLossThreshold:     0.05,
		LowLossThreshold:      0.01,
		GoodRTTThresholdMs:    100,
	}
}

// LoadConfigFromFile loads configuration from a YAML file, starting from
// DefaultConfig so an omitted field keeps its default.
func LoadConfigFromFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading pmtu config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing pmtu config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies PMTU_*-prefixed environment variable overrides,
// following the same override-in-place style as the agent's own config
// loader.
func (c *Config) ApplyEnvOverrides() {
	if v, ok := envUint16("PMTU_MIN_MTU"); ok {
		c.MinMTU = v
	}
	if v, ok := envUint16("PMTU_MAX_MTU"); ok {
		c.MaxMTU = v
	}
	if v, ok := envUint16("PMTU_STEP_SIZE"); ok {
		c.StepSize = v
	}
	if v := os.Getenv("PMTU_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ProbeTimeout = d
		}
	}
	if v := os.Getenv("PMTU_ADAPTIVE_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AdaptiveCheckInterval = d
		}
	}
	if v := os.Getenv("PMTU_BIDIRECTIONAL_ENABLED"); v != "" {
		c.BidirectionalEnabled = v == "true" || v == "1"
	}
}

func envUint16(key string) (uint16, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// Validate checks the configuration-violation error class from spec.md
// §7.4. It is the only fatal error path in the package; everything else is
// handled as an internal state transition.
func (c *Config) Validate() error {
	if c.MinMTU == 0 {
		return &ConfigError{Field: "min_mtu", Reason: "must be positive"}
	}
	if c.MaxMTU < c.MinMTU {
		return &ConfigError{Field: "max_mtu", Reason: "must be >= min_mtu"}
	}
	if c.StepSize == 0 {
		return &ConfigError{Field: "step_size", Reason: "must be positive"}
	}
	if c.BlackholeThreshold == 0 {
		return &ConfigError{Field: "blackhole_threshold", Reason: "must be positive"}
	}
	if c.LowLossThreshold > c.HighLossThreshold {
		return &ConfigError{Field: "low_loss_threshold", Reason: "must be <= high_loss_threshold"}
	}
	return nil
}
