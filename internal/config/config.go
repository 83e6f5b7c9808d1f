package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Bounds for the clamped numeric settings. Values outside a bound are pulled
// back to the nearest edge rather than rejected.
const (
	MinHeartbeatInterval = 10 * time.Second
	MaxHeartbeatInterval = 600 * time.Second
	MinJobPollInterval   = 5 * time.Second
	MaxJobPollInterval   = 60 * time.Second
	MinRequestTimeout    = 5 * time.Second
	MaxRequestTimeout    = 300 * time.Second
	MinTelemetryInterval = 15 * time.Second
	MaxTelemetryInterval = 600 * time.Second
)

// Config holds the agent's runtime settings. It is constructed once by Load
// and treated as read-only afterwards, so all loops may read it concurrently.
type Config struct {
	NodeToken     string
	WalletAddress string
	BackendURL    string

	HeartbeatInterval time.Duration
	JobPollInterval   time.Duration
	TelemetryInterval time.Duration
	RequestTimeout    time.Duration

	MaxConcurrentJobs int
	GPUIndex          int
	LogLevel          string

	// NatsURL enables the optional telemetry push channel when non-empty.
	NatsURL          string
	TelemetrySubject string
}

// ValidationError reports a setting that prevents the agent from starting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// fileValues mirrors the optional YAML config file. Pointers distinguish
// "absent" from zero so file values only override defaults when present.
type fileValues struct {
	NodeToken         *string `yaml:"node_token"`
	WalletAddress     *string `yaml:"wallet_address"`
	BackendURL        *string `yaml:"backend_url"`
	HeartbeatSeconds  *int    `yaml:"heartbeat_interval_seconds"`
	JobPollSeconds    *int    `yaml:"job_poll_interval_seconds"`
	TelemetrySeconds  *int    `yaml:"telemetry_interval_seconds"`
	RequestTimeoutSec *int    `yaml:"request_timeout_seconds"`
	MaxConcurrentJobs *int    `yaml:"max_concurrent_jobs"`
	GPUIndex          *int    `yaml:"gpu_index"`
	LogLevel          *string `yaml:"log_level"`
	NatsURL           *string `yaml:"nats_url"`
	TelemetrySubject  *string `yaml:"telemetry_subject"`
}

func defaults() *Config {
	return &Config{
		BackendURL:        "https://api.hypernode.sol",
		HeartbeatInterval: 60 * time.Second,
		JobPollInterval:   10 * time.Second,
		TelemetryInterval: 60 * time.Second,
		RequestTimeout:    10 * time.Second,
		MaxConcurrentJobs: 1,
		GPUIndex:          0,
		LogLevel:          "info",
		TelemetrySubject:  "hypernode.telemetry",
	}
}

// Load builds the Config in three layers: built-in defaults, the optional
// YAML file at path (skipped when path is empty or the file does not exist),
// and finally environment variables, which always win. Numeric settings are
// clamped into their bounds; Validate handles the hard-required fields.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			var fv fileValues
			if err := yaml.Unmarshal(data, &fv); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			applyFile(cfg, &fv)
		}
	}

	applyEnv(cfg)
	clamp(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, fv *fileValues) {
	if fv.NodeToken != nil {
		cfg.NodeToken = *fv.NodeToken
	}
	if fv.WalletAddress != nil {
		cfg.WalletAddress = *fv.WalletAddress
	}
	if fv.BackendURL != nil {
		cfg.BackendURL = *fv.BackendURL
	}
	if fv.HeartbeatSeconds != nil {
		cfg.HeartbeatInterval = time.Duration(*fv.HeartbeatSeconds) * time.Second
	}
	if fv.JobPollSeconds != nil {
		cfg.JobPollInterval = time.Duration(*fv.JobPollSeconds) * time.Second
	}
	if fv.TelemetrySeconds != nil {
		cfg.TelemetryInterval = time.Duration(*fv.TelemetrySeconds) * time.Second
	}
	if fv.RequestTimeoutSec != nil {
		cfg.RequestTimeout = time.Duration(*fv.RequestTimeoutSec) * time.Second
	}
	if fv.MaxConcurrentJobs != nil {
		cfg.MaxConcurrentJobs = *fv.MaxConcurrentJobs
	}
	if fv.GPUIndex != nil {
		cfg.GPUIndex = *fv.GPUIndex
	}
	if fv.LogLevel != nil {
		cfg.LogLevel = *fv.LogLevel
	}
	if fv.NatsURL != nil {
		cfg.NatsURL = *fv.NatsURL
	}
	if fv.TelemetrySubject != nil {
		cfg.TelemetrySubject = *fv.TelemetrySubject
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.NodeToken, "HN_NODE_TOKEN")
	setString(&cfg.WalletAddress, "WALLET_PUBKEY")
	setString(&cfg.BackendURL, "BACKEND_URL")
	setSeconds(&cfg.HeartbeatInterval, "HEARTBEAT_INTERVAL")
	setSeconds(&cfg.JobPollInterval, "JOB_POLL_INTERVAL")
	setSeconds(&cfg.TelemetryInterval, "TELEMETRY_INTERVAL")
	setSeconds(&cfg.RequestTimeout, "REQUEST_TIMEOUT")
	setInt(&cfg.MaxConcurrentJobs, "MAX_JOBS_CONCURRENT")
	setInt(&cfg.GPUIndex, "GPU_INDEX")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.NatsURL, "NATS_URL")
	setString(&cfg.TelemetrySubject, "TELEMETRY_SUBJECT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setSeconds(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func clamp(cfg *Config) {
	cfg.HeartbeatInterval = clampDuration(cfg.HeartbeatInterval, MinHeartbeatInterval, MaxHeartbeatInterval)
	cfg.JobPollInterval = clampDuration(cfg.JobPollInterval, MinJobPollInterval, MaxJobPollInterval)
	cfg.TelemetryInterval = clampDuration(cfg.TelemetryInterval, MinTelemetryInterval, MaxTelemetryInterval)
	cfg.RequestTimeout = clampDuration(cfg.RequestTimeout, MinRequestTimeout, MaxRequestTimeout)
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.GPUIndex < 0 {
		cfg.GPUIndex = 0
	}
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// Validate checks the hard requirements that make the agent unable to start.
// It reports the first failing field.
func (c *Config) Validate() error {
	if c.NodeToken == "" {
		return &ValidationError{Field: "node_token", Reason: "not set - get it from /app"}
	}
	if c.WalletAddress == "" {
		return &ValidationError{Field: "wallet_address", Reason: "not set - provide your Solana wallet"}
	}
	if len(c.WalletAddress) < 32 {
		return &ValidationError{Field: "wallet_address", Reason: "too short to be a wallet public key"}
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return &ValidationError{Field: "backend_url", Reason: "must start with http:// or https://"}
	}
	if c.HeartbeatInterval < MinHeartbeatInterval {
		return &ValidationError{Field: "heartbeat_interval", Reason: fmt.Sprintf("must be at least %s", MinHeartbeatInterval)}
	}
	return nil
}
