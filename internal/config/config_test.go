package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.hypernode.sol", cfg.BackendURL)
	assert.Equal(t, 60*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.JobPollInterval)
	assert.Equal(t, 60*time.Second, cfg.TelemetryInterval)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.MaxConcurrentJobs)
	assert.Equal(t, 0, cfg.GPUIndex)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HN_NODE_TOKEN", "token-abc")
	t.Setenv("WALLET_PUBKEY", testWallet)
	t.Setenv("BACKEND_URL", "http://localhost:9000")
	t.Setenv("HEARTBEAT_INTERVAL", "30")
	t.Setenv("JOB_POLL_INTERVAL", "15")
	t.Setenv("MAX_JOBS_CONCURRENT", "4")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "token-abc", cfg.NodeToken)
	assert.Equal(t, testWallet, cfg.WalletAddress)
	assert.Equal(t, "http://localhost:9000", cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 15*time.Second, cfg.JobPollInterval)
	assert.Equal(t, 4, cfg.MaxConcurrentJobs)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFileThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	data := []byte("node_token: file-token\nbackend_url: http://from-file:8080\nheartbeat_interval_seconds: 120\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	t.Setenv("BACKEND_URL", "http://from-env:8080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.NodeToken)
	assert.Equal(t, "http://from-env:8080", cfg.BackendURL)
	assert.Equal(t, 120*time.Second, cfg.HeartbeatInterval)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadClampsBounds(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "3")
	t.Setenv("JOB_POLL_INTERVAL", "900")
	t.Setenv("REQUEST_TIMEOUT", "1")
	t.Setenv("TELEMETRY_INTERVAL", "100000")
	t.Setenv("MAX_JOBS_CONCURRENT", "-2")
	t.Setenv("GPU_INDEX", "-1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, MinHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, MaxJobPollInterval, cfg.JobPollInterval)
	assert.Equal(t, MinRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, MaxTelemetryInterval, cfg.TelemetryInterval)
	assert.Equal(t, 1, cfg.MaxConcurrentJobs)
	assert.Equal(t, 0, cfg.GPUIndex)
}

func validConfig() *Config {
	return &Config{
		NodeToken:         "token",
		WalletAddress:     testWallet,
		BackendURL:        "https://api.hypernode.sol",
		HeartbeatInterval: 60 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.NodeToken = "" },
			wantErr: "node_token",
		},
		{
			name:    "missing wallet",
			mutate:  func(c *Config) { c.WalletAddress = "" },
			wantErr: "wallet_address",
		},
		{
			name:    "short wallet",
			mutate:  func(c *Config) { c.WalletAddress = "abc123" },
			wantErr: "wallet_address",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.BackendURL = "ftp://api.hypernode.sol" },
			wantErr: "backend_url",
		},
		{
			name:    "no scheme",
			mutate:  func(c *Config) { c.BackendURL = "api.hypernode.sol" },
			wantErr: "backend_url",
		},
		{
			name:    "heartbeat too low",
			mutate:  func(c *Config) { c.HeartbeatInterval = 3 * time.Second },
			wantErr: "heartbeat_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}
