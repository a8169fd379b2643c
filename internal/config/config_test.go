package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "token: ${TEST_TOKEN}",
			envVars: map[string]string{
				"TEST_TOKEN": "tok_123",
			},
			expected: "token: tok_123",
		},
		{
			name:  "expand multiple env vars",
			input: "token: ${TOKEN}\nrefresh_token: ${REFRESH}",
			envVars: map[string]string{
				"TOKEN":   "tok_value",
				"REFRESH": "ref_value",
			},
			expected: "token: tok_value\nrefresh_token: ref_value",
		},
		{
			name:     "missing env var returns empty string",
			input:    "token: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "token: ",
		},
		{
			name:  "mixed static and env vars",
			input: "static_value: 123\ntoken: ${TEST_KEY}",
			envVars: map[string]string{
				"TEST_KEY": "dynamic_key",
			},
			expected: "static_value: 123\ntoken: dynamic_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

const validConfig = `app:
  name: "campus_courier"
  environment: "dev"

remote:
  base_url: "https://api.campus.test"
  timeout_seconds: 10
  stream_enabled: true

auth:
  token: "${TEST_COURIER_TOKEN}"
  refresh_token: "r1"
  user_id: "alice"
  role: "deliverer"

cache:
  backend: "sqlite"
  path: "/tmp/courier-test.db"

sync:
  reconcile_interval_seconds: 30
  refresh_rate_per_second: 2
  refresh_burst: 5

system:
  log_level: "INFO"

telemetry:
  metrics_port: 9091
  enable_metrics: true
`

func TestLoadConfigWithEnvVars(t *testing.T) {
	os.Setenv("TEST_COURIER_TOKEN", "tok_abc")
	defer os.Unsetenv("TEST_COURIER_TOKEN")

	path := writeConfig(t, validConfig)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.campus.test", cfg.Remote.BaseURL)
	assert.Equal(t, Secret("tok_abc"), cfg.Auth.Token)
	assert.Equal(t, "deliverer", cfg.Auth.Role)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 30, cfg.Sync.ReconcileIntervalSeconds)
	assert.Equal(t, 9091, cfg.Telemetry.MetricsPort)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `remote:
  base_url: "http://localhost:8080"
auth:
  token: "t"
  user_id: "alice"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "campus_courier", cfg.App.Name)
	assert.Equal(t, 15, cfg.Remote.TimeoutSeconds)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, "campus_courier.db", cfg.Cache.Path)
	assert.Equal(t, 60, cfg.Sync.ReconcileIntervalSeconds)
	assert.Equal(t, "customer", cfg.Auth.Role)
	assert.Equal(t, "INFO", cfg.System.LogLevel)
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing base url",
			content: "auth:\n  token: t\n  user_id: u\n",
			wantErr: "remote.base_url",
		},
		{
			name:    "bad scheme",
			content: "remote:\n  base_url: ftp://x\nauth:\n  token: t\n  user_id: u\n",
			wantErr: "remote.base_url",
		},
		{
			name:    "missing token",
			content: "remote:\n  base_url: http://x\nauth:\n  user_id: u\n",
			wantErr: "auth.token",
		},
		{
			name:    "bad role",
			content: "remote:\n  base_url: http://x\nauth:\n  token: t\n  user_id: u\n  role: chef\n",
			wantErr: "auth.role",
		},
		{
			name:    "bad cache backend",
			content: "remote:\n  base_url: http://x\nauth:\n  token: t\n  user_id: u\ncache:\n  backend: redis\n",
			wantErr: "cache.backend",
		},
		{
			name:    "bad log level",
			content: "remote:\n  base_url: http://x\nauth:\n  token: t\n  user_id: u\nsystem:\n  log_level: LOUD\n",
			wantErr: "system.log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	os.Setenv("TEST_COURIER_TOKEN", "tok_abc")
	defer os.Unsetenv("TEST_COURIER_TOKEN")

	path := writeConfig(t, validConfig)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	printed := cfg.String()
	assert.False(t, strings.Contains(printed, "tok_abc"), "token must never print")
	assert.Contains(t, printed, "[REDACTED]")
}
