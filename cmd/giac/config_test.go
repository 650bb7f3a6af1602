package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "giac.yaml", cfg.Project.File)
	assert.Empty(t, cfg.Project.Path)
	assert.Empty(t, cfg.Output.Dest)
	assert.Equal(t, "docker-compose.yaml", cfg.Output.Manifest)
	assert.Equal(t, ".env.sample", cfg.Output.EnvSample)
	assert.False(t, cfg.Output.Memory)
	assert.False(t, cfg.Proxy.Secure)
	assert.Empty(t, cfg.Ledger.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
project:
  file: stack.toml
  name: shop
output:
  dest: /tmp/out
  manifest: compose.yml
  env_sample: .env.example
proxy:
  secure: true
ledger:
  dsn: /tmp/ledger.db
log:
  level: debug
  format: json
`
	tmpFile := filepath.Join(t.TempDir(), "giac.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "stack.toml", cfg.Project.File)
	assert.Equal(t, "shop", cfg.Project.Name)
	assert.Equal(t, "/tmp/out", cfg.Output.Dest)
	assert.Equal(t, "compose.yml", cfg.Output.Manifest)
	assert.Equal(t, ".env.example", cfg.Output.EnvSample)
	assert.True(t, cfg.Proxy.Secure)
	assert.Equal(t, "/tmp/ledger.db", cfg.Ledger.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("GIAC_PROJECT_NAME", "envname")
	t.Setenv("GIAC_OUTPUT_DEST", "/srv/out")
	t.Setenv("GIAC_PROXY_SECURE", "true")
	t.Setenv("GIAC_LEDGER_DSN", "/var/lib/giac/ledger.db")
	t.Setenv("GIAC_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "envname", cfg.Project.Name)
	assert.Equal(t, "/srv/out", cfg.Output.Dest)
	assert.True(t, cfg.Proxy.Secure)
	assert.Equal(t, "/var/lib/giac/ledger.db", cfg.Ledger.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_BinderOverridesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GIAC_OUTPUT_MANIFEST", "from-env.yaml")

	cfg, err := LoadConfig("", func(v *viper.Viper) error {
		v.Set("output.manifest", "from-flag.yaml")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag.yaml", cfg.Output.Manifest)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/giac.yaml")
	require.NoError(t, err)

	assert.Equal(t, "docker-compose.yaml", cfg.Output.Manifest)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "json"}}, &buf)
	logger.Info("hello", "service", "db")
	assert.Contains(t, buf.String(), `"service":"db"`)

	buf.Reset()
	logger = SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "text"}}, &buf)
	logger.Info("hello", "service", "db")
	assert.Contains(t, buf.String(), "service=db")
}

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugOn   bool
		warningOn bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, false},
		{"invalid", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&Config{Log: LogConfig{Level: tt.level}}, &buf)

			logger.Debug("debug message")
			assert.Equal(t, tt.debugOn, bytes.Contains(buf.Bytes(), []byte("debug message")))

			logger.Warn("warn message")
			assert.Equal(t, tt.warningOn, bytes.Contains(buf.Bytes(), []byte("warn message")))
		})
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"GIAC_PROJECT_FILE",
		"GIAC_PROJECT_PATH",
		"GIAC_PROJECT_NAME",
		"GIAC_OUTPUT_DEST",
		"GIAC_OUTPUT_MANIFEST",
		"GIAC_OUTPUT_ENV_SAMPLE",
		"GIAC_OUTPUT_MEMORY",
		"GIAC_OUTPUT_DRY_RUN",
		"GIAC_PROXY_SECURE",
		"GIAC_LEDGER_DSN",
		"GIAC_LOG_LEVEL",
		"GIAC_LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
