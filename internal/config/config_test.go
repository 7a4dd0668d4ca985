package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.JournalDriver)
	assert.Equal(t, "replace", cfg.ReconcileMode)
	assert.Empty(t, cfg.Scopes)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LABDESK_HTTP_ADDR", ":9090")
	t.Setenv("LABDESK_LAB_API_URL", "https://labs.example.edu")
	t.Setenv("LABDESK_CORS_ORIGINS", " https://a.example , https://b.example ")
	t.Setenv("LABDESK_RECONCILE_MODE", "MERGE")
	t.Setenv("LABDESK_LAB_API_TIMEOUT", "3s")
	t.Setenv("LABDESK_METRICS_ENABLED", "false")

	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "https://labs.example.edu", cfg.LabAPIURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "merge", cfg.ReconcileMode)
	assert.Equal(t, 3*time.Second, cfg.LabAPITimeout)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoad_ConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "labdesk.yaml")
	require.NoError(t, os.WriteFile(file, []byte("journal_driver: memory\nlog_format: json\n"), 0o600))
	dotEnv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotEnv, []byte("LABDESK_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LABDESK_LOG_LEVEL") })

	cfg, err := Load(viper.New(), file, dotEnv)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.JournalDriver)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	_, err := Load(viper.New(), "", filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"LABDESK_RECONCILE_MODE": "sometimes",
		"LABDESK_JOURNAL_DRIVER": "oracle",
		"LABDESK_LAB_API_URL":    "not a url",
		"LABDESK_TOKEN_URL":      "https://auth.example/token", // without client id
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Load(viper.New(), "", "")
			assert.Error(t, err)
		})
	}
}
