package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"propertyhub/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "test_user", cfg.Server.DefaultUser)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_FromYAML(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  shutdown_timeout: 3s
  default_user: guest
auth:
  enabled: true
  jwt_secret: yaml-secret
  token_ttl: 1h
database:
  url: postgres://localhost/propertyhub
  max_conns: 4
logging:
  level: debug
  format: console
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "guest", cfg.Server.DefaultUser)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "postgres://localhost/propertyhub", cfg.Database.URL)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeFile(t, "server: [unterminated")
	_, err := config.LoadConfig(path)
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*config.Config) {}},
		{name: "empty addr", mutate: func(c *config.Config) { c.Server.Addr = "" }, wantErr: true},
		{name: "zero shutdown timeout", mutate: func(c *config.Config) { c.Server.ShutdownTimeout = 0 }, wantErr: true},
		{name: "auth without secret", mutate: func(c *config.Config) { c.Auth.Enabled = true }, wantErr: true},
		{
			name: "auth with secret",
			mutate: func(c *config.Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecret = "s3cret"
			},
		},
		{name: "required without enabled", mutate: func(c *config.Config) { c.Auth.Required = true }, wantErr: true},
		{name: "unknown log format", mutate: func(c *config.Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_ShippedExampleMatchesDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_ADDR", "PORT", "DEFAULT_USER", "AUTH_ENABLED", "AUTH_REQUIRED",
		"JWT_SECRET", "DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := config.LoadConfig(filepath.Join("..", "configs", "app.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}
