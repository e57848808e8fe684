package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 8080
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "portal_gateway_db"
admin_path = "/admin"
session_ttl_hours = 168
login_window_minutes = 15
login_max_attempts = 5
prometheus_metrics_port = 2112

[production]
host = ""
port = 9000
log_level = "debug"
logs_path = "/var/log/portal-gateway/service.log"
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "portal_gateway_db"
redis_enabled = true
redis_host = "localhost"
redis_port = 6379
admin_path = "random"
session_ttl_hours = 168
login_window_minutes = 15
login_max_attempts = 5
admin_static_files_path = "/var/www/portal-admin"
allowed_origins = ["https://portal.example.com"]
prometheus_metrics_port = 2112
tracing_enabled = true
sentry_enabled = true
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestConfig(t)

	dev, err := Load("dev", path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", dev.Host)
	assert.Equal(t, 8080, dev.Port)
	assert.Equal(t, "/admin", dev.AdminPath)
	assert.Equal(t, 168, dev.SessionTTLHours)
	assert.False(t, dev.RedisEnabled)

	prod, err := Load("production", path)
	require.NoError(t, err)
	assert.Equal(t, 9000, prod.Port)
	assert.Equal(t, "random", prod.AdminPath)
	assert.True(t, prod.RedisEnabled)
	assert.Equal(t, 6379, prod.RedisPort)
	assert.Equal(t, []string{"https://portal.example.com"}, prod.AllowedOrigins)
	assert.Equal(t, "/var/www/portal-admin", prod.AdminStaticFilesPath)
}

func TestLoad_Errors(t *testing.T) {
	path := writeTestConfig(t)

	_, err := Load("staging", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown env")

	_, err = Load("dev", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
