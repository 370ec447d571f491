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

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Lock.Redis.TTL)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestDefaultTemplateDecodesStrictly(t *testing.T) {
	cfg, err := decodeDefault()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "local", cfg.Lock.Driver)
	assert.Contains(t, cfg.Auth.Roles, "OPERADOR")

	parsed, err := FromYAML([]byte(GenerateDefault()))
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: 0.0.0.0:9000\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, "local", cfg.Lock.Driver)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"driver":    "database:\n  driver: mysql\n",
		"pg dsn":    "database:\n  driver: postgres\n",
		"lock":      "lock:\n  driver: redis\n",
		"base":      "server:\n  base_path: v1\n",
		"ratelimit": "server:\n  rate_limit:\n    enabled: true\n    rps: 0\n",
		"hook url":  "webhooks:\n  - url: ftp://hooks.local/in\n",
		"hook none": "webhooks:\n  - events: [flight.*]\n",
	}
	for name, doc := range cases {
		_, err := FromYAML([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestAllows(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Allows([]string{"ADMIN"}, PermPlaneWrite))
	assert.True(t, cfg.Allows([]string{"OPERADOR"}, PermCrewAssign))
	assert.False(t, cfg.Allows([]string{"OPERADOR"}, PermFlightDelete))
	assert.False(t, cfg.Allows(nil, PermFlightUpdate))
}

func TestLoadOptionalAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(Path(dir), []byte(GenerateDefault()), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "skytrack", cfg.Auth.Issuer)

	require.NoError(t, LoadEnv(dir), "missing .env is fine")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SKYTRACK_TEST_ENV_KEY=from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SKYTRACK_TEST_ENV_KEY") })
	require.NoError(t, LoadEnv(dir))
	assert.Equal(t, "from-dotenv", os.Getenv("SKYTRACK_TEST_ENV_KEY"))
}

func TestApplyOverrides(t *testing.T) {
	v := viper.New()
	v.Set("db-dsn", "postgres://sky@localhost/sky")
	v.Set("redis-addr", "localhost:6379")
	v.Set("addr", ":9090")

	cfg := Default()
	require.NoError(t, cfg.Apply(v))
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Lock.Driver)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}
