package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const FileName = "skytrack.yml"

// Config models skytrack.yml.
type Config struct {
	Database Database  `yaml:"database"`
	Server   Server    `yaml:"server"`
	Auth     Auth      `yaml:"auth"`
	Lock     Lock      `yaml:"lock"`
	Log      Log       `yaml:"log"`
	Metrics  Metrics   `yaml:"metrics"`
	Webhooks []Webhook `yaml:"webhooks"`
}

type Database struct {
	// Driver is sqlite or postgres.
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	BasePath     string        `yaml:"base_path"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateLimit    RateLimit     `yaml:"rate_limit"`
}

type RateLimit struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type Auth struct {
	JWTSecret   string              `yaml:"jwt_secret"`
	Issuer      string              `yaml:"issuer"`
	Audience    string              `yaml:"audience"`
	DevTokenTTL time.Duration       `yaml:"dev_token_ttl"`
	Roles       map[string]AuthRole `yaml:"roles"`
}

type AuthRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type Lock struct {
	// Driver is local or redis.
	Driver string `yaml:"driver"`
	Redis  Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Webhook receives a POST for every matching event. Events holds type
// patterns such as flight.* or plane.status_changed; empty means all.
type Webhook struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Events  []string      `yaml:"events"`
	Enabled *bool         `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// IsEnabled reports whether the hook should receive deliveries.
func (w Webhook) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Permissions granted to each role by the default config.
const (
	PermFlightWrite  = "flight.write"
	PermFlightUpdate = "flight.update"
	PermFlightDelete = "flight.delete"
	PermCrewWrite    = "crew.write"
	PermCrewAssign   = "crew.assign"
	PermPlaneWrite   = "plane.write"
)

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config.database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config.database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		return fmt.Errorf("config.server.rate_limit needs positive rps and burst when enabled")
	}
	switch c.Lock.Driver {
	case "local":
	case "redis":
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("config.lock.redis.addr is required for the redis lock driver")
		}
	default:
		return fmt.Errorf("config.lock.driver must be local or redis, got %q", c.Lock.Driver)
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if !strings.HasPrefix(hook.URL, "http://") && !strings.HasPrefix(hook.URL, "https://") {
			return fmt.Errorf("config.webhooks[%d].url must be http or https", i)
		}
	}
	for roleID, role := range c.Auth.Roles {
		if roleID == "" {
			return fmt.Errorf("config.auth.roles contains empty role id")
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
		}
	}
	return nil
}

// Allows reports whether any of roles grants perm.
func (c *Config) Allows(roles []string, perm string) bool {
	for _, r := range roles {
		role, ok := c.Auth.Roles[r]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			if p == perm || p == "*" {
				return true
			}
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with sky config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the workspace has no config file.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadEnv loads workspace/.env into the process environment. Variables
// already set win. A missing file is not an error.
func LoadEnv(workspace string) error {
	if workspace == "" {
		workspace = "."
	}
	err := godotenv.Load(filepath.Join(workspace, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Apply copies explicitly set flag or SKYTRACK_* environment values from v
// over the file config and re-validates.
func (c *Config) Apply(v *viper.Viper) error {
	if v.IsSet("db-driver") {
		c.Database.Driver = v.GetString("db-driver")
	}
	if v.IsSet("db-dsn") {
		c.Database.DSN = v.GetString("db-dsn")
		if !v.IsSet("db-driver") {
			c.Database.Driver = "postgres"
		}
	}
	if v.IsSet("addr") {
		c.Server.Addr = v.GetString("addr")
	}
	if v.IsSet("jwt-secret") {
		c.Auth.JWTSecret = v.GetString("jwt-secret")
	}
	if v.IsSet("redis-addr") {
		c.Lock.Driver = "redis"
		c.Lock.Redis.Addr = v.GetString("redis-addr")
	}
	if v.IsSet("log-level") {
		c.Log.Level = v.GetString("log-level")
	}
	return c.Validate()
}

// Default returns the default Config. It panics if the embedded template
// does not decode, which can only happen through a change to this file.
func Default() *Config {
	cfg, err := decodeDefault()
	if err != nil {
		panic(err)
	}
	return cfg
}

func decodeDefault() (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode default config template: %w", err)
	}
	return &cfg, nil
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes. Omitted keys
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `database:
  driver: sqlite
  max_open_conns: 10
  conn_max_lifetime: 30m

server:
  addr: 127.0.0.1:8080
  base_path: /v1
  read_timeout: 10s
  write_timeout: 15s
  rate_limit:
    enabled: true
    rps: 20
    burst: 40

auth:
  issuer: skytrack
  dev_token_ttl: 12h
  roles:
    ADMIN:
      description: "Fleet administrator"
      permissions: ["*"]
    OPERADOR:
      description: "Operations desk"
      permissions: [flight.update, crew.assign]

lock:
  driver: local
  redis:
    addr: ""
    db: 0
    ttl: 30s
    prefix: "skytrack:lock:"

log:
  level: info
  development: false

metrics:
  enabled: true
  namespace: skytrack

# webhooks:
#   - url: https://ops.example.com/hooks/skytrack
#     secret: change-me
#     events: [flight.*, plane.status_changed]
#     timeout: 5s
`
