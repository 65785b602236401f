package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mirror backends.
const (
	MirrorFile  = "file"
	MirrorRedis = "redis"
)

type Config struct {
	DBPath          string       `yaml:"db_path"`          // primary SQLite database
	BackupRetention int          `yaml:"backup_retention"` // backups kept after each write
	Mirror          MirrorConfig `yaml:"mirror"`
	Log             LogConfig    `yaml:"log"`
	HTTP            HTTPConfig   `yaml:"http"`
}

type MirrorConfig struct {
	Backend string      `yaml:"backend"` // "file" | "redis"
	Path    string      `yaml:"path"`    // JSON file for the file backend
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"` // ex: "localhost:6379"
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	KeyPrefix      string        `yaml:"key_prefix"`
	PoolSize       int           `yaml:"pool_size"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // total time to retry connecting
	RetryInterval  time.Duration `yaml:"retry_interval"`  // initial wait, grows exponentially
	MaxWait        time.Duration `yaml:"max_wait"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	WarnThreshold  int           `yaml:"warn_threshold"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Pretty bool   `yaml:"pretty"` // true => zap dev (color), false => zap prod (JSON)
}

type HTTPConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultDir returns the gdaes directory under the platform's config directory.
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "gdaes"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := DefaultDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	dir, err := DefaultDir()
	if err != nil {
		dir = "."
	}
	return &Config{
		DBPath:          filepath.Join(dir, "gdaes.db"),
		BackupRetention: 5,
		Mirror: MirrorConfig{
			Backend: MirrorFile,
			Path:    filepath.Join(dir, "mirror.json"),
			Redis: RedisConfig{
				Addr:           "localhost:6379",
				PoolSize:       4,
				DialTimeout:    5 * time.Second,
				ReadTimeout:    3 * time.Second,
				WriteTimeout:   3 * time.Second,
				ConnectTimeout: 10 * time.Second,
				RetryInterval:  500 * time.Millisecond,
				MaxWait:        3 * time.Second,
				PingTimeout:    2 * time.Second,
				WarnThreshold:  3,
			},
		},
		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},
		HTTP: HTTPConfig{
			Listen:          "127.0.0.1:8787",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is not an error), then GDAES_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DBPath = getenv("GDAES_DB_PATH", cfg.DBPath)
	cfg.BackupRetention = getenvInt("GDAES_BACKUP_RETENTION", cfg.BackupRetention)

	cfg.Mirror.Backend = getenv("GDAES_MIRROR_BACKEND", cfg.Mirror.Backend)
	cfg.Mirror.Path = getenv("GDAES_MIRROR_PATH", cfg.Mirror.Path)

	r := &cfg.Mirror.Redis
	r.Addr = getenv("GDAES_REDIS_ADDR", r.Addr)
	r.Username = getenv("GDAES_REDIS_USERNAME", r.Username)
	r.Password = getenv("GDAES_REDIS_PASSWORD", r.Password)
	r.DB = getenvInt("GDAES_REDIS_DB", r.DB)
	r.KeyPrefix = getenv("GDAES_REDIS_KEY_PREFIX", r.KeyPrefix)
	r.ConnectTimeout = mustDuration("GDAES_REDIS_CONNECT_TIMEOUT", r.ConnectTimeout)

	cfg.Log.Level = getenv("GDAES_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = mustBool("GDAES_PRETTY_LOG", cfg.Log.Pretty)

	cfg.HTTP.Listen = getenv("GDAES_LISTEN", cfg.HTTP.Listen)
	cfg.HTTP.ShutdownTimeout = mustDuration("GDAES_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
}

// Validate checks values that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.BackupRetention < 1 {
		return fmt.Errorf("backup_retention must be >= 1, got %d", c.BackupRetention)
	}
	switch c.Mirror.Backend {
	case MirrorFile:
		if strings.TrimSpace(c.Mirror.Path) == "" {
			return fmt.Errorf("mirror.path is required for the file backend")
		}
	case MirrorRedis:
		if strings.TrimSpace(c.Mirror.Redis.Addr) == "" {
			return fmt.Errorf("mirror.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown mirror backend %q", c.Mirror.Backend)
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
