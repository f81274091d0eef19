package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg *Config
	mu  sync.RWMutex
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Queue     QueueConfig     `mapstructure:"queue"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	Timezone string `mapstructure:"timezone"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// QueueConfig carries the dispatcher knobs: per-office enablement and the
// delay after midnight before the rollover sweep runs.
type QueueConfig struct {
	OfficeEnabled map[string]bool `mapstructure:"office_enabled"`
	RolloverDelay time.Duration   `mapstructure:"rollover_delay"`
	LookupMaxAge  time.Duration   `mapstructure:"lookup_max_age"`
}

// Enabled reports whether the named office accepts admits.
func (q QueueConfig) Enabled(office string) bool {
	if q.OfficeEnabled == nil {
		return true
	}
	v, ok := q.OfficeEnabled[office]
	if !ok {
		return true
	}
	return v
}

type RateLimitConfig struct {
	PublicPerMinute int `mapstructure:"public_per_minute"`
	AuthPer15Min    int `mapstructure:"auth_per_15min"`
}

// Load reads configuration from the given file (optional) and the
// FRONTDESK_* environment, then installs it as the process config. The file
// is watched; safe keys take effect on rewrite without a restart.
func Load(path string) error {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FRONTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			v.WatchConfig()
			v.OnConfigChange(func(e fsnotify.Event) {
				log.Printf("config file changed: %s", e.Name)
				var next Config
				if err := v.Unmarshal(&next); err != nil {
					log.Printf("config reload failed: %v", err)
					return
				}
				mu.Lock()
				// Only queue keys are hot-swappable: the dispatcher re-reads
				// them per request. Everything else needs a restart.
				cfg.Queue = next.Queue
				mu.Unlock()
			})
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	mu.Lock()
	cfg = &c
	mu.Unlock()
	return nil
}

// Get returns the current configuration, loading defaults if Load was never
// called.
func Get() *Config {
	mu.RLock()
	c := cfg
	mu.RUnlock()
	if c != nil {
		return c
	}
	_ = Load("")
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Set installs a config directly. Test hook.
func Set(c *Config) {
	mu.Lock()
	cfg = c
	mu.Unlock()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "frontdesk")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "Asia/Manila")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "frontdesk")
	v.SetDefault("database.user", "frontdesk")
	v.SetDefault("database.password", "frontdesk_password")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "redis")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.cache_ttl", 2*time.Second)

	v.SetDefault("auth.access_token_ttl", 8*time.Hour)

	v.SetDefault("queue.office_enabled", map[string]bool{
		"registrar":  true,
		"admissions": true,
	})
	v.SetDefault("queue.rollover_delay", time.Minute)
	v.SetDefault("queue.lookup_max_age", 24*time.Hour)

	v.SetDefault("rate_limit.public_per_minute", 100)
	v.SetDefault("rate_limit.auth_per_15min", 50)
}
