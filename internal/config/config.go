// Package config loads the helpdesk configuration from YAML with environment
// overrides and hot reload.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/jamesgurung/school-helpdesk/internal/database"
	"github.com/jamesgurung/school-helpdesk/internal/email"
)

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
)

// Config is the application configuration.
type Config struct {
	School   SchoolConfig     `mapstructure:"school"`
	Server   ServerConfig     `mapstructure:"server"`
	Database database.Config  `mapstructure:"database"`
	SMTP     email.SMTPConfig `mapstructure:"smtp"`
	Inbound  InboundConfig    `mapstructure:"inbound"`
	Auth     AuthConfig       `mapstructure:"auth"`
	AI       AIConfig         `mapstructure:"ai"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
}

// SchoolConfig identifies the school this instance serves.
type SchoolConfig struct {
	Name     string `mapstructure:"name"`
	SiteURL  string `mapstructure:"site_url"`
	Timezone string `mapstructure:"timezone"`
	// TriageEmail receives newly opened tickets until they are reassigned.
	TriageEmail string `mapstructure:"triage_email"`
	TriageName  string `mapstructure:"triage_name"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// InboundConfig secures and tunes the inbound email webhook.
type InboundConfig struct {
	// AuthKey must match the auth query parameter on webhook deliveries.
	AuthKey string `mapstructure:"auth_key"`
	// RejectionsEnabled controls whether automated rejection responses are
	// sent to unrecognised senders.
	RejectionsEnabled bool `mapstructure:"rejections_enabled"`
}

// AuthConfig holds staff console session settings. Sign-in itself happens at
// the SSO proxy in front of this service; the proxy exchanges its key for a
// session token on behalf of the authenticated staff member.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	ProxyKey  string        `mapstructure:"proxy_key"`
}

// AIConfig configures the optional reply-drafting assistant.
type AIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	ModelID string `mapstructure:"model_id"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from configPath and watches it for changes.
func Load(configPath string) error {
	var err error
	once.Do(func() {
		v := viper.New()
		v.SetConfigType("yaml")
		v.SetConfigName("config")
		v.AddConfigPath(configPath)
		setDefaults(v)

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("failed to read config: %w", readErr)
				return
			}
		}

		v.SetEnvPrefix("HELPDESK")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		next := &Config{}
		if err = v.Unmarshal(next); err != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", err)
			return
		}
		cfg = next

		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			reloaded := &Config{}
			if reloadErr := v.Unmarshal(reloaded); reloadErr != nil {
				fmt.Printf("failed to reload config after %s: %v\n", e.Name, reloadErr)
				return
			}
			mu.Lock()
			cfg = reloaded
			mu.Unlock()
		})
	})
	return err
}

// LoadFromFile loads configuration from a specific file, without watching.
func LoadFromFile(configFile string) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	next := &Config{}
	if err := v.Unmarshal(next); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	mu.Lock()
	cfg = next
	mu.Unlock()
	return nil
}

// MustLoad loads configuration and panics on error.
func MustLoad(configPath string) {
	if err := Load(configPath); err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
}

// Get returns the current configuration.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("school.timezone", "Europe/London")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.use_tls", true)
	v.SetDefault("inbound.rejections_enabled", true)
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("ai.region", "eu-west-2")
	v.SetDefault("metrics.enabled", true)
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the configured timezone, falling back to UTC.
func (c *SchoolConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
