// Package config loads the gateway configuration with viper: configs/config.yml
// (or an explicit file), defaults for every key, and UPSGW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. UPSGW_NOTIFY_SMS_PASSWORD.
const EnvPrefix = "UPSGW"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Trap      TrapConfig      `mapstructure:"trap"`
	Devices   []DeviceConfig  `mapstructure:"devices"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Indicator IndicatorConfig `mapstructure:"indicator"`
	Audible   AudibleConfig   `mapstructure:"audible"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Journal   JournalConfig   `mapstructure:"journal"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Users      []UserConfig  `mapstructure:"users"`
}

type UserConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TrapConfig struct {
	Listen         string       `mapstructure:"listen"`
	AllowedSources []string     `mapstructure:"allowed_sources"`
	// Community, when set, must match the trap's community string.
	Community      string       `mapstructure:"community"`
	DefaultDevice  DeviceConfig `mapstructure:"default_device"`
	QueueSize      int          `mapstructure:"queue_size"`
}

// DeviceConfig names the equipment behind a source address.
type DeviceConfig struct {
	Address  string `mapstructure:"address"`
	Name     string `mapstructure:"name"`
	Location string `mapstructure:"location"`
}

type KnowledgeConfig struct {
	// Path to a YAML event table; empty uses the built-in table.
	Path string `mapstructure:"path"`
}

type IndicatorConfig struct {
	Driver        string         `mapstructure:"driver"`
	Channels      map[string]int `mapstructure:"channels"`
	Blink         bool           `mapstructure:"blink"`
	BlinkInterval time.Duration  `mapstructure:"blink_interval"`
	ActiveHigh    bool           `mapstructure:"active_high"`
	SysfsRoot     string         `mapstructure:"sysfs_root"`
}

type AudibleConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Backend      string        `mapstructure:"backend"`
	Command      []string      `mapstructure:"command"`
	BeepDuration time.Duration `mapstructure:"beep_duration"`
	Muted        bool          `mapstructure:"muted"`
	MuteFile     string        `mapstructure:"mute_file"`
}

type NotifyConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Email    EmailConfig   `mapstructure:"email"`
	SMS      SMSConfig     `mapstructure:"sms"`
}

type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Server     string   `mapstructure:"server"`
	Port       int      `mapstructure:"port"`
	UseTLS     bool     `mapstructure:"use_tls"`
	UseSSL     bool     `mapstructure:"use_ssl"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	FromName   string   `mapstructure:"from_name"`
	Recipients []string `mapstructure:"recipients"`
	// Cooldown overrides notify.cooldown for this channel when > 0.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type SMSConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	APIURL     string           `mapstructure:"api_url"`
	Username   string           `mapstructure:"username"`
	Password   string           `mapstructure:"password"`
	Type       int              `mapstructure:"type"`
	ReturnMode int              `mapstructure:"return_mode"`
	Recipients []string         `mapstructure:"recipients"`
	Schedule   []ScheduleConfig `mapstructure:"schedule"`
	Timezone   string           `mapstructure:"timezone"`
	Cooldown   time.Duration    `mapstructure:"cooldown"`
}

// ScheduleConfig is one time-of-day window, "HH:MM" bounds, end exclusive.
type ScheduleConfig struct {
	Start      string   `mapstructure:"start_time"`
	End        string   `mapstructure:"end_time"`
	Recipients []string `mapstructure:"recipients"`
}

type JournalConfig struct {
	MaxEvents int `mapstructure:"max_events"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("db.path", ":memory:")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("trap.listen", "0.0.0.0:162")
	v.SetDefault("trap.queue_size", 256)
	v.SetDefault("trap.community", "")
	v.SetDefault("trap.default_device.name", "UPS")
	v.SetDefault("trap.default_device.location", "Unknown Location")

	v.SetDefault("knowledge.path", "")

	v.SetDefault("indicator.driver", "log")
	v.SetDefault("indicator.channels", map[string]int{"critical": 17, "warning": 27, "info": 22})
	v.SetDefault("indicator.blink", true)
	v.SetDefault("indicator.blink_interval", 500*time.Millisecond)
	v.SetDefault("indicator.active_high", true)
	v.SetDefault("indicator.sysfs_root", "/sys/class/gpio")

	v.SetDefault("audible.enabled", true)
	v.SetDefault("audible.backend", "auto")
	v.SetDefault("audible.command", []string{"beep", "-f", "1000", "-l", "500"})
	v.SetDefault("audible.beep_duration", 500*time.Millisecond)
	v.SetDefault("audible.muted", false)
	v.SetDefault("audible.mute_file", "")

	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.cooldown", 300*time.Second)

	v.SetDefault("notify.email.enabled", false)
	v.SetDefault("notify.email.port", 25)
	v.SetDefault("notify.email.from_name", "UPS Monitor")
	v.SetDefault("notify.email.cooldown", 0)
	v.SetDefault("notify.email.server", "")
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.from", "")

	v.SetDefault("notify.sms.enabled", false)
	v.SetDefault("notify.sms.api_url", "")
	v.SetDefault("notify.sms.username", "")
	v.SetDefault("notify.sms.password", "")
	v.SetDefault("notify.sms.type", 1)
	v.SetDefault("notify.sms.return_mode", 1)
	v.SetDefault("notify.sms.timezone", "Local")
	v.SetDefault("notify.sms.cooldown", 0)

	v.SetDefault("journal.max_events", 5000)
}

// Load reads configuration from path, or from configs/config.yml when path is
// empty. A missing default file is not an error; defaults and env apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs") // configs/config.yml
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EmailCooldown is the effective email cooldown window.
func (c *Config) EmailCooldown() time.Duration {
	if c.Notify.Email.Cooldown > 0 {
		return c.Notify.Email.Cooldown
	}
	return c.Notify.Cooldown
}

// SMSCooldown is the effective SMS cooldown window.
func (c *Config) SMSCooldown() time.Duration {
	if c.Notify.SMS.Cooldown > 0 {
		return c.Notify.SMS.Cooldown
	}
	return c.Notify.Cooldown
}
