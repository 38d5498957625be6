package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/model"
	"github.com/jwalitptl/farm-calendar/pkg/messaging/redis"
)

type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	Host           string        `mapstructure:"host" validate:"required_if=Driver postgres"`
	Port           int           `mapstructure:"port" validate:"required_if=Driver postgres"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name" validate:"required_if=Driver postgres"`
	SSLMode        string        `mapstructure:"sslmode"`
	SQLitePath     string        `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" validate:"gte=0"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Migrate        bool          `mapstructure:"migrate"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cron     string `mapstructure:"cron" validate:"required"`
	TimeZone string `mapstructure:"timezone" validate:"required"`
	Workers  int    `mapstructure:"workers" validate:"min=1,max=64"`
	// Windows holds the inclusive upper bound, in days, per event kind.
	Windows       map[string]int `mapstructure:"windows"`
	RecentSentTTL time.Duration  `mapstructure:"recent_sent_ttl"`
	RunOnStart    bool           `mapstructure:"run_on_start"`
}

// Location resolves the configured IANA time zone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// NotificationWindows merges the configured bounds over the defaults.
func (c SchedulerConfig) NotificationWindows() (calendar.Windows, error) {
	windows := calendar.DefaultWindows()
	for name, upper := range c.Windows {
		kind := model.EventKind(strings.ToLower(name))
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown event kind %q in scheduler.windows", name)
		}
		if upper < 0 {
			return nil, fmt.Errorf("window for %s must not be negative, got %d", kind, upper)
		}
		windows[kind] = calendar.Window{Upper: upper}
	}
	return windows, nil
}

type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Period   time.Duration `mapstructure:"period"`
	Interval time.Duration `mapstructure:"interval"`
}

// TwilioConfig is read from TWILIO_* environment variables.
type TwilioConfig struct {
	AccountSID string        `mapstructure:"account_sid" envconfig:"ACCOUNT_SID"`
	AuthToken  string        `mapstructure:"auth_token" envconfig:"AUTH_TOKEN"`
	FromNumber string        `mapstructure:"from_number" envconfig:"PHONE_NUMBER"`
	BaseURL    string        `mapstructure:"base_url" envconfig:"BASE_URL"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Burst      int           `mapstructure:"burst"`
}

func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// SMTPConfig is read from SMTP_* environment variables.
type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	Username string `mapstructure:"username" envconfig:"USERNAME"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	From     string `mapstructure:"from" envconfig:"FROM"`
}

func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

type DeliveryConfig struct {
	// SMSProvider selects the SMS transport: twilio, queue or log.
	SMSProvider string       `mapstructure:"sms_provider" validate:"oneof=twilio queue log"`
	QueueName   string       `mapstructure:"queue_name"`
	Twilio      TwilioConfig `mapstructure:"twilio"`
	SMTP        SMTPConfig   `mapstructure:"smtp"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxQueueLen  int64         `mapstructure:"max_queue_len" validate:"gte=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retention RetentionConfig `mapstructure:"retention"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"jwt"`
	RateLimit struct {
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		Burst             int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`
	Monitoring struct {
		MetricsPath string `mapstructure:"metrics_path"`
	} `mapstructure:"monitoring"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "farm_calendar")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "farm-calendar.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.connect_timeout", 30*time.Second)
	v.SetDefault("database.migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron", "0 8 * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.workers", 8)
	v.SetDefault("scheduler.recent_sent_ttl", 36*time.Hour)
	v.SetDefault("scheduler.run_on_start", false)
	for kind, w := range calendar.DefaultWindows() {
		v.SetDefault("scheduler.windows."+string(kind), w.Upper)
	}

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.period", 400*24*time.Hour)
	v.SetDefault("retention.interval", 24*time.Hour)

	v.SetDefault("delivery.sms_provider", "log")
	v.SetDefault("delivery.queue_name", "outbound_sms")
	v.SetDefault("delivery.twilio.base_url", "https://api.twilio.com")
	v.SetDefault("delivery.twilio.timeout", 10*time.Second)
	v.SetDefault("delivery.twilio.rate_per_sec", 10.0)
	v.SetDefault("delivery.twilio.burst", 5)
	v.SetDefault("delivery.smtp.port", 587)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_queue_len", 100000)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("rate_limit.requests_per_second", 0.2)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

// LoadConfig reads config.yml (or CONFIG_FILE), then the environment.
// A missing config file is not an error; every key has a default.
func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")           // current directory
		v.AddConfigPath("./config")    // config subdirectory
		v.AddConfigPath("/app")        // container root directory
		v.AddConfigPath("/app/config") // container config directory
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("TWILIO", &cfg.Delivery.Twilio); err != nil {
		return nil, fmt.Errorf("failed to read twilio env: %w", err)
	}
	if err := envconfig.Process("SMTP", &cfg.Delivery.SMTP); err != nil {
		return nil, fmt.Errorf("failed to read smtp env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}
	if _, err := c.Scheduler.NotificationWindows(); err != nil {
		return err
	}
	return nil
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxQueueLen:  c.MaxQueueLen,
		DialTimeout:  c.DialTimeout,
	}
}
