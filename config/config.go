package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Gopher0727/GroupKeeper/internal/pkg/calendar"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	AutoDelete AutoDeleteConfig `mapstructure:"auto_delete"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Singleton  SingletonConfig  `mapstructure:"singleton"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
}

type BotConfig struct {
	Token           string        `mapstructure:"token"`
	OwnerID         int64         `mapstructure:"owner_id"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
	// Calendar names the calendar birthdays and anniversaries are matched in.
	Calendar        string        `mapstructure:"calendar"`
	TrialDays       int           `mapstructure:"trial_days"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	APIEndpoint     string        `mapstructure:"api_endpoint"`
}

// ServerConfig describes the operational HTTP listener (health, readiness, metrics).
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// ScheduleConfig holds the wall-clock trigger times of the daily sweeps,
// expressed as "HH:MM" in the process's local clock.
type ScheduleConfig struct {
	MorningAt string `mapstructure:"morning_at"`
	EveningAt string `mapstructure:"evening_at"`
	Workers   int    `mapstructure:"workers"`
}

type AutoDeleteConfig struct {
	DefaultDelay time.Duration `mapstructure:"default_delay"`
}

type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Window   time.Duration `mapstructure:"window"`
	FailOpen bool          `mapstructure:"fail_open"`
}

// SingletonConfig selects the backend of the process-wide instance lock:
// "postgres" (advisory lock) or "redis" (leased key).
type SingletonConfig struct {
	Backend  string        `mapstructure:"backend"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	MaxRetries int      `mapstructure:"max_retries"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.default_timezone", "Asia/Tehran")
	v.SetDefault("bot.calendar", "jalali")
	v.SetDefault("bot.trial_days", 7)
	v.SetDefault("bot.poll_timeout", 30*time.Second)
	v.SetDefault("bot.api_endpoint", "https://api.telegram.org")

	v.SetDefault("server.port", 9100)
	v.SetDefault("server.mode", "release")

	v.SetDefault("postgres.host", "127.0.0.1")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.max_open_conns", 20)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("schedule.morning_at", "09:00")
	v.SetDefault("schedule.evening_at", "22:00")
	v.SetDefault("schedule.workers", 1)

	v.SetDefault("auto_delete.default_delay", 60*time.Second)

	v.SetDefault("ratelimit.limit", 20)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.fail_open", true)

	v.SetDefault("singleton.backend", "postgres")
	v.SetDefault("singleton.lease_ttl", 30*time.Second)

	v.SetDefault("kafka.topic", "groupkeeper.billing")
	v.SetDefault("kafka.max_retries", 3)
}

// LoadConfig reads the TOML file at path and overlays GROUPKEEPER_* environment
// variables. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GROUPKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{"bot.token", "bot.owner_id", "postgres.user", "postgres.password", "postgres.dbname", "redis.password", "kafka.brokers"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings the process cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Bot.Token == "" {
		errs = append(errs, errors.New("bot.token is required"))
	}
	if c.Bot.OwnerID == 0 {
		errs = append(errs, errors.New("bot.owner_id is required"))
	}
	if c.Bot.TrialDays < 0 {
		errs = append(errs, errors.New("bot.trial_days must not be negative"))
	}
	if _, err := time.LoadLocation(c.Bot.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("bot.default_timezone: %w", err))
	}
	if _, err := calendar.ByName(c.Bot.Calendar); err != nil {
		errs = append(errs, fmt.Errorf("bot.calendar: %w", err))
	}
	if _, _, err := ParseClock(c.Schedule.MorningAt); err != nil {
		errs = append(errs, fmt.Errorf("schedule.morning_at: %w", err))
	}
	if _, _, err := ParseClock(c.Schedule.EveningAt); err != nil {
		errs = append(errs, fmt.Errorf("schedule.evening_at: %w", err))
	}
	switch c.Singleton.Backend {
	case "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("singleton.backend: unknown backend %q", c.Singleton.Backend))
	}
	return errors.Join(errs...)
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// DSN builds the PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", p.Host, p.Port, p.User, p.Password, p.DBName)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
