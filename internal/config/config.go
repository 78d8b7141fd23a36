package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Lock      LockConfig
	RateLimit RateLimitConfig
	SMS       SMSConfig
	Email     EmailConfig
	Reminders ReminderConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
}

type LockConfig struct {
	Key string
	TTL time.Duration
}

type RateLimitConfig struct {
	MaxPerMinute int
	Burst        int
}

type SMSConfig struct {
	WebhookURL    string
	Timeout       time.Duration
	DefaultRegion string
}

type EmailConfig struct {
	SendGridAPIKey string
	FromName       string
	FromEmail      string
}

type ReminderConfig struct {
	CronSpec string
}

func LoadAll() (*Config, error) {
	var errs []error

	postgresURL, err := requireEnv("POSTGRES_URL")
	if err != nil {
		errs = append(errs, err)
	}
	smsURL, err := requireEnv("SMS_WEBHOOK_URL")
	if err != nil {
		errs = append(errs, err)
	}

	interval, err := getEnvInt("SCHED_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, err)
	}
	batchSize, err := getEnvInt("SCHED_BATCH_SIZE", 200)
	if err != nil {
		errs = append(errs, err)
	}
	lockTTL, err := getEnvInt("LOCK_TTL_SECONDS", 55)
	if err != nil {
		errs = append(errs, err)
	}
	maxPerMinute, err := getEnvInt("RATE_MAX_PER_MINUTE", 60)
	if err != nil {
		errs = append(errs, err)
	}
	burst, err := getEnvInt("RATE_BURST", 10)
	if err != nil {
		errs = append(errs, err)
	}
	smsTimeout, err := getEnvInt("SMS_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		Redis: redisCfg,
		Scheduler: SchedulerConfig{
			Interval:  time.Duration(interval) * time.Second,
			BatchSize: batchSize,
		},
		Lock: LockConfig{
			Key: getEnv("LOCK_KEY", "cadence:leader"),
			TTL: time.Duration(lockTTL) * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxPerMinute: maxPerMinute,
			Burst:        burst,
		},
		SMS: SMSConfig{
			WebhookURL:    smsURL,
			Timeout:       time.Duration(smsTimeout) * time.Second,
			DefaultRegion: getEnv("SMS_DEFAULT_REGION", "US"),
		},
		Email: EmailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromName:       getEnv("EMAIL_FROM_NAME", "Outreach"),
			FromEmail:      getEnv("EMAIL_FROM", "no-reply@example.com"),
		},
		Reminders: ReminderConfig{
			CronSpec: getEnv("REMINDER_CRON", "@every 15m"),
		},
	}

	errs = append(errs, validate(cfg)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("SCHED_BATCH_SIZE must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Lock.TTL <= 0 {
		errs = append(errs, errors.New("LOCK_TTL_SECONDS must be > 0"))
	}
	if cfg.RateLimit.MaxPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_MAX_PER_MINUTE must be > 0"))
	}
	if cfg.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("RATE_BURST must be >= 0"))
	}
	if cfg.SMS.Timeout <= 0 {
		errs = append(errs, errors.New("SMS_TIMEOUT_SECONDS must be > 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return errors.Join(nonNil...)
}
