package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	Mailer   MailerConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" envconfig:"DB_HOST"`
	Port         int    `mapstructure:"port" envconfig:"DB_PORT"`
	User         string `mapstructure:"user" envconfig:"DB_USER"`
	Password     string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name         string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode      string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret             string `mapstructure:"secret" envconfig:"JWT_SECRET"`
	RefreshSecret      string `mapstructure:"refresh_secret" envconfig:"JWT_REFRESH_SECRET"`
	ExpiryHours        int    `mapstructure:"expiry_hours"`
	RefreshExpiryHours int    `mapstructure:"refresh_expiry_hours"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
}

// MailerConfig tunes the campaign dispatch pipeline. BatchSize
// recipients go out per delivery task, tasks are staggered BatchDelay
// apart, and the completion check runs CompletionDelay after the last
// scheduled batch.
type MailerConfig struct {
	SiteURL         string        `mapstructure:"site_url" envconfig:"SITE_URL"`
	TokenSecret     string        `mapstructure:"token_secret" envconfig:"UNSUBSCRIBE_TOKEN_SECRET"`
	DefaultFrom     string        `mapstructure:"default_from"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchDelay      time.Duration `mapstructure:"batch_delay"`
	CompletionDelay time.Duration `mapstructure:"completion_delay"`
	InsertBatchSize int           `mapstructure:"insert_batch_size"`
}

type WorkerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	ResumeSweep   time.Duration `mapstructure:"resume_sweep"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment variables override file values for deploy targets
	// that only carry env configuration.
	for _, section := range []interface{}{
		&config.Database, &config.Redis, &config.JWT, &config.SMTP, &config.Mailer,
	} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to process env overrides: %w", err)
		}
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Mailer.BatchSize <= 0 {
		c.Mailer.BatchSize = 60
	}
	if c.Mailer.BatchDelay <= 0 {
		c.Mailer.BatchDelay = 5 * time.Second
	}
	if c.Mailer.CompletionDelay <= 0 {
		c.Mailer.CompletionDelay = 60 * time.Second
	}
	if c.Mailer.InsertBatchSize <= 0 {
		c.Mailer.InsertBatchSize = 1000
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = time.Second
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.RetryAttempts <= 0 {
		c.Worker.RetryAttempts = 3
	}
	if c.Worker.RetryDelay <= 0 {
		c.Worker.RetryDelay = 5 * time.Second
	}
	if c.Worker.ResumeSweep <= 0 {
		c.Worker.ResumeSweep = time.Hour
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
}
