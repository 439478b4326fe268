package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"domobot/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
	Messages   MessagesConfig   `yaml:"messages"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Bot        BotConfig        `yaml:"bot"`
	Admins     []int64          `yaml:"admins"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CleanupConfig tunes the deletion poller. Intervals are in seconds.
// RetryBudget is a pointer so an explicit zero survives defaulting.
type CleanupConfig struct {
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	BatchSize           int  `yaml:"batch_size"`
	RetryBudget         *int `yaml:"retry_budget"`
	RetryDelaySeconds   int  `yaml:"retry_delay_seconds"`
	StaleMaxAgeHours    int  `yaml:"stale_max_age_hours"`
	PurgeIntervalHours  int  `yaml:"purge_interval_hours"`
}

func (c CleanupConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c CleanupConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c CleanupConfig) StaleMaxAge() time.Duration {
	return time.Duration(c.StaleMaxAgeHours) * time.Hour
}

func (c CleanupConfig) PurgeInterval() time.Duration {
	return time.Duration(c.PurgeIntervalHours) * time.Hour
}

type MessagesConfig struct {
	AutoDeleteSeconds     int  `yaml:"auto_delete_seconds"`
	ErrorDeleteSeconds    int  `yaml:"error_delete_seconds"`
	UserCommandSeconds    int  `yaml:"user_command_seconds"`
	DeleteUserCommands    bool `yaml:"delete_user_commands"`
}

func (c MessagesConfig) AutoDeleteDelay() time.Duration {
	return time.Duration(c.AutoDeleteSeconds) * time.Second
}

func (c MessagesConfig) ErrorDeleteDelay() time.Duration {
	return time.Duration(c.ErrorDeleteSeconds) * time.Second
}

func (c MessagesConfig) UserCommandDelay() time.Duration {
	return time.Duration(c.UserCommandSeconds) * time.Second
}

type SessionsConfig struct {
	MaxAgeSeconds int `yaml:"max_age_seconds"`
	Limit         int `yaml:"limit"`
}

func (c SessionsConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type BotConfig struct {
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Cleanup.RetryBudget != nil && *c.Cleanup.RetryBudget < 0 {
		return errors.New("cleanup retry_budget cannot be negative")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Cleanup.PollIntervalSeconds == 0 {
		c.Cleanup.PollIntervalSeconds = int(models.DefaultPollInterval / time.Second)
	}
	if c.Cleanup.BatchSize == 0 {
		c.Cleanup.BatchSize = models.DefaultBatchSize
	}
	if c.Cleanup.RetryBudget == nil {
		budget := models.DefaultRetryBudget
		c.Cleanup.RetryBudget = &budget
	}
	if c.Cleanup.RetryDelaySeconds == 0 {
		c.Cleanup.RetryDelaySeconds = int(models.DefaultRetryDelay / time.Second)
	}
	if c.Cleanup.StaleMaxAgeHours == 0 {
		c.Cleanup.StaleMaxAgeHours = int(models.DefaultStaleMaxAge / time.Hour)
	}
	if c.Cleanup.PurgeIntervalHours == 0 {
		c.Cleanup.PurgeIntervalHours = int(models.DefaultPurgeInterval / time.Hour)
	}

	if c.Messages.AutoDeleteSeconds == 0 {
		c.Messages.AutoDeleteSeconds = int(models.DefaultAutoDeleteDelay / time.Second)
	}
	if c.Messages.ErrorDeleteSeconds == 0 {
		c.Messages.ErrorDeleteSeconds = int(models.DefaultErrorDeleteDelay / time.Second)
	}
	if c.Messages.UserCommandSeconds == 0 {
		c.Messages.UserCommandSeconds = int(models.DefaultUserCommandDelay / time.Second)
	}

	if c.Sessions.MaxAgeSeconds == 0 {
		c.Sessions.MaxAgeSeconds = int(models.DefaultSessionMaxAge / time.Second)
	}
	if c.Sessions.Limit == 0 {
		c.Sessions.Limit = models.DefaultSessionLimit
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}
}
