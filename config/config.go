package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr        string `yaml:"addr"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		RateLimitDB int    `yaml:"rate_limit_db"`
	} `yaml:"redis"`
	Worker struct {
		Addr string `yaml:"addr"`
	} `yaml:"worker"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		To       string `yaml:"to"`
	} `yaml:"smtp"`
	Reddit struct {
		Subreddits []string `yaml:"subreddits"`
		FetchLimit int      `yaml:"fetch_limit"`
		MinScore   int      `yaml:"min_score"`
		MinLength  int      `yaml:"min_length"`
	} `yaml:"reddit"`
	RateLimit struct {
		RedditPerMinute int `yaml:"reddit_per_minute"`
		LLMPerMinute    int `yaml:"llm_per_minute"`
		WindowSeconds   int `yaml:"window_seconds"`
		UploadsPerDay   int `yaml:"uploads_per_day"`
	} `yaml:"rate_limit"`
	Retry struct {
		MaxAttempts      int `yaml:"max_attempts"`
		BaseDelaySeconds int `yaml:"base_delay_seconds"`
		MaxDelaySeconds  int `yaml:"max_delay_seconds"`
	} `yaml:"retry"`
	Maintenance struct {
		RetentionDays  int    `yaml:"retention_days"`
		SweepBatchSize int    `yaml:"sweep_batch_size"`
		AcquireSpec    string `yaml:"acquire_spec"`
		PendingSpec    string `yaml:"pending_spec"`
		RetrySpec      string `yaml:"retry_spec"`
		DeadLetterSpec string `yaml:"dead_letter_spec"`
		CleanupSpec    string `yaml:"cleanup_spec"`
	} `yaml:"maintenance"`
	Pipeline struct {
		Concurrency      int `yaml:"concurrency"`
		StageTimeoutMins int `yaml:"stage_timeout_minutes"`
		UploadMaxWaitSec int `yaml:"upload_max_wait_seconds"`
	} `yaml:"pipeline"`
}

var AppConfig *Config

// InitConfig loads config/config.yaml, then lets environment variables
// override the secrets so the yaml file can be committed without them.
func InitConfig() {
	_ = godotenv.Load()

	f, err := os.Open(configPath())
	if err != nil {
		log.Fatalf("open config failed: %v", err)
	}
	defer f.Close()

	AppConfig = &Config{}
	if err := yaml.NewDecoder(f).Decode(AppConfig); err != nil {
		log.Fatalf("parse config failed: %v", err)
	}
	AppConfig.applyEnv()
	AppConfig.applyDefaults()
}

func configPath() string {
	if p := os.Getenv("TIKTOK_AUTO_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.SMTP.User = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("NOTIFICATION_EMAIL"); v != "" {
		c.SMTP.To = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.MinIO.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.MinIO.SecretKey = v
	}
	if v := os.Getenv("SUBREDDITS"); v != "" {
		c.Reddit.Subreddits = strings.Split(v, ",")
	}
	if v := os.Getenv("TIKTOK_DAILY_UPLOAD_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.UploadsPerDay = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Redis.RateLimitDB == 0 {
		c.Redis.RateLimitDB = 1
	}
	if c.RateLimit.RedditPerMinute == 0 {
		c.RateLimit.RedditPerMinute = 30
	}
	if c.RateLimit.LLMPerMinute == 0 {
		c.RateLimit.LLMPerMinute = 20
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.RateLimit.UploadsPerDay == 0 {
		c.RateLimit.UploadsPerDay = 10
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelaySeconds == 0 {
		c.Retry.BaseDelaySeconds = 30
	}
	if c.Retry.MaxDelaySeconds == 0 {
		c.Retry.MaxDelaySeconds = 600
	}
	if c.Maintenance.RetentionDays == 0 {
		c.Maintenance.RetentionDays = 7
	}
	if c.Maintenance.SweepBatchSize == 0 {
		c.Maintenance.SweepBatchSize = 100
	}
	if c.Maintenance.AcquireSpec == "" {
		c.Maintenance.AcquireSpec = "@every 2h"
	}
	if c.Maintenance.PendingSpec == "" {
		c.Maintenance.PendingSpec = "@every 15m"
	}
	if c.Maintenance.RetrySpec == "" {
		c.Maintenance.RetrySpec = "@every 1h"
	}
	if c.Maintenance.DeadLetterSpec == "" {
		c.Maintenance.DeadLetterSpec = "@every 30m"
	}
	if c.Maintenance.CleanupSpec == "" {
		c.Maintenance.CleanupSpec = "0 4 * * *"
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 2
	}
	if c.Pipeline.StageTimeoutMins == 0 {
		c.Pipeline.StageTimeoutMins = 10
	}
	if c.Pipeline.UploadMaxWaitSec == 0 {
		c.Pipeline.UploadMaxWaitSec = 300
	}
	if c.Reddit.FetchLimit == 0 {
		c.Reddit.FetchLimit = 50
	}
	if c.Reddit.MinLength == 0 {
		c.Reddit.MinLength = 500
	}
}

// RetryBaseDelay is Retry.BaseDelaySeconds as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelaySeconds) * time.Second
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelaySeconds) * time.Second
}

func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutMins) * time.Minute
}
