package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service" json:"service"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Airbnb   AirbnbConfig   `yaml:"airbnb" json:"airbnb"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

type PostgresConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	Database               string `yaml:"database" json:"database"`
	MaxConnections         int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// AirbnbConfig 上游 API 配置
type AirbnbConfig struct {
	BaseURL          string `yaml:"base_url" json:"base_url"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms" json:"request_timeout_ms"`
	MaxRetries       int    `yaml:"max_retries" json:"max_retries"`
	RetryBaseMs      int    `yaml:"retry_base_ms" json:"retry_base_ms"`
}

// SyncConfig 同步窗口与调度配置
type SyncConfig struct {
	LookbackWeeks      int  `yaml:"lookback_weeks" json:"lookback_weeks"`
	LookaheadWeeks     int  `yaml:"lookahead_weeks" json:"lookahead_weeks"`
	MaxLookbackDays    int  `yaml:"max_lookback_days" json:"max_lookback_days"`
	CronHour           int  `yaml:"cron_hour" json:"cron_hour"`
	CronMinute         int  `yaml:"cron_minute" json:"cron_minute"`
	ListingConcurrency int  `yaml:"listing_concurrency" json:"listing_concurrency"`
	LockTTLMinutes     int  `yaml:"lock_ttl_minutes" json:"lock_ttl_minutes"`
	RunTimeoutMinutes  int  `yaml:"run_timeout_minutes" json:"run_timeout_minutes"`
	RunRetentionDays   int  `yaml:"run_retention_days" json:"run_retention_days"`
	StartupSync        bool `yaml:"startup_sync" json:"startup_sync"`
	DryRun             bool `yaml:"dry_run" json:"dry_run"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	configPath := getConfigPath()
	data, err := os.ReadFile(configPath)
	if err == nil {
		// 先做环境变量替换再解析
		content := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getConfigPath 获取配置文件路径
func getConfigPath() string {
	// 1. 环境变量
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	// 2. 当前目录
	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}

	// 3. 可执行文件目录
	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), "config", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "config/config.yaml"
}

// applyDefaults 应用默认配置
func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "airbnb-sync"
	}
	if cfg.Service.HTTPPort == 0 {
		cfg.Service.HTTPPort = 8080
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	// Postgres defaults
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.User == "" {
		cfg.Postgres.User = "airbnb"
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = "airbnb_sync"
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 10
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}
	if cfg.Postgres.ConnMaxLifetimeMinutes == 0 {
		cfg.Postgres.ConnMaxLifetimeMinutes = 30
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 20
	}

	// Airbnb defaults
	if cfg.Airbnb.BaseURL == "" {
		cfg.Airbnb.BaseURL = "https://www.airbnb.com"
	}
	if cfg.Airbnb.RequestTimeoutMs == 0 {
		cfg.Airbnb.RequestTimeoutMs = 10000
	}
	if cfg.Airbnb.MaxRetries == 0 {
		cfg.Airbnb.MaxRetries = 5
	}
	if cfg.Airbnb.RetryBaseMs == 0 {
		cfg.Airbnb.RetryBaseMs = 500
	}

	// Sync defaults
	if cfg.Sync.LookbackWeeks == 0 {
		cfg.Sync.LookbackWeeks = 25
	}
	if cfg.Sync.LookaheadWeeks == 0 {
		cfg.Sync.LookaheadWeeks = 5
	}
	if cfg.Sync.MaxLookbackDays == 0 {
		cfg.Sync.MaxLookbackDays = 180
	}
	if cfg.Sync.CronHour == 0 && cfg.Sync.CronMinute == 0 {
		cfg.Sync.CronHour = 5 // 每日 05:00 UTC
	}
	if cfg.Sync.ListingConcurrency == 0 {
		cfg.Sync.ListingConcurrency = 1
	}
	if cfg.Sync.LockTTLMinutes == 0 {
		cfg.Sync.LockTTLMinutes = 45
	}
	if cfg.Sync.RunTimeoutMinutes == 0 {
		cfg.Sync.RunTimeoutMinutes = 40
	}
	if cfg.Sync.RunRetentionDays == 0 {
		cfg.Sync.RunRetentionDays = 90
	}

	// Log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// applyEnvOverrides 从环境变量覆盖配置
func applyEnvOverrides(cfg *Config) {
	// Service
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.Service.Name = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Service.HTTPPort = port
		}
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Service.Env = v
	}

	// Postgres
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Sync
	if v := os.Getenv("LOOKBACK_WEEKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.LookbackWeeks = n
		}
	}
	if v := os.Getenv("LOOKAHEAD_WEEKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.LookaheadWeeks = n
		}
	}
	if v := os.Getenv("SYNC_CRON_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.CronHour = n
		}
	}
	if v := os.Getenv("SYNC_CRON_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.CronMinute = n
		}
	}
	if v := os.Getenv("SYNC_DRY_RUN"); v != "" {
		cfg.Sync.DryRun = v == "1" || v == "true" || v == "yes"
	}

	// Log
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
