package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 SHOPINSIGHT_DATABASE_DSN
const EnvPrefix = "SHOPINSIGHT"

// ==================== 配置结构 ====================

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // development / production
}

// IsProduction 生产环境隐藏 500 错误详情
func (a AppConfig) IsProduction() bool { return a.Env == "production" }

// IsDevelopment 开发环境允许自动注册店铺
func (a AppConfig) IsDevelopment() bool { return a.Env == "development" }

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	LogLevel        string        `mapstructure:"log_level"` // silent / error / warn / info
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig URL 为空时使用进程内 KV
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

type AuthConfig struct {
	OTPTTL         time.Duration `mapstructure:"otp_ttl"`
	OTPMaxAttempts int           `mapstructure:"otp_max_attempts"`
}

// SMTPConfig Host 为空时邮件只写日志
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type ShopifyConfig struct {
	APIVersion      string        `mapstructure:"api_version"`
	APIKey          string        `mapstructure:"api_key"`
	APISecret       string        `mapstructure:"api_secret"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RatePerSec      float64       `mapstructure:"rate_per_sec"`
	Burst           int           `mapstructure:"burst"`
	VerifyOnConnect bool          `mapstructure:"verify_on_connect"`
	// DevStores 开发环境自动注册的店铺，格式 domain:token
	DevStores []string `mapstructure:"dev_stores"`
}

type SyncConfig struct {
	PageSize        int           `mapstructure:"page_size"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxPageFailures int           `mapstructure:"max_page_failures"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	Schedule        string        `mapstructure:"schedule"` // cron 表达式（含秒），空则不启用定时同步
}

type AnalyticsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ==================== 加载 ====================

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "shop-insight")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=shop_insight port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "")

	v.SetDefault("jwt.secret", "shop-insight-secret-change-in-production")
	v.SetDefault("jwt.issuer", "shop-insight")
	v.SetDefault("jwt.access_ttl", 2*time.Hour)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)

	v.SetDefault("auth.otp_ttl", 10*time.Minute)
	v.SetDefault("auth.otp_max_attempts", 5)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@shop-insight.local")

	v.SetDefault("shopify.api_version", "2024-01")
	v.SetDefault("shopify.api_key", "")
	v.SetDefault("shopify.api_secret", "")
	v.SetDefault("shopify.timeout", 30*time.Second)
	v.SetDefault("shopify.rate_per_sec", 2.0)
	v.SetDefault("shopify.burst", 4)
	v.SetDefault("shopify.verify_on_connect", false)
	v.SetDefault("shopify.dev_stores", []string{})

	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.batch_size", 10)
	v.SetDefault("sync.max_page_failures", 3)
	v.SetDefault("sync.workers", 2)
	v.SetDefault("sync.queue_size", 64)
	v.SetDefault("sync.job_timeout", 30*time.Minute)
	v.SetDefault("sync.cooldown", time.Minute)
	v.SetDefault("sync.schedule", "")

	v.SetDefault("analytics.cache_ttl", 5*time.Minute)
}

// Load 读取配置
// 优先级：环境变量 > 配置文件 > 默认值；启动前先尝试加载 .env
// path 为空时按 CONFIG_PATH 环境变量或 ./configs/config.yaml 查找
func Load(path string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Sync.PageSize <= 0 || c.Sync.PageSize > 250 {
		return fmt.Errorf("sync.page_size 必须在 1-250 之间: %d", c.Sync.PageSize)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size 必须大于 0")
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync.workers 必须大于 0")
	}
	if c.App.IsProduction() && c.JWT.Secret == "shop-insight-secret-change-in-production" {
		return fmt.Errorf("生产环境必须配置 jwt.secret")
	}
	return nil
}

// DevStore 开发环境预置店铺
type DevStore struct {
	Domain string
	Token  string
}

// ParseDevStores 解析 domain:token 列表，格式错误的条目被忽略
func (s ShopifyConfig) ParseDevStores() []DevStore {
	var out []DevStore
	for _, raw := range s.DevStores {
		for _, item := range strings.Split(raw, ",") {
			domain, token, ok := strings.Cut(strings.TrimSpace(item), ":")
			if !ok || domain == "" || token == "" {
				continue
			}
			out = append(out, DevStore{Domain: domain, Token: token})
		}
	}
	return out
}
