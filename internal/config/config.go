// Package config 提供应用配置的加载与校验。
// 配置来源为环境变量（支持 .env 文件），并在加载时填充默认值。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 应用基础配置
type AppConfig struct {
	Name            string
	Version         string
	Env             string // dev, test, prod
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string // debug, info, warn, error
	Encoding string // json, console
}

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enabled bool
	Type    string // redis, memory
	TTL     time.Duration
}

// MQConfig 消息队列配置（购物车变更通知通道）
type MQConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	VHost    string
}

// JWTConfig JWT令牌配置
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// AssetsConfig 商品图片等静态资源存储配置
type AssetsConfig struct {
	Dir     string // 本地存储目录
	BaseURL string // 对外可访问的URL前缀
}

// MigrationsConfig 数据库迁移配置
type MigrationsConfig struct {
	Dir string
}

// Config 聚合所有配置项
type Config struct {
	App        AppConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	MQ         MQConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Assets     AssetsConfig
	Migrations MigrationsConfig
}

// Load 从环境变量加载配置。
// 若存在 .env 文件则先行加载（不覆盖已设置的环境变量）。
func Load() (*Config, error) {
	// .env 缺失不是错误，线上环境通常直接注入环境变量
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "commerce-e"),
			Version:         getEnv("APP_VERSION", "dev"),
			Env:             getEnv("APP_ENV", "dev"),
			Port:            getEnvInt("APP_PORT", 8080),
			RequestTimeout:  getEnvDuration("APP_REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "commerce"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    getEnv("CACHE_TYPE", "redis"),
			TTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		MQ: MQConfig{
			Enabled:  getEnvBool("MQ_ENABLED", false),
			Host:     getEnv("MQ_HOST", "localhost"),
			Port:     getEnvInt("MQ_PORT", 5672),
			Username: getEnv("MQ_USERNAME", "guest"),
			Password: getEnv("MQ_PASSWORD", "guest"),
			VHost:    getEnv("MQ_VHOST", "/"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID", "X-Idempotency-Key"}),
		},
		Assets: AssetsConfig{
			Dir:     getEnv("ASSETS_DIR", "./uploads"),
			BaseURL: getEnv("ASSETS_BASE_URL", "/static"),
		},
		Migrations: MigrationsConfig{
			Dir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 校验配置的合法性
func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app port: %d", c.App.Port)
	}

	switch c.App.Env {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("invalid app env: %s", c.App.Env)
	}

	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", c.Log.Encoding)
	}

	// 生产环境必须显式配置JWT密钥
	if c.JWT.Secret == "" {
		if c.App.Env == "prod" {
			return fmt.Errorf("JWT_SECRET is required in prod")
		}
		c.JWT.Secret = "dev-only-secret"
	}

	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "redis", "memory":
		default:
			return fmt.Errorf("invalid cache type: %s", c.Cache.Type)
		}
	}

	return nil
}

// getEnv 读取字符串环境变量，空值时返回默认值
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt 读取整型环境变量
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnvBool 读取布尔环境变量
func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvDuration 读取时长环境变量（如 "10s"、"5m"）
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getEnvList 读取逗号分隔的列表环境变量
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
