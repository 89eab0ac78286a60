// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 行情服务配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 访问控制配置
	Auth AuthConfig `mapstructure:"auth"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 行情聚合配置（按资产类别）
	Market MarketConfig `mapstructure:"market"`
	// 汇率配置
	FX FXConfig `mapstructure:"fx"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// AuthConfig 访问控制配置
type AuthConfig struct {
	// API Key，为空则关闭鉴权
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 主机地址
	Host string `mapstructure:"host"`
	// 端口
	Port int `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 快照镜像 TTL（秒）
	SnapshotTTL int `mapstructure:"snapshot_ttl"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// Consumer Group ID
	GroupID string `mapstructure:"group_id"`
	// 行情推送主题（入站）
	QuoteTopic string `mapstructure:"quote_topic"`
	// 价格更新主题（出站）
	PriceUpdatedTopic string `mapstructure:"price_updated_topic"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	// 日志级别
	Level string `mapstructure:"level"`
	// 输出格式：json, text
	Format string `mapstructure:"format"`
	// 输出目标：stdout, file
	Output string `mapstructure:"output"`
	// 文件路径
	FilePath string `mapstructure:"file_path"`
	// 最大文件大小（MB）
	MaxSize int `mapstructure:"max_size"`
	// 最大备份文件数
	MaxBackups int `mapstructure:"max_backups"`
	// 最大保留天数
	MaxAge int `mapstructure:"max_age"`
	// 是否压缩
	Compress bool `mapstructure:"compress"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// 每秒允许请求数
	QPS int `mapstructure:"qps"`
	// 突发容量
	Burst int `mapstructure:"burst"`
}

// MarketConfig 行情聚合配置
type MarketConfig struct {
	// 台股配置
	TwEquity AssetClassConfig `mapstructure:"tw_equity"`
	// 美股配置
	UsEquity AssetClassConfig `mapstructure:"us_equity"`
	// 期货配置
	Future AssetClassConfig `mapstructure:"future"`
	// 列表查询并发上限
	ListConcurrency int `mapstructure:"list_concurrency"`
}

// AssetClassConfig 单一资产类别的刷新策略配置
type AssetClassConfig struct {
	// 快照新鲜度窗口（秒）
	FreshnessWindow int `mapstructure:"freshness_window"`
	// 上游拉取超时（秒）
	FetchTimeout int `mapstructure:"fetch_timeout"`
	// 交易日历名称：twse, nyse, taifex
	Calendar string `mapstructure:"calendar"`
	// 预置关注列表
	Watchlist []string `mapstructure:"watchlist"`
	// 上游端点覆盖，为空使用内置默认
	Endpoint string `mapstructure:"endpoint"`
	// 上游每秒请求上限
	UpstreamQPS float64 `mapstructure:"upstream_qps"`
}

// FXConfig 汇率配置
type FXConfig struct {
	// 汇率接口端点
	Endpoint string `mapstructure:"endpoint"`
	// 汇率缓存时长（秒）
	CacheTTL int `mapstructure:"cache_ttl"`
}

// FreshnessWindowDuration 新鲜度窗口时长
func (c AssetClassConfig) FreshnessWindowDuration() time.Duration {
	return time.Duration(c.FreshnessWindow) * time.Second
}

// FetchTimeoutDuration 拉取超时时长
func (c AssetClassConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 设置环境变量前缀
	v.SetEnvPrefix("APP")
	// 自动绑定环境变量（使用 _ 替代 .）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	for name, cls := range map[string]AssetClassConfig{
		"tw_equity": c.Market.TwEquity,
		"us_equity": c.Market.UsEquity,
		"future":    c.Market.Future,
	} {
		if cls.FreshnessWindow <= 0 {
			return fmt.Errorf("market.%s.freshness_window must be positive", name)
		}
		if cls.FetchTimeout <= 0 {
			return fmt.Errorf("market.%s.fetch_timeout must be positive", name)
		}
		if cls.Calendar == "" {
			return fmt.Errorf("market.%s.calendar is required", name)
		}
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("redis.snapshot_ttl", 86400)

	v.SetDefault("kafka.group_id", "marketdata-group")
	v.SetDefault("kafka.quote_topic", "market.price")
	v.SetDefault("kafka.price_updated_topic", "market.price.updated")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/marketdata.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.qps", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("market.list_concurrency", 8)
	v.SetDefault("market.tw_equity.freshness_window", 60)
	v.SetDefault("market.tw_equity.fetch_timeout", 5)
	v.SetDefault("market.tw_equity.calendar", "twse")
	v.SetDefault("market.tw_equity.upstream_qps", 5.0)
	v.SetDefault("market.us_equity.freshness_window", 60)
	v.SetDefault("market.us_equity.fetch_timeout", 5)
	v.SetDefault("market.us_equity.calendar", "nyse")
	v.SetDefault("market.us_equity.upstream_qps", 5.0)
	v.SetDefault("market.future.freshness_window", 30)
	v.SetDefault("market.future.fetch_timeout", 5)
	v.SetDefault("market.future.calendar", "taifex")
	v.SetDefault("market.future.upstream_qps", 5.0)

	v.SetDefault("fx.endpoint", "https://open.er-api.com/v6/latest/USD")
	v.SetDefault("fx.cache_ttl", 3600)
}
