package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Trending TrendingConfig `mapstructure:"trending"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	AdminToken      string `mapstructure:"admin_token"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// TrendingConfig holds the scoring and caching policy. The decay shape and
// comparison weight are policy parameters, not derived values; the defaults
// match the tuning the rankings were launched with.
type TrendingConfig struct {
	DecayStep        float64       `mapstructure:"decay_step"`
	DecayFloor       float64       `mapstructure:"decay_floor"`
	ComparisonWeight float64       `mapstructure:"comparison_weight"`
	WindowHours      int           `mapstructure:"window_hours"`
	BucketRetention  time.Duration `mapstructure:"bucket_retention"`
	OverfetchFactor  int           `mapstructure:"overfetch_factor"`
	CategoryTopN     int           `mapstructure:"category_top_n"`

	TrendingTTL    time.Duration `mapstructure:"trending_ttl"`
	ComparisonsTTL time.Duration `mapstructure:"comparisons_ttl"`
	ByCategoryTTL  time.Duration `mapstructure:"by_category_ttl"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	TrackRateLimit int    `mapstructure:"track_rate_limit"` // requests per second per client IP
	TrackRateBurst int    `mapstructure:"track_rate_burst"`
	WarmCron       string `mapstructure:"warm_cron"`
}

type LoggerConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	AddCaller bool   `mapstructure:"add_caller"`
}

func Load(serviceName string) (*Config, error) {
	viper.SetConfigName(serviceName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/trendflow")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("TRENDFLOW")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env vars cover it
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.shutdown_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "trendflow")
	viper.SetDefault("database.password", "trendflow123")
	viper.SetDefault("database.name", "trendflow")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("trending.decay_step", 0.02)
	viper.SetDefault("trending.decay_floor", 0.1)
	viper.SetDefault("trending.comparison_weight", 3.0)
	viper.SetDefault("trending.window_hours", 24)
	viper.SetDefault("trending.bucket_retention", 7*24*time.Hour)
	viper.SetDefault("trending.overfetch_factor", 2)
	viper.SetDefault("trending.category_top_n", 5)
	viper.SetDefault("trending.trending_ttl", time.Hour)
	viper.SetDefault("trending.comparisons_ttl", 30*time.Minute)
	viper.SetDefault("trending.by_category_ttl", 2*time.Hour)
	viper.SetDefault("trending.read_timeout", 2*time.Second)
	viper.SetDefault("trending.write_timeout", time.Second)
	viper.SetDefault("trending.track_rate_limit", 20)
	viper.SetDefault("trending.track_rate_burst", 40)
	viper.SetDefault("trending.warm_cron", "45 * * * *")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
	viper.SetDefault("logger.add_caller", true)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
