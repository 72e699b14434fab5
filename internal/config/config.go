package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Neo4j          Neo4jConfig          `mapstructure:"neo4j"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Interactions   InteractionsConfig   `mapstructure:"interactions"`
	Audit          AuditConfig          `mapstructure:"audit"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds the two Redis roles: hot for rate limiting, warm for the
// reference item cache. An empty URL disables the role.
type RedisConfig struct {
	Hot  RedisInstanceConfig `mapstructure:"hot"`
	Warm RedisInstanceConfig `mapstructure:"warm"`
}

type RedisInstanceConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Neo4jConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		Impressions string `mapstructure:"impressions"`
	} `mapstructure:"topics"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type AuthConfig struct {
	JWTSecret string          `mapstructure:"jwt_secret"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Default int           `mapstructure:"default"`
	Window  time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RecommendationConfig struct {
	DefaultLimit   int                `mapstructure:"default_limit"`
	MaxLimit       int                `mapstructure:"max_limit"`
	FetchTimeout   time.Duration      `mapstructure:"fetch_timeout"`
	DecayRate      float64            `mapstructure:"decay_rate"`
	PoolMultiplier int                `mapstructure:"pool_multiplier"`
	TrendingWindow int                `mapstructure:"trending_window_days"`
	Popularity     PopularityConfig   `mapstructure:"popularity"`
	ContentBased   ContentBasedConfig `mapstructure:"content_based"`
	Behavioral     BehavioralConfig   `mapstructure:"behavioral"`
	Profile        ProfileConfig      `mapstructure:"profile"`
	Blend          BlendConfig        `mapstructure:"blend"`
	Caching        CachingConfig      `mapstructure:"caching"`
}

type PopularityConfig struct {
	ViewWeight    float64 `mapstructure:"view_weight"`
	LikeWeight    float64 `mapstructure:"like_weight"`
	CommentWeight float64 `mapstructure:"comment_weight"`
	ViewRef       float64 `mapstructure:"view_ref"`
	LikeRef       float64 `mapstructure:"like_ref"`
	CommentRef    float64 `mapstructure:"comment_ref"`
}

type ContentBasedConfig struct {
	TagWeight        float64 `mapstructure:"tag_weight"`
	CategoryWeight   float64 `mapstructure:"category_weight"`
	PopularityWeight float64 `mapstructure:"popularity_weight"`
}

type BehavioralConfig struct {
	TagWeight        float64 `mapstructure:"tag_weight"`
	CategoryWeight   float64 `mapstructure:"category_weight"`
	PopularityWeight float64 `mapstructure:"popularity_weight"`
}

type ProfileConfig struct {
	WindowDays    int `mapstructure:"window_days"`
	MaxViews      int `mapstructure:"max_views"`
	MaxLikes      int `mapstructure:"max_likes"`
	MaxFavorites  int `mapstructure:"max_favorites"`
	TopTags       int `mapstructure:"top_tags"`
	TopCategories int `mapstructure:"top_categories"`
}

type BlendConfig struct {
	ContentBased float64 `mapstructure:"content_based"`
	Behavioral   float64 `mapstructure:"behavioral"`
	Trending     float64 `mapstructure:"trending"`
}

type CachingConfig struct {
	ItemTTL time.Duration `mapstructure:"item_ttl"`
}

type InteractionsConfig struct {
	Backend string `mapstructure:"backend"`
}

type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Sink          string        `mapstructure:"sink"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.hot.max_retries", 3)
	viper.SetDefault("redis.hot.pool_size", 10)
	viper.SetDefault("redis.hot.timeout", "5s")
	viper.SetDefault("redis.warm.max_retries", 3)
	viper.SetDefault("redis.warm.pool_size", 5)
	viper.SetDefault("redis.warm.timeout", "10s")

	// Neo4j defaults
	viper.SetDefault("neo4j.database", "neo4j")

	// Kafka defaults
	viper.SetDefault("kafka.topics.impressions", "recommendation-impressions")
	viper.SetDefault("kafka.batch_timeout", "10ms")

	// Auth defaults
	viper.SetDefault("auth.rate_limit.enabled", true)
	viper.SetDefault("auth.rate_limit.default", 1000)
	viper.SetDefault("auth.rate_limit.window", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Recommendation defaults
	viper.SetDefault("recommendation.default_limit", 10)
	viper.SetDefault("recommendation.max_limit", 20)
	viper.SetDefault("recommendation.fetch_timeout", "1500ms")
	viper.SetDefault("recommendation.decay_rate", 0.1)
	viper.SetDefault("recommendation.pool_multiplier", 3)
	viper.SetDefault("recommendation.trending_window_days", 7)

	viper.SetDefault("recommendation.popularity.view_weight", 0.5)
	viper.SetDefault("recommendation.popularity.like_weight", 0.3)
	viper.SetDefault("recommendation.popularity.comment_weight", 0.2)
	viper.SetDefault("recommendation.popularity.view_ref", 10000.0)
	viper.SetDefault("recommendation.popularity.like_ref", 1000.0)
	viper.SetDefault("recommendation.popularity.comment_ref", 100.0)

	viper.SetDefault("recommendation.content_based.tag_weight", 0.6)
	viper.SetDefault("recommendation.content_based.category_weight", 0.3)
	viper.SetDefault("recommendation.content_based.popularity_weight", 0.1)

	viper.SetDefault("recommendation.behavioral.tag_weight", 0.1)
	viper.SetDefault("recommendation.behavioral.category_weight", 0.15)
	viper.SetDefault("recommendation.behavioral.popularity_weight", 0.2)

	viper.SetDefault("recommendation.profile.window_days", 30)
	viper.SetDefault("recommendation.profile.max_views", 50)
	viper.SetDefault("recommendation.profile.max_likes", 20)
	viper.SetDefault("recommendation.profile.max_favorites", 20)
	viper.SetDefault("recommendation.profile.top_tags", 5)
	viper.SetDefault("recommendation.profile.top_categories", 3)

	viper.SetDefault("recommendation.blend.content_based", 1.0)
	viper.SetDefault("recommendation.blend.behavioral", 1.0)
	viper.SetDefault("recommendation.blend.trending", 0.6)

	viper.SetDefault("recommendation.caching.item_ttl", "30s")

	// Interaction source
	viper.SetDefault("interactions.backend", "postgres")

	// Audit defaults
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.sink", "postgres")
	viper.SetDefault("audit.buffer_size", 1000)
	viper.SetDefault("audit.batch_size", 100)
	viper.SetDefault("audit.flush_interval", "5s")
	viper.SetDefault("audit.write_timeout", "5s")
	viper.SetDefault("audit.breaker.max_requests", 1)
	viper.SetDefault("audit.breaker.interval", "1m")
	viper.SetDefault("audit.breaker.timeout", "30s")
	viper.SetDefault("audit.breaker.consecutive_failures", 5)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
