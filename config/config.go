package config

import (
	"log"

	"github.com/spf13/viper"
)

type WebServerConfig struct {
	Port            string `mapstructure:"port"`
	IP              string `mapstructure:"ip"`
	Scheme          string `mapstructure:"scheme"`
	BaseURL         string `mapstructure:"base_url"`
	Environment     string `mapstructure:"environment"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Address          string `mapstructure:"address"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	PoolSize         int    `mapstructure:"pool_size"`
	MinIdleConns     int    `mapstructure:"min_idle_conns"`
	OperationTimeout int    `mapstructure:"operation_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxSizeMB   int  `mapstructure:"max_size_mb"`
	TTLSeconds  int  `mapstructure:"ttl_seconds"`
	CounterSize int  `mapstructure:"counter_size"`
}

type EmbedConfig struct {
	AuthSecret        string `mapstructure:"auth_secret"`
	PasswordSeed      string `mapstructure:"password_seed"`
	PasswordSeedAlt   string `mapstructure:"password_seed_alt"`
	SessionTTLSeconds int    `mapstructure:"session_ttl_seconds"`
	MaxSlugLength     int    `mapstructure:"max_slug_length"`
}

type PreviewConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DomainSuffix string `mapstructure:"domain_suffix"`
}

type ProxyConfig struct {
	TimeoutSeconds      int `mapstructure:"timeout_seconds"`
	RetryTimeoutSeconds int `mapstructure:"retry_timeout_seconds"`
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"`
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type Config struct {
	WebServer WebServerConfig `mapstructure:"webserver"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Embed     EmbedConfig     `mapstructure:"embed"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// IsProduction reports whether the gateway runs with production semantics
// (secure cookies, mandatory signing secret, enforced admin key).
func (c Config) IsProduction() bool {
	return c.WebServer.Environment == "production"
}

// PasswordSeed returns the deterministic-password seed, falling back to the
// legacy API-key variable when the primary is unset.
func (c Config) PasswordSeed() string {
	if c.Embed.PasswordSeed != "" {
		return c.Embed.PasswordSeed
	}
	return c.Embed.PasswordSeedAlt
}

func LoadConfig() (Config, error) {
	var config Config

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Enable environment variable overrides
	viper.SetEnvPrefix("GATEWAY")
	viper.AutomaticEnv()

	// Operational secrets keep their historical env names so existing
	// deployments and the link-generator tooling keep working.
	viper.BindEnv("embed.auth_secret", "EMBED_AUTH_SECRET")
	viper.BindEnv("embed.password_seed", "KOSTNADSFRI_PASSWORD_SEED")
	viper.BindEnv("embed.password_seed_alt", "KOSTNADSFRI_API_KEY")
	viper.BindEnv("admin.api_key", "DB_API_KEY")
	viper.BindEnv("webserver.environment", "APP_ENV")
	viper.BindEnv("preview.enabled", "SLUGS")

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Error reading config file: %v", err)
			return config, err
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		log.Printf("Unable to decode into struct: %v", err)
		return config, err
	}

	return config, nil
}

func MustLoadConfig() Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return config
}

func setDefaults() {
	// WebServer defaults
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.ip", "127.0.0.1")
	viper.SetDefault("webserver.scheme", "http")
	viper.SetDefault("webserver.base_url", "")
	viper.SetDefault("webserver.environment", "development")
	viper.SetDefault("webserver.read_timeout", 15)
	viper.SetDefault("webserver.write_timeout", 60)
	viper.SetDefault("webserver.shutdown_timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.operation_timeout", 5)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size_mb", 50)
	viper.SetDefault("cache.ttl_seconds", 300)
	viper.SetDefault("cache.counter_size", 100000)

	// RateLimit defaults
	viper.SetDefault("ratelimit.requests_per_second", 10.0)
	viper.SetDefault("ratelimit.burst", 20)

	// Embed defaults
	viper.SetDefault("embed.auth_secret", "")
	viper.SetDefault("embed.session_ttl_seconds", 604800) // 7 days
	viper.SetDefault("embed.max_slug_length", 100)

	// Preview defaults: the whole preview registry is gated behind one flag
	// and stays off unless explicitly enabled.
	viper.SetDefault("preview.enabled", false)
	viper.SetDefault("preview.domain_suffix", ".vusercontent.net")

	// Proxy defaults
	viper.SetDefault("proxy.timeout_seconds", 30)
	viper.SetDefault("proxy.retry_timeout_seconds", 15)
	viper.SetDefault("proxy.probe_timeout_seconds", 5)
}
