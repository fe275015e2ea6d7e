package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Taxonomy    TaxonomyConfig `mapstructure:"taxonomy"`
	Sources     SourcesConfig  `mapstructure:"sources"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TaxonomyConfig struct {
	Path string `mapstructure:"path"`
}

type SourcesConfig struct {
	Coolpc CoolpcConfig `mapstructure:"coolpc"`
	PChome PChomeConfig `mapstructure:"pchome"`
}

type CoolpcConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

type PChomeConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	MaxPages  int    `mapstructure:"max_pages"`
	RateLimit string `mapstructure:"rate_limit"`
	Timeout   string `mapstructure:"timeout"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if config.Taxonomy.Path == "" {
		return nil, errors.New("taxonomy.path is required")
	}
	if err := validateDuration("sources.coolpc.timeout", config.Sources.Coolpc.Timeout); err != nil {
		return nil, err
	}
	if err := validateDuration("sources.pchome.timeout", config.Sources.PChome.Timeout); err != nil {
		return nil, err
	}
	if err := validateDuration("sources.pchome.rate_limit", config.Sources.PChome.RateLimit); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateDuration(key, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return errors.New("invalid duration for " + key + ": " + value)
	}
	return nil
}

// Duration parses a duration string from the config, falling back to the
// given default when the value is empty or malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "price_index")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Taxonomy
	viper.SetDefault("taxonomy.path", "./configs/taxonomy.json")

	// Sources
	viper.SetDefault("sources.coolpc.enabled", true)
	viper.SetDefault("sources.coolpc.url", "https://www.coolpc.com.tw/evaluate.php")
	viper.SetDefault("sources.coolpc.timeout", "30s")
	viper.SetDefault("sources.pchome.enabled", true)
	viper.SetDefault("sources.pchome.base_url", "https://ecshweb.pchome.com.tw/search/v3.3/all/results")
	viper.SetDefault("sources.pchome.max_pages", 2)
	viper.SetDefault("sources.pchome.rate_limit", "300ms")
	viper.SetDefault("sources.pchome.timeout", "10s")
}
