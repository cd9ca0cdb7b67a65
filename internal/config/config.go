// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AppName        string `mapstructure:"APP_NAME"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBURI  string `mapstructure:"DB_URI"`
	DBName string `mapstructure:"DB_NAME"`

	RedisURL        string `mapstructure:"REDIS_URL"`
	RedisTTLSeconds int    `mapstructure:"REDIS_TTL"`

	JWTSecret               string  `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret        string  `mapstructure:"JWT_REFRESH_SECRET"`
	JWTExpirySeconds        int     `mapstructure:"JWT_EXPIRY"`
	JWTRefreshExpirySeconds int     `mapstructure:"JWT_REFRESH_EXPIRY"`
	SaltRound               int     `mapstructure:"SALT_ROUND"`
	BcryptPepper            string  `mapstructure:"BCRYPT_PASSWORD"`
	CloudinaryName          string  `mapstructure:"CLOUDINARY_NAME"`
	CloudinaryAPIKey        string  `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret     string  `mapstructure:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder        string  `mapstructure:"CLOUDINARY_FOLDER"`
	ImageMaxUploadSizeMB    int     `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`
	TracingEnabled          bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter         string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint            string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio     float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional
	_ = viper.ReadInConfig()

	env := strings.ToLower(strings.TrimSpace(viper.GetString("APP_ENV")))
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.Env = strings.ToLower(strings.TrimSpace(config.Env))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_NAME", "quill")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("DB_URI", "mongodb://localhost:27017")
	viper.SetDefault("DB_NAME", "quill")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("REDIS_TTL", 3600)
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_REFRESH_SECRET", defaultJWTSecret+"-refresh")
	viper.SetDefault("JWT_EXPIRY", 1800)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 86400)
	viper.SetDefault("SALT_ROUND", 10)
	viper.SetDefault("BCRYPT_PASSWORD", "")
	viper.SetDefault("CLOUDINARY_NAME", "")
	viper.SetDefault("CLOUDINARY_API_KEY", "")
	viper.SetDefault("CLOUDINARY_API_SECRET", "")
	viper.SetDefault("CLOUDINARY_FOLDER", "quill")
	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// AccessTokenTTL is the lifetime of issued access tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWTExpirySeconds) * time.Second
}

// RefreshTokenTTL is the lifetime of issued refresh tokens.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.JWTRefreshExpirySeconds) * time.Second
}

// PostsCacheTTL is the expiry applied to cached post listings.
func (c *Config) PostsCacheTTL() time.Duration {
	return time.Duration(c.RedisTTLSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.DBURI == "" {
		return errors.New("DB_URI is required")
	}
	if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWTExpirySeconds <= 0 || c.JWTRefreshExpirySeconds <= 0 {
		return errors.New("JWT_EXPIRY and JWT_REFRESH_EXPIRY must be positive")
	}
	if c.SaltRound < 4 || c.SaltRound > 31 {
		return fmt.Errorf("SALT_ROUND must be between 4 and 31, got %d", c.SaltRound)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 || len(c.JWTRefreshSecret) < 32 {
			return errors.New("JWT secrets must be at least 32 characters in production")
		}
		if c.JWTSecret == c.JWTRefreshSecret {
			return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ in production")
		}
		if c.BcryptPepper == "" {
			return errors.New("BCRYPT_PASSWORD is required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
