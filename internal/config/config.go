package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Predictor PredictorConfig
	Alerts    AlertsConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type StorageConfig struct {
	UploadDir   string `mapstructure:"upload_dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

type PredictorConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxFailures    int    `mapstructure:"max_failures"`
}

type AlertsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	SMTPUser string `mapstructure:"smtp_user"`
	SMTPPass string `mapstructure:"smtp_pass"`
	From     string `mapstructure:"from"`
}

// envOverrides carries secrets that must not live in the config file.
// Processed with the NEUROSHIELD_ prefix, e.g. NEUROSHIELD_DB_PASSWORD.
type envOverrides struct {
	DBPassword string `envconfig:"DB_PASSWORD"`
	JWTSecret  string `envconfig:"JWT_SECRET"`
	RedisURL   string `envconfig:"REDIS_URL"`
	SMTPPass   string `envconfig:"SMTP_PASS"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("neuroshield", &env); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}
	if env.DBPassword != "" {
		config.Database.Password = env.DBPassword
	}
	if env.JWTSecret != "" {
		config.JWT.Secret = env.JWTSecret
	}
	if env.RedisURL != "" {
		config.Redis.URL = env.RedisURL
	}
	if env.SMTPPass != "" {
		config.Alerts.SMTPPass = env.SMTPPass
	}

	return &config, nil
}

func (c *JWTConfig) Expiry() time.Duration {
	if c.ExpiryHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ExpiryHours) * time.Hour
}
