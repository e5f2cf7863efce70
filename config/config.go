package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Moderation   ModerationConfig   `yaml:"moderation"`
	Notification NotificationConfig `yaml:"notification"`
	Cloudinary   CloudinaryConfig   `yaml:"cloudinary"`
	Jobs         JobsConfig         `yaml:"jobs"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	GinMode     string   `yaml:"ginMode"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // postgres, sqlite
	URL        string `yaml:"url"`
	SQLitePath string `yaml:"sqlitePath"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiryHours"`
	RefreshDays int    `yaml:"refreshDays"`
}

type ModerationConfig struct {
	DefaultCommission   float64 `yaml:"defaultCommission"`
	ExclusiveCommission float64 `yaml:"exclusiveCommission"`
	BulkConcurrency     int     `yaml:"bulkConcurrency"`
}

type NotificationConfig struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisChannel  string `yaml:"redisChannel"`
	ExpoPushURL   string `yaml:"expoPushURL"`
	SendGridKey   string `yaml:"sendgridKey"`
	EmailFrom     string `yaml:"emailFrom"`
	EmailFromName string `yaml:"emailFromName"`
}

type CloudinaryConfig struct {
	URL    string `yaml:"url"`
	Folder string `yaml:"folder"`
}

type JobsConfig struct {
	TokenCleanupSpec string `yaml:"tokenCleanupSpec"`
	ExpertStatsSpec  string `yaml:"expertStatsSpec"`
}

var AppConfig *Config

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        "8080",
			GinMode:     "debug",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Driver:     "postgres",
			SQLitePath: "advice.db",
		},
		JWT: JWTConfig{
			Secret:      "your-super-secret-jwt-key-change-this-in-production",
			ExpiryHours: 24,
			RefreshDays: 30,
		},
		Moderation: ModerationConfig{
			DefaultCommission:   0.5,
			ExclusiveCommission: 0.75,
			BulkConcurrency:     8,
		},
		Notification: NotificationConfig{
			RedisChannel:  "advice:notifications",
			ExpoPushURL:   "https://exp.host/--/api/v2/push/send",
			EmailFromName: "Advice Moderation",
		},
		Cloudinary: CloudinaryConfig{
			Folder: "experts",
		},
		Jobs: JobsConfig{
			TokenCleanupSpec: "@daily",
			ExpertStatsSpec:  "@hourly",
		},
	}
}

// Load builds AppConfig from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() error {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)
	cfg.Server.CORSOrigins = getEnvAsList("CORS_ORIGINS", cfg.Server.CORSOrigins)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = getEnv("DB_URL", cfg.Database.URL)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.ExpiryHours = getEnvAsInt("JWT_EXPIRY_HOURS", cfg.JWT.ExpiryHours)
	cfg.JWT.RefreshDays = getEnvAsInt("JWT_REFRESH_DAYS", cfg.JWT.RefreshDays)

	cfg.Moderation.DefaultCommission = getEnvAsFloat("DEFAULT_COMMISSION_RATE", cfg.Moderation.DefaultCommission)
	cfg.Moderation.ExclusiveCommission = getEnvAsFloat("EXCLUSIVE_COMMISSION_RATE", cfg.Moderation.ExclusiveCommission)
	cfg.Moderation.BulkConcurrency = getEnvAsInt("BULK_CONCURRENCY", cfg.Moderation.BulkConcurrency)

	cfg.Notification.RedisAddr = getEnv("REDIS_ADDR", cfg.Notification.RedisAddr)
	cfg.Notification.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Notification.RedisPassword)
	cfg.Notification.RedisChannel = getEnv("REDIS_CHANNEL", cfg.Notification.RedisChannel)
	cfg.Notification.ExpoPushURL = getEnv("EXPO_PUSH_URL", cfg.Notification.ExpoPushURL)
	cfg.Notification.SendGridKey = getEnv("SENDGRID_API_KEY", cfg.Notification.SendGridKey)
	cfg.Notification.EmailFrom = getEnv("EMAIL_FROM", cfg.Notification.EmailFrom)
	cfg.Notification.EmailFromName = getEnv("EMAIL_FROM_NAME", cfg.Notification.EmailFromName)

	cfg.Cloudinary.URL = getEnv("CLOUDINARY_URL", cfg.Cloudinary.URL)
	cfg.Cloudinary.Folder = getEnv("CLOUDINARY_FOLDER", cfg.Cloudinary.Folder)

	cfg.Jobs.TokenCleanupSpec = getEnv("JOB_TOKEN_CLEANUP_SPEC", cfg.Jobs.TokenCleanupSpec)
	cfg.Jobs.ExpertStatsSpec = getEnv("JOB_EXPERT_STATS_SPEC", cfg.Jobs.ExpertStatsSpec)

	if err := cfg.Validate(); err != nil {
		return err
	}
	AppConfig = &cfg
	return nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("config: DB_URL is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("config: jwt secret is required")
	}
	if c.JWT.ExpiryHours <= 0 || c.JWT.RefreshDays <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	for _, rate := range []float64{c.Moderation.DefaultCommission, c.Moderation.ExclusiveCommission} {
		if rate < 0 || rate > 1 {
			return errors.New("config: commission rates must be between 0 and 1")
		}
	}
	if c.Moderation.BulkConcurrency <= 0 {
		return errors.New("config: bulk concurrency must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
