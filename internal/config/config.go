package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	ItemStore ItemStoreConfig
	Identity  IdentityConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	Insight   InsightConfig
	Alerts    AlertsConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type ItemStoreConfig struct {
	BaseURL string
}

const (
	ProviderLocal   = "local"
	ProviderCognito = "cognito"
)

type IdentityConfig struct {
	Provider        string
	CognitoRegion   string
	CognitoClientID string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type SessionConfig struct {
	CookieName string
	TTLHours   int

	// AccountRateLimit caps account form submissions per client address
	// per minute.
	AccountRateLimit int
}

type InsightConfig struct {
	APIKey             string
	Model              string
	RateLimitPerMinute int
}

type AlertsConfig struct {
	ProjectID     string
	LowStockTopic string
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func Load() *Config {
	// Values already in the environment win over the .env file.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: no .env file loaded: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return fromViper()
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:8080")
	viper.SetDefault("ITEMSTORE_BASE_URL", "http://localhost:3000")
	viper.SetDefault("IDENTITY_PROVIDER", ProviderLocal)
	viper.SetDefault("COGNITO_REGION", "us-east-1")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "inventoflow")
	viper.SetDefault("DB_DATABASE", "inventoflow")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 60)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 30)
	viper.SetDefault("SESSION_COOKIE_NAME", "inventoflow_session")
	viper.SetDefault("SESSION_TTL_HOURS", 24*30)
	viper.SetDefault("ACCOUNT_RATE_LIMIT", 20)
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	viper.SetDefault("INSIGHT_RATE_LIMIT", 10)
	viper.SetDefault("PUBSUB_LOW_STOCK_TOPIC", "inventory-low-stock")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		ItemStore: ItemStoreConfig{
			BaseURL: viper.GetString("ITEMSTORE_BASE_URL"),
		},
		Identity: IdentityConfig{
			Provider:        strings.ToLower(viper.GetString("IDENTITY_PROVIDER")),
			CognitoRegion:   viper.GetString("COGNITO_REGION"),
			CognitoClientID: viper.GetString("COGNITO_CLIENT_ID"),
		},
		Database: DatabaseConfig{
			Host:         viper.GetString("DB_HOST"),
			Port:         viper.GetInt("DB_PORT"),
			User:         viper.GetString("DB_USER"),
			Password:     viper.GetString("DB_PASSWORD"),
			Name:         viper.GetString("DB_DATABASE"),
			SSLMode:      viper.GetString("DB_SSLMODE"),
			MaxOpenConns: viper.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Session: SessionConfig{
			CookieName: viper.GetString("SESSION_COOKIE_NAME"),
			TTLHours:   viper.GetInt("SESSION_TTL_HOURS"),

			AccountRateLimit: viper.GetInt("ACCOUNT_RATE_LIMIT"),
		},
		Insight: InsightConfig{
			APIKey:             viper.GetString("GEMINI_API_KEY"),
			Model:              viper.GetString("GEMINI_MODEL"),
			RateLimitPerMinute: viper.GetInt("INSIGHT_RATE_LIMIT"),
		},
		Alerts: AlertsConfig{
			ProjectID:     viper.GetString("PUBSUB_PROJECT_ID"),
			LowStockTopic: viper.GetString("PUBSUB_LOW_STOCK_TOPIC"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
