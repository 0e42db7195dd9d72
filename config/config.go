package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration
type Config struct {
	Server struct {
		Port int
	}
	DB struct {
		URL        string // postgres endpoint, e.g. postgres://user@host:5432/db
		ServiceKey string // credential used as the connection password
		Migrate    bool
	}
	Storage struct {
		Bucket string
	}
	CORS struct {
		AllowedOrigins []string
	}
	JWT struct {
		SecretKey string
		ExpiresIn int // hours
	}
	Auth struct {
		Required bool
	}
	RateLimit struct {
		PerMinute      int
		TrustedProxies []string
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	ReportEmail     string
	DayRolloverCron string
	LogLevel        string
}

// requiredKeys must be present, the process refuses to start otherwise.
var requiredKeys = []string{
	"DATABASE_URL",
	"DATABASE_SERVICE_KEY",
	"STORAGE_BUCKET",
	"FRONTEND_URL",
}

// NewConfig loads configuration from the environment and an optional .env file.
func NewConfig() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return FromViper(newViper())
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MIGRATE", true)
	v.SetDefault("EXTRA_ORIGINS", "http://localhost:5173")
	v.SetDefault("JWT_EXPIRES_IN", 24)
	v.SetDefault("AUTH_REQUIRED", false)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 300)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("DAY_ROLLOVER_CRON", "0 0 * * *")

	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{}

	cfg.Server.Port = v.GetInt("SERVER_PORT")
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT %q", v.GetString("SERVER_PORT"))
	}

	cfg.DB.URL = v.GetString("DATABASE_URL")
	cfg.DB.ServiceKey = v.GetString("DATABASE_SERVICE_KEY")
	cfg.DB.Migrate = v.GetBool("DB_MIGRATE")
	cfg.Storage.Bucket = v.GetString("STORAGE_BUCKET")

	cfg.CORS.AllowedOrigins = splitList(v.GetString("EXTRA_ORIGINS"))
	cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, splitList(v.GetString("FRONTEND_URL"))...)

	cfg.Auth.Required = v.GetBool("AUTH_REQUIRED")
	cfg.JWT.SecretKey = strings.TrimSpace(v.GetString("JWT_SECRET_KEY"))
	switch {
	case cfg.JWT.SecretKey != "" && cfg.JWT.SecretKey == cfg.DB.ServiceKey:
		return nil, errors.New("JWT_SECRET_KEY must differ from DATABASE_SERVICE_KEY")
	case cfg.JWT.SecretKey == "" && cfg.Auth.Required:
		return nil, errors.New("JWT_SECRET_KEY is required when AUTH_REQUIRED is true")
	case cfg.JWT.SecretKey == "":
		// tokens are not enforced, sign them with a per-process key
		cfg.JWT.SecretKey = uuid.NewString()
	}
	cfg.JWT.ExpiresIn = v.GetInt("JWT_EXPIRES_IN")
	if cfg.JWT.ExpiresIn <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN %q", v.GetString("JWT_EXPIRES_IN"))
	}
	cfg.RateLimit.PerMinute = v.GetInt("RATE_LIMIT_PER_MINUTE")
	cfg.RateLimit.TrustedProxies = splitList(v.GetString("TRUSTED_PROXIES"))

	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	cfg.SMTP.Port = v.GetInt("SMTP_PORT")
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")
	cfg.ReportEmail = v.GetString("REPORT_EMAIL")

	cfg.DayRolloverCron = v.GetString("DAY_ROLLOVER_CRON")
	cfg.LogLevel = v.GetString("LOG_LEVEL")

	return cfg, nil
}

// MailEnabled reports whether day-close reports can be emailed.
func (c *Config) MailEnabled() bool {
	return c.SMTP.Host != "" && c.ReportEmail != ""
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
