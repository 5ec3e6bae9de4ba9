package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the backend reads from the environment.
//
// Optional integrations (MongoDB, Redis, RabbitMQ, SMTP and Cloudinary) are
// considered disabled when their connection setting is empty.
type Config struct {
	ServerURL     string
	JWTSigningKey string

	DatabaseURL string
	DBPoolSize  int

	MongoURI string
	MongoDB  string

	RedisURL string
	CacheTTL time.Duration

	RabbitMQURL string

	SMTPEmail    string
	SMTPPassword string
	SMTPHost     string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	LogLevel string
	LogFile  string

	// AuthRateLimit is the number of requests per minute a single client may
	// send to the /api/auth routes.
	AuthRateLimit int
	Location      *time.Location
}

// Load reads the given .env files (missing files are ignored) and builds a
// Config from the resulting environment.
//
// It returns an error if a required setting is missing or a value cannot be parsed.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
	}

	cfg := &Config{
		ServerURL:           getenv("SERVER_URL", "http://localhost:8080"),
		JWTSigningKey:       os.Getenv("JWT_SIGNING_KEY"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MongoURI:            os.Getenv("MONGODB_URI"),
		MongoDB:             getenv("MONGODB_DB", "gainz"),
		RedisURL:            os.Getenv("REDIS_URL"),
		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		SMTPEmail:           os.Getenv("SMTP_EMAIL"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SMTPHost:            getenv("SMTP_HOST", "smtp.gmail.com:587"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogFile:             os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.DBPoolSize, err = getint("DB_POOL_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = getint("AUTH_RATE_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = time.ParseDuration(getenv("CACHE_TTL", "5m")); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(getenv("TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if c.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

// CloudinaryEnabled reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// SMTPEnabled reports whether outgoing email is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPEmail != "" && c.SMTPPassword != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
