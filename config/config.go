package config

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const DefaultSecretKey = "CHANGE_ME_DEV_SECRET"

// Config is built once at startup and passed by value; nothing mutates it
// afterwards.
type Config struct {
	SecretKey                string
	JWTAlgorithm             string
	AccessTokenExpireMinutes int
	DatabaseURL              string
	AllowOrigins             []string
	ServerPort               string
	BcryptCost               int
	LogLevel                 string
	AutoMigrate              bool
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// LoadConfig reads the process environment, after loading a .env file from
// the working directory if one exists.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	expireMinutes, err := getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	if expireMinutes <= 0 {
		return Config{}, fmt.Errorf("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", expireMinutes)
	}
	cost, err := getEnvInt("BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return Config{}, err
	}
	autoMigrate, err := getEnvBool("AUTO_MIGRATE", true)
	if err != nil {
		return Config{}, err
	}

	algorithm := getEnv("JWT_ALGORITHM", "HS256")
	switch algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return Config{}, fmt.Errorf("config: unsupported JWT_ALGORITHM %q", algorithm)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = postgresURL(
			getEnv("DATABASE_HOST", "db"),
			getEnv("DATABASE_PORT", "5432"),
			getEnv("DATABASE_USER", "postgres"),
			getEnv("DATABASE_PASSWORD", "password"),
			getEnv("DATABASE_NAME", "bookstore"),
		)
	}

	return Config{
		SecretKey:                getEnv("SECRET_KEY", DefaultSecretKey),
		JWTAlgorithm:             algorithm,
		AccessTokenExpireMinutes: expireMinutes,
		DatabaseURL:              databaseURL,
		AllowOrigins:             parseOrigins(getEnv("ALLOW_ORIGINS", "*")),
		ServerPort:               getEnv("SERVER_PORT", "8080"),
		BcryptCost:               cost,
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		AutoMigrate:              autoMigrate,
	}, nil
}

func postgresURL(host, port, user, password, name string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func parseOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func InitDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
