package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

type Config struct {
	ServerPort  string `env:"SERVER_PORT,default=8080"`
	StoreDriver string `env:"STORE_DRIVER,default=postgres"`

	DBHost     string `env:"DB_HOST,default=localhost"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBUser     string `env:"DB_USER,default=relay"`
	DBPassword string `env:"DB_PASSWORD,default=relay_dev_password"`
	DBName     string `env:"DB_NAME,default=relay"`
	BadgerPath string `env:"BADGER_PATH,default=data/relay"`

	// An empty secret disables token checks; participants identify themselves.
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	HubBufferSize      int           `env:"HUB_BUFFER_SIZE,default=256"`
	GroupVerifyMembers bool          `env:"GROUP_VERIFY_MEMBERS,default=false"`
	AllowedOrigin      string        `env:"ALLOWED_ORIGIN,default=*"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverBadger:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.HubBufferSize <= 0 {
		return fmt.Errorf("HUB_BUFFER_SIZE must be positive, got %d", c.HubBufferSize)
	}
	return nil
}

// DatabaseURL is the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
