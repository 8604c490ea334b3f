package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`
	JWTSecret string        `env:"JWT_SECRET, required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=168h"`

	HTTP      HTTPConfig
	Billing   BillingConfig
	Upload    UploadConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Events    EventsConfig
	Anomaly   AnomalyConfig
	Bootstrap BootstrapConfig
}

type HTTPConfig struct {
	CORSOrigins   []string `env:"CORS_ORIGINS,    default=http://localhost:3000"`
	AuthRateLimit float64  `env:"AUTH_RATE_LIMIT, default=5"`
}

type BillingConfig struct {
	DefaultRatePerUnit float64 `env:"DEFAULT_RATE_PER_UNIT, default=8"`
}

type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR,       default=uploads"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES, default=5242880"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=electricity_records"`
}

type RedisConfig struct {
	Addr           string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB,        default=0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL, default=24h"`
}

type EventsConfig struct {
	AMQPURL  string `env:"AMQP_URL"` // empty: events are only logged
	Exchange string `env:"AMQP_EXCHANGE, default=electricity.records.events"`
	Workers  int    `env:"EVENT_WORKERS, default=4"`
}

type AnomalyConfig struct {
	SpikeThreshold float64 `env:"ANOMALY_SPIKE_THRESHOLD, default=3"`
	MinDataPoints  int     `env:"ANOMALY_MIN_DATA_POINTS, default=3"`
	Window         int     `env:"ANOMALY_WINDOW,          default=6"`
}

// BootstrapConfig describes an optional admin account created at startup.
type BootstrapConfig struct {
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminName     string `env:"ADMIN_NAME, default=Administrator"`
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if cfg.Billing.DefaultRatePerUnit <= 0 {
		return nil, fmt.Errorf("config: DEFAULT_RATE_PER_UNIT must be greater than 0")
	}
	return &cfg, nil
}
