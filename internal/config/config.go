package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App       App       `yaml:"app"`
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Engine    Engine    `yaml:"engine"`
	Redeliver Redeliver `yaml:"redeliver"`
	Webhooks  Webhooks  `yaml:"webhooks"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"weddingflo-webhooks"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port        string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	MetricsPort string `yaml:"metrics_port" env:"METRICS_PORT" env-default:"9090"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"weddingflo_db"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers    []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	AuditTopic string   `yaml:"audit_topic" env:"KAFKA_AUDIT_TOPIC" env-default:"webhook-audit"`
}

type Engine struct {
	HandlerTimeout     time.Duration `yaml:"handler_timeout" env:"ENGINE_HANDLER_TIMEOUT" env-default:"15s"`
	SlowThreshold      time.Duration `yaml:"slow_threshold" env:"ENGINE_SLOW_THRESHOLD" env-default:"3s"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window" env:"ENGINE_ERROR_RATE_WINDOW" env-default:"5m"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold" env:"ENGINE_ERROR_RATE_THRESHOLD" env-default:"0.25"`
	ErrorRateInterval  time.Duration `yaml:"error_rate_interval" env:"ENGINE_ERROR_RATE_INTERVAL" env-default:"30s"`
	DuplicateCacheTTL  time.Duration `yaml:"duplicate_cache_ttl" env:"ENGINE_DUPLICATE_CACHE_TTL" env-default:"24h"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes" env:"ENGINE_MAX_BODY_BYTES" env-default:"1048576"`
}

type Redeliver struct {
	Interval   time.Duration `yaml:"interval" env:"REDELIVER_INTERVAL" env-default:"30s"`
	BatchSize  int           `yaml:"batch_size" env:"REDELIVER_BATCH_SIZE" env-default:"20"`
	MaxRetries int           `yaml:"max_retries" env:"REDELIVER_MAX_RETRIES" env-default:"8"`
}

// Webhooks holds the per-provider signing secrets the transport layer
// verifies against.
type Webhooks struct {
	StripeSecret string `yaml:"stripe_secret" env:"WEBHOOK_STRIPE_SECRET" env-default:""`
	ResendSecret string `yaml:"resend_secret" env:"WEBHOOK_RESEND_SECRET" env-default:""`
	TwilioSecret string `yaml:"twilio_secret" env:"WEBHOOK_TWILIO_SECRET" env-default:""`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
