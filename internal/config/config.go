package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	JWT    JWTConfig
	OpenAI OpenAIConfig
	Drafts DraftsConfig
	Events EventsConfig
	Orders OrdersConfig
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if strings.TrimSpace(cfg.DB.URL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := cfg.Orders.PhoneRegexp(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Port           string `envconfig:"SERVER_PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"json"`
	LogWarnStack   bool   `envconfig:"LOG_WARN_STACK" default:"false"`
}

// Origins splits AllowedOrigins on commas, dropping blanks.
func (a AppConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(a.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DBConfig struct {
	URL            string `envconfig:"DATABASE_URL" required:"true"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"false"`
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET"`
	Issuer string        `envconfig:"JWT_ISSUER" default:"shop-admin"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"720h"`
}

type OpenAIConfig struct {
	APIKey string `envconfig:"OPENAI_API_KEY"`
	Model  string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
}

func (o OpenAIConfig) Enabled() bool { return o.APIKey != "" }

type DraftsConfig struct {
	RedisURL string        `envconfig:"REDIS_URL"`
	TTL      time.Duration `envconfig:"DRAFT_TTL" default:"15m"`
}

type EventsConfig struct {
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`
	Exchange    string `envconfig:"EVENTS_EXCHANGE" default:"shop.orders"`
}

type OrdersConfig struct {
	PhonePattern string `envconfig:"PHONE_PATTERN" default:"^\\+?[0-9]{9,15}$"`
}

// PhoneRegexp compiles PhonePattern.
func (o OrdersConfig) PhoneRegexp() (*regexp.Regexp, error) {
	re, err := regexp.Compile(o.PhonePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid PHONE_PATTERN: %w", err)
	}
	return re, nil
}
