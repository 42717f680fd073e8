package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chilly266futon/orderComposer/internal/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Health     HealthConfig     `yaml:"health"`
	PricingAPI PricingAPIConfig `yaml:"pricing_api"`
	Composer   ComposerConfig   `yaml:"composer"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logger     logger.Config    `yaml:"logger"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
}

type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// PricingAPIConfig describes the backend serving both estimates and orders.
type PricingAPIConfig struct {
	Addr              string        `yaml:"addr"`
	AuthToken         string        `yaml:"auth_token"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	EnableBreaker     bool          `yaml:"enable_breaker"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxRequests uint32        `yaml:"max_requests"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    uint32        `yaml:"attempts"`
}

type ComposerConfig struct {
	AmountStep      string        `yaml:"amount_step"`
	EstimateTimeout time.Duration `yaml:"estimate_timeout"`
	SubmitTimeout   time.Duration `yaml:"submit_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        []string      `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// RateLimitConfig конфигурация rate limiting входящих запросов
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			SessionTTL:      time.Hour,
		},
		Health: HealthConfig{Enabled: true, Port: 9090},
		PricingAPI: PricingAPIConfig{
			Timeout: 10 * time.Second,
		},
		Composer: ComposerConfig{
			AmountStep:      "1",
			EstimateTimeout: 10 * time.Second,
			SubmitTimeout:   30 * time.Second,
		},
		Kafka:  KafkaConfig{Topic: "trading.orders", PublishTimeout: 5 * time.Second},
		Logger: logger.Config{Level: "info", Encoding: "json"},
	}
}

// Load reads the YAML file over defaults, then applies environment
// overrides. A .env file next to the binary is loaded if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	applyEnv(&cfg)

	return &cfg, nil
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRICING_API_ADDR"); v != "" {
		cfg.PricingAPI.Addr = v
	}
	if v := os.Getenv("PRICING_API_TOKEN"); v != "" {
		cfg.PricingAPI.AuthToken = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}
