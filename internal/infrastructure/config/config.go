package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	OpenAI   OpenAIConfig   `koanf:"openai"`
	SMTP     SMTPConfig     `koanf:"smtp"`

	Scoring  ScoringConfig  `koanf:"scoring"`
	Routing  RoutingConfig  `koanf:"routing"`
	Capacity CapacityConfig `koanf:"capacity"`
	Delivery DeliveryConfig `koanf:"delivery"`
	Feedback FeedbackConfig `koanf:"feedback"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type OpenAIConfig struct {
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float32       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type ScoringConfig struct {
	// Initial weights for the four scoring factors. The feedback loop
	// adjusts them at runtime; these only seed the first snapshot.
	BaseQualification float64 `koanf:"base_qualification" validate:"gte=0,lte=1"`
	Behavioral        float64 `koanf:"behavioral" validate:"gte=0,lte=1"`
	MarketTiming      float64 `koanf:"market_timing" validate:"gte=0,lte=1"`
	NYCIntelligence   float64 `koanf:"nyc_intelligence" validate:"gte=0,lte=1"`

	ScoreCacheTTL time.Duration `koanf:"score_cache_ttl"`
}

type RoutingConfig struct {
	ExpectedRevenue float64 `koanf:"expected_revenue"`
	Acceptance      float64 `koanf:"acceptance"`
	Headroom        float64 `koanf:"headroom"`
	TierMatch       float64 `koanf:"tier_match"`
	Geography       float64 `koanf:"geography"`
	AvgValue        float64 `koanf:"avg_value"`
}

type CapacityConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

type DeliveryConfig struct {
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
	MaxRetries     int           `koanf:"max_retries" validate:"gte=0,lte=10"`
}

type FeedbackConfig struct {
	AnalyzeInterval time.Duration `koanf:"analyze_interval"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   300,
			Temperature: 0.7,
			Timeout:     10 * time.Second,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Scoring: ScoringConfig{
			BaseQualification: 0.40,
			Behavioral:        0.30,
			MarketTiming:      0.20,
			NYCIntelligence:   0.10,
			ScoreCacheTTL:     1 * time.Hour,
		},
		Routing: RoutingConfig{
			ExpectedRevenue: 0.40,
			Acceptance:      0.25,
			Headroom:        0.15,
			TierMatch:       0.10,
			Geography:       0.05,
			AvgValue:        0.05,
		},
		Capacity: CapacityConfig{
			RefreshInterval: 5 * time.Minute,
		},
		Delivery: DeliveryConfig{
			AttemptTimeout: 15 * time.Second,
			MaxRetries:     3,
		},
		Feedback: FeedbackConfig{
			AnalyzeInterval: 15 * time.Minute,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("SLX_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SLX_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
