package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig        `envPrefix:"LOG_"`
	OpenAI     OpenAIConfig     `envPrefix:"OPENAI_"`
	Geocoder   GeocoderConfig   `envPrefix:"GEOCODER_"`
	ImageCache ImageCacheConfig `envPrefix:"IMAGE_CACHE_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
}

type ServerConfig struct {
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// Echo body limit notation, e.g. "20M".
	BodyLimit      string   `env:"BODY_LIMIT" envDefault:"20M"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES" envDefault:"15728640"`
	MaxImagePixels int64    `env:"MAX_IMAGE_PIXELS" envDefault:"50000000"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"console"`
	// Optional rotating log file; empty disables file output.
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"14"`
}

type OpenAIConfig struct {
	APIKey      string        `env:"API_KEY,required,notEmpty"`
	BaseURL     string        `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model       string        `env:"MODEL" envDefault:"gpt-4o"`
	MaxTokens   int64         `env:"MAX_TOKENS" envDefault:"1000"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"60s"`
	VerifyModel bool          `env:"VERIFY_MODEL" envDefault:"false"`
}

type GeocoderConfig struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"`
	Benchmark   string        `env:"BENCHMARK" envDefault:"Public_AR_Current"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
	RPS         float64       `env:"RPS" envDefault:"10"`
	Burst       int           `env:"BURST" envDefault:"5"`
	MaxRetries  uint64        `env:"MAX_RETRIES" envDefault:"2"`
	CacheSize   int           `env:"CACHE_SIZE" envDefault:"1024"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
}

type ImageCacheConfig struct {
	// gocloud.dev blob URL, e.g. file:///dir?create_dir=1 or mem://
	URL      string `env:"URL" envDefault:"file:///var/lib/routedog/images?create_dir=1"`
	MaxBytes int64  `env:"MAX_BYTES" envDefault:"52428800"`
	Compress bool   `env:"COMPRESS" envDefault:"false"`
}

type RedisConfig struct {
	URL         string `env:"URL" envDefault:"redis://localhost:6379/0"`
	StorageName string `env:"STORAGE_NAME" envDefault:"route-dog-storage"`
}

// Address returns the HTTP listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (Config, error) {
	// Load .env if available; ignore error if file does not exist
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
