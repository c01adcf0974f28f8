package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Oiflow     OiflowConfig     `yaml:"oiflow"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Reader     ReaderConfig     `yaml:"reader"`
	Source     SourceConfig     `yaml:"source"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Storage    StorageConfig    `yaml:"storage"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type OiflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// ReaderConfig configures the HTTP session shared by every exchange call of a run.
type ReaderConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type SourceConfig struct {
	Bitget  BitgetSourceConfig  `yaml:"bitget"`
	Binance BinanceSourceConfig `yaml:"binance"`
	Bybit   BybitSourceConfig   `yaml:"bybit"`
	Okx     OkxSourceConfig     `yaml:"okx"`
}

// BitgetSourceConfig points at the reference listing the watchlist is built from.
type BitgetSourceConfig struct {
	URL         string `yaml:"url"`
	ProductType string `yaml:"product_type"`
	QuoteAsset  string `yaml:"quote_asset"`
}

type BinanceSourceConfig struct {
	Enabled    bool            `yaml:"enabled"`
	URL        string          `yaml:"url"`
	QuoteAsset string          `yaml:"quote_asset"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type BybitSourceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Category   string `yaml:"category"`
	QuoteAsset string `yaml:"quote_asset"`
}

type OkxSourceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	InstType   string `yaml:"inst_type"`
	QuoteAsset string `yaml:"quote_asset"`
}

type ClassifierConfig struct {
	Pinned    []string `yaml:"pinned"`
	Threshold float64  `yaml:"threshold_stddev"`
}

const (
	StorageBackendFile  = "file"
	StorageBackendS3    = "s3"
	StorageBackendRedis = "redis"
)

type StorageConfig struct {
	Backend            string      `yaml:"backend"`
	BootstrapOnMissing bool        `yaml:"bootstrap_on_missing"`
	File               FileConfig  `yaml:"file"`
	S3                 S3Config    `yaml:"s3"`
	Redis              RedisConfig `yaml:"redis"`
}

type FileConfig struct {
	Path string `yaml:"path"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// TelegramConfig holds the bot credential and the optional fixed destination.
// When ChatID is zero the destination is discovered from the latest update.
type TelegramConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
	ChatID    int64  `yaml:"chat_id"`
}

// Default returns the configuration used for any value the YAML file omits.
func Default() Config {
	return Config{
		Oiflow: OiflowConfig{Name: "oiflow", Version: "dev"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{Namespace: "OIFlow"},
		},
		Reader: ReaderConfig{
			Timeout:   15 * time.Second,
			UserAgent: "oiflow/1.0",
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    64,
				MaxConnsPerHost: 32,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Source: SourceConfig{
			Bitget: BitgetSourceConfig{
				URL:         "https://api.bitget.com",
				ProductType: "USDT-FUTURES",
				QuoteAsset:  "USDT",
			},
			Binance: BinanceSourceConfig{
				Enabled:    true,
				URL:        "https://fapi.binance.com",
				QuoteAsset: "USDT",
				RateLimit:  RateLimitConfig{RequestsPerSecond: 20, BurstSize: 20},
			},
			Bybit: BybitSourceConfig{
				Enabled:    true,
				URL:        "https://api.bybit.com",
				Category:   "linear",
				QuoteAsset: "USDT",
			},
			Okx: OkxSourceConfig{
				Enabled:    true,
				URL:        "https://www.okx.com",
				InstType:   "SWAP",
				QuoteAsset: "USDT",
			},
		},
		Classifier: ClassifierConfig{
			Pinned:    []string{"BTC", "ETH"},
			Threshold: 1,
		},
		Storage: StorageConfig{
			Backend: StorageBackendFile,
			File:    FileConfig{Path: "agg_oi.json"},
			S3:      S3Config{Key: "oiflow/agg_oi.json"},
			Redis:   RedisConfig{Key: "oiflow:agg_oi"},
		},
		Telegram: TelegramConfig{URL: "https://api.telegram.org"},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if config.Telegram.Token == "" && config.Telegram.TokenFile != "" {
		token, err := readTokenFile(config.Telegram.TokenFile)
		if err != nil {
			return nil, err
		}
		config.Telegram.Token = token
	}

	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		config.Telegram.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	switch strings.ToLower(config.Storage.Backend) {
	case StorageBackendS3:
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	case StorageBackendRedis:
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			config.Storage.Redis.Addr = strings.TrimSpace(v)
		}
		if v := os.Getenv("REDIS_PASSWORD"); v != "" {
			config.Storage.Redis.Password = v
		}
	}
}

func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read telegram token file: %w", err)
	}
	// only the first line carries the token
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}

func validateConfig(cfg *Config) error {
	if cfg.Oiflow.Name == "" {
		return fmt.Errorf("oiflow.name is required")
	}

	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}

	if cfg.Source.Bitget.URL == "" {
		return fmt.Errorf("source.bitget.url is required")
	}
	if !cfg.Source.Binance.Enabled && !cfg.Source.Bybit.Enabled && !cfg.Source.Okx.Enabled {
		return fmt.Errorf("at least one open-interest source must be enabled")
	}
	if cfg.Source.Binance.Enabled && cfg.Source.Binance.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("source.binance.rate_limit.requests_per_second must be greater than 0")
	}

	if cfg.Classifier.Threshold <= 0 {
		return fmt.Errorf("classifier.threshold_stddev must be greater than 0")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (set TELEGRAM_BOT_TOKEN or telegram.token_file)")
	}

	switch cfg.Storage.Backend {
	case StorageBackendFile:
		if cfg.Storage.File.Path == "" {
			return fmt.Errorf("storage.file.path is required for the file backend")
		}
	case StorageBackendS3:
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required for the s3 backend")
		}
		if cfg.Storage.S3.Key == "" {
			return fmt.Errorf("storage.s3.key is required for the s3 backend")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	case StorageBackendRedis:
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
		if cfg.Storage.Redis.Key == "" {
			return fmt.Errorf("storage.redis.key is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend '%s' is not supported", cfg.Storage.Backend)
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
