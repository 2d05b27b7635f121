package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultRPCURL        = "http://127.0.0.1:8545"
	DefaultIPFSAPIURL    = "http://127.0.0.1:5001"
	DefaultMaxUploadSize = 50 << 20
	DefaultPort          = 8080
	DefaultReadRateLimit = 20
)

// Config is the process configuration, read from the environment.
type Config struct {
	RPCURL          string `validate:"required,url"`
	ChainID         int64  `validate:"gte=0"`
	ContractAddress string `validate:"required,eth_addr"`

	// PrivateKey is optional; without it the process is read-only.
	PrivateKey string `validate:"omitempty,hexadecimal"`

	IPFSAPIURL   string   `validate:"required,url"`
	IPFSGateways []string `validate:"dive,url"`

	UploadMaxAttempts int           `validate:"gte=1,lte=10"`
	UploadBackoffBase time.Duration `validate:"gt=0"`
	UploadBackoffCap  time.Duration `validate:"gtefield=UploadBackoffBase"`
	ConfirmTimeout    time.Duration `validate:"gt=0"`
	ReadConcurrency   int           `validate:"gte=1,lte=64"`
	ReadRateLimit     float64       `validate:"gte=0"`
	EventPollInterval time.Duration `validate:"gt=0"`
	MaxUploadSize     int64         `validate:"gt=0"`

	DatabasePath  string
	PostgresURL   string
	RedisAddr     string `validate:"omitempty,hostname_port"`
	RedisPassword string

	Port      int `validate:"gte=0,lte=65535"`
	JWTSecret string
}

// Load reads .env files when present and then the environment. Values that are
// already set in the environment take precedence over .env files.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment and validates it.
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		RPCURL:            getString("RPC_URL", DefaultRPCURL),
		ChainID:           p.int64("CHAIN_ID", 0),
		ContractAddress:   strings.TrimSpace(os.Getenv("CONTRACT_ADDRESS")),
		PrivateKey:        strings.TrimSpace(os.Getenv("PRIVATE_KEY")),
		IPFSAPIURL:        getString("IPFS_API_URL", DefaultIPFSAPIURL),
		IPFSGateways:      getList("IPFS_GATEWAYS"),
		UploadMaxAttempts: p.int("UPLOAD_MAX_ATTEMPTS", 3),
		UploadBackoffBase: p.duration("UPLOAD_BACKOFF_BASE", time.Second),
		UploadBackoffCap:  p.duration("UPLOAD_BACKOFF_CAP", 5*time.Second),
		ConfirmTimeout:    p.duration("CONFIRM_TIMEOUT", 2*time.Minute),
		ReadConcurrency:   p.int("READ_CONCURRENCY", 8),
		ReadRateLimit:     p.float("READ_RATE_LIMIT", DefaultReadRateLimit),
		EventPollInterval: p.duration("EVENT_POLL_INTERVAL", 4*time.Second),
		MaxUploadSize:     p.int64("MAX_UPLOAD_SIZE", DefaultMaxUploadSize),
		DatabasePath:      os.Getenv("DATABASE_PATH"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		Port:              p.int("PORT", DefaultPort),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if cfg.DatabasePath == "" && cfg.PostgresURL == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DatabasePath = filepath.Join(home, "webhost.db")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ReadOnly reports whether no signing key is configured.
func (c *Config) ReadOnly() bool {
	return c.PrivateKey == ""
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser keeps the first conversion error.
type parser struct {
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != "" && p.err == nil
}

func (p *parser) fail(key, value string, err error) {
	p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
}

func (p *parser) int(key string, fallback int) int {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) int64(key string, fallback int64) int64 {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

// duration accepts Go durations ("1500ms") and bare integers as milliseconds.
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}
