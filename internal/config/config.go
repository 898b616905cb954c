package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env            string        `mapstructure:"DASH_ENV"`
	HTTPAddr       string        `mapstructure:"DASH_HTTP_ADDR"`
	RequestTimeout time.Duration `mapstructure:"DASH_REQUEST_TIMEOUT"`
	LogFile        string        `mapstructure:"DASH_LOG_FILE"`
	// Timezone is the IANA location used to render timestamps and day windows.
	Timezone string `mapstructure:"DASH_TIMEZONE"`

	Chain    ChainConfig    `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Trades   TradesConfig   `mapstructure:",squash"`
	Tunnel   TunnelConfig   `mapstructure:",squash"`
	Mongo    MongoConfig    `mapstructure:",squash"`
	Database DBConfig       `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type ChainConfig struct {
	Network          string        `mapstructure:"DASH_NETWORK"`
	LCDURL           string        `mapstructure:"DASH_LCD_URL"`
	IndexerURL       string        `mapstructure:"DASH_INDEXER_URL"`
	TokenListURL     string        `mapstructure:"DASH_TOKEN_LIST_URL"`
	Timeout          time.Duration `mapstructure:"DASH_CHAIN_TIMEOUT"`
	RequestsPerSec   float64       `mapstructure:"DASH_CHAIN_RPS"`
	ReferenceRefresh string        `mapstructure:"DASH_REFERENCE_REFRESH"` // cron spec, empty disables
}

type CacheConfig struct {
	RedisAddr string `mapstructure:"DASH_REDIS_ADDR"`

	// PageCacheTTL is how long the last built table of a page stays readable
	// without a query. Pages are always rebuilt on display.
	PageCacheTTL time.Duration `mapstructure:"DASH_PAGE_CACHE_TTL"`
}

type TradesConfig struct {
	Backend string `mapstructure:"DASH_TRADES_BACKEND"` // "mongo", "postgres"
}

type TunnelConfig struct {
	Host           string `mapstructure:"DASH_SSH_HOST"`
	Port           int    `mapstructure:"DASH_SSH_PORT"`
	User           string `mapstructure:"DASH_SSH_USER"`
	KeyPath        string `mapstructure:"DASH_SSH_KEY_PATH"`
	KnownHostsPath string `mapstructure:"DASH_SSH_KNOWN_HOSTS"`
}

type MongoConfig struct {
	Host       string        `mapstructure:"DASH_MONGO_HOST"`
	Port       int           `mapstructure:"DASH_MONGO_PORT"`
	Database   string        `mapstructure:"DASH_MONGO_DB"`
	Collection string        `mapstructure:"DASH_MONGO_COLLECTION"`
	Timeout    time.Duration `mapstructure:"DASH_MONGO_TIMEOUT"`
}

type DBConfig struct {
	PostgresDSN string `mapstructure:"DASH_POSTGRES_DSN"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"DASH_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"DASH_CORS_ALLOWED_ORIGINS"`
}

const (
	TradesBackendMongo    = "mongo"
	TradesBackendPostgres = "postgres"
)

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if origins := v.GetString("DASH_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("DASH_CORS_ALLOWED_ORIGINS", strings.Split(origins, ","))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyNetworkDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DASH_ENV", "dev")
	v.SetDefault("DASH_HTTP_ADDR", ":8080")
	v.SetDefault("DASH_REQUEST_TIMEOUT", "60s")
	v.SetDefault("DASH_LOG_FILE", "")
	v.SetDefault("DASH_TIMEZONE", "UTC")
	v.SetDefault("DASH_NETWORK", "mainnet")
	v.SetDefault("DASH_LCD_URL", "")
	v.SetDefault("DASH_INDEXER_URL", "")
	v.SetDefault("DASH_TOKEN_LIST_URL", "")
	v.SetDefault("DASH_CHAIN_TIMEOUT", "20s")
	v.SetDefault("DASH_CHAIN_RPS", 10)
	v.SetDefault("DASH_REFERENCE_REFRESH", "@every 1h")
	v.SetDefault("DASH_REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("DASH_PAGE_CACHE_TTL", "24h")
	v.SetDefault("DASH_TRADES_BACKEND", TradesBackendMongo)
	// The tunnel is opt-in: with no host, Mongo is dialed directly.
	v.SetDefault("DASH_SSH_HOST", "")
	v.SetDefault("DASH_SSH_PORT", 22)
	v.SetDefault("DASH_SSH_USER", "root")
	v.SetDefault("DASH_SSH_KEY_PATH", "~/.ssh/id_rsa")
	v.SetDefault("DASH_SSH_KNOWN_HOSTS", "")
	v.SetDefault("DASH_MONGO_HOST", "127.0.0.1")
	v.SetDefault("DASH_MONGO_PORT", 27017)
	v.SetDefault("DASH_MONGO_DB", "exchangeV2")
	v.SetDefault("DASH_MONGO_COLLECTION", "derivative_trades")
	v.SetDefault("DASH_MONGO_TIMEOUT", "20s")
	v.SetDefault("DASH_POSTGRES_DSN", "")
	v.SetDefault("DASH_RATE_LIMIT_RPM", 120)
	v.SetDefault("DASH_CORS_ALLOWED_ORIGINS", "http://localhost:8080")
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid DASH_TIMEZONE %q: %w", c.Timezone, err)
	}
	switch c.Chain.Network {
	case "mainnet", "testnet":
	default:
		return fmt.Errorf("invalid DASH_NETWORK %q (must be mainnet or testnet)", c.Chain.Network)
	}
	if c.Chain.LCDURL == "" {
		return fmt.Errorf("DASH_LCD_URL is required")
	}
	if c.Chain.IndexerURL == "" {
		return fmt.Errorf("DASH_INDEXER_URL is required")
	}
	if c.Chain.RequestsPerSec <= 0 {
		return fmt.Errorf("DASH_CHAIN_RPS must be positive")
	}
	if c.Chain.ReferenceRefresh != "" {
		if _, err := cron.ParseStandard(c.Chain.ReferenceRefresh); err != nil {
			return fmt.Errorf("invalid DASH_REFERENCE_REFRESH %q: %w", c.Chain.ReferenceRefresh, err)
		}
	}
	switch c.Trades.Backend {
	case TradesBackendMongo:
		if c.Mongo.Collection == "" || c.Mongo.Database == "" {
			return fmt.Errorf("DASH_MONGO_DB and DASH_MONGO_COLLECTION are required for the mongo backend")
		}
	case TradesBackendPostgres:
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("DASH_POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid DASH_TRADES_BACKEND %q (must be mongo or postgres)", c.Trades.Backend)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TunnelEnabled reports whether trade-history queries go through an SSH port forward.
func (c *Config) TunnelEnabled() bool {
	return strings.TrimSpace(c.Tunnel.Host) != ""
}

// applyNetworkDefaults normalizes the network name and fills in public endpoints.
func (c *Config) applyNetworkDefaults() {
	net := strings.ToLower(strings.TrimSpace(c.Chain.Network))
	if net == "" {
		net = "mainnet"
	}

	defaults, ok := networkEndpoints[net]
	if !ok {
		c.Chain.Network = net
		return
	}

	if strings.TrimSpace(c.Chain.LCDURL) == "" {
		c.Chain.LCDURL = defaults.lcd
	}
	if strings.TrimSpace(c.Chain.IndexerURL) == "" {
		c.Chain.IndexerURL = defaults.indexer
	}
	if strings.TrimSpace(c.Chain.TokenListURL) == "" {
		c.Chain.TokenListURL = defaults.tokenList
	}

	c.Chain.Network = net
	c.Chain.LCDURL = strings.TrimRight(c.Chain.LCDURL, "/")
	c.Chain.IndexerURL = strings.TrimRight(c.Chain.IndexerURL, "/")
}

type endpoints struct {
	lcd       string
	indexer   string
	tokenList string
}

var networkEndpoints = map[string]endpoints{
	"mainnet": {
		lcd:       "https://sentry.lcd.injective.network",
		indexer:   "https://sentry.exchange.grpc-web.injective.network",
		tokenList: "https://raw.githubusercontent.com/InjectiveLabs/injective-lists/master/json/tokens/mainnet.json",
	},
	"testnet": {
		lcd:       "https://testnet.sentry.lcd.injective.network",
		indexer:   "https://testnet.sentry.exchange.grpc-web.injective.network",
		tokenList: "https://raw.githubusercontent.com/InjectiveLabs/injective-lists/master/json/tokens/testnet.json",
	},
}
