package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/reprice/internal/chain"
	"github.com/sells-group/reprice/internal/db"
	"github.com/sells-group/reprice/internal/throttle"
)

// Config holds the full application configuration.
type Config struct {
	Shopify  ShopifyConfig   `yaml:"shopify" mapstructure:"shopify"`
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Throttle throttle.Config `yaml:"throttle" mapstructure:"throttle"`
	Chain    chain.Config    `yaml:"chain" mapstructure:"chain"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// ShopifyConfig holds the Admin API credentials and client tuning.
type ShopifyConfig struct {
	Store       string `yaml:"store" mapstructure:"store"`
	Token       string `yaml:"token" mapstructure:"token"`
	APIVersion  string `yaml:"api_version" mapstructure:"api_version"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PriceScale  int    `yaml:"price_scale" mapstructure:"price_scale"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// StoreConfig configures where backups and run logs are kept.
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	Dir         string        `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, ./config.yaml and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches for
// an optional config.yaml in the working directory; a named file must exist.
func LoadFile(path string) (*Config, error) {
	// .env is optional and never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("REPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variables used by earlier deployments.
	if err := v.BindEnv("shopify.store", "REPRICE_SHOPIFY_STORE", "SHOPIFY_STORE"); err != nil {
		return nil, eris.Wrap(err, "config: bind shopify.store")
	}
	if err := v.BindEnv("shopify.token", "REPRICE_SHOPIFY_TOKEN", "SHOPIFY_ADMIN_TOKEN"); err != nil {
		return nil, eris.Wrap(err, "config: bind shopify.token")
	}

	// Defaults
	v.SetDefault("shopify.store", "")
	v.SetDefault("shopify.token", "")
	v.SetDefault("shopify.api_version", "2024-10")
	v.SetDefault("shopify.page_size", 250)
	v.SetDefault("shopify.timeout_secs", 30)
	v.SetDefault("shopify.price_scale", 1)
	v.SetDefault("shopify.max_retries", 3)
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 4)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("throttle.mode", string(throttle.ModeFixed))
	v.SetDefault("throttle.delay_ms", 120)
	v.SetDefault("chain.option_name", chain.DefaultOptionName)
	v.SetDefault("chain.min_matches", chain.DefaultMinMatches)
	v.SetDefault("chain.names", chain.DefaultNames)
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by a command group:
// "catalog" for anything that talks to Shopify, "store" for commands that
// only read backups and run logs, "serve" for the HTTP server.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "catalog":
		errs = append(errs, c.validateShopify()...)
		errs = append(errs, c.validateStore()...)
	case "store":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateShopify()...)
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Throttle.Mode {
	case "", throttle.ModeFixed, throttle.ModeTokenBucket, throttle.ModeNone:
	default:
		errs = append(errs, "throttle.mode must be fixed, token_bucket or none")
	}
	if c.Throttle.DelayMS < 0 {
		errs = append(errs, "throttle.delay_ms must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateShopify() []string {
	var errs []string
	if c.Shopify.Store == "" {
		errs = append(errs, "shopify.store is required (SHOPIFY_STORE)")
	}
	if c.Shopify.Token == "" {
		errs = append(errs, "shopify.token is required (SHOPIFY_ADMIN_TOKEN)")
	}
	if c.Shopify.PriceScale <= 0 {
		errs = append(errs, "shopify.price_scale must be > 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "file", "sqlite":
		if c.Store.Dir == "" && c.Store.DatabaseURL == "" {
			return []string{"store.dir is required for the " + c.Store.Driver + " driver"}
		}
	case "mysql", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the " + c.Store.Driver + " driver"}
		}
	default:
		return []string{"store.driver must be file, sqlite, mysql or postgres"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
