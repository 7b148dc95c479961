package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/reprice/internal/chain"
	"github.com/sells-group/reprice/internal/throttle"
)

// chdirTemp moves into an empty directory so no config.yaml or .env is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "2024-10", cfg.Shopify.APIVersion)
	assert.Equal(t, 250, cfg.Shopify.PageSize)
	assert.Equal(t, 30, cfg.Shopify.TimeoutSecs)
	assert.Equal(t, 1, cfg.Shopify.PriceScale)
	assert.Equal(t, 3, cfg.Shopify.MaxRetries)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "data", cfg.Store.Dir)
	assert.Equal(t, int32(4), cfg.Store.Pool.MaxConns)
	assert.Equal(t, throttle.ModeFixed, cfg.Throttle.Mode)
	assert.Equal(t, 120, cfg.Throttle.DelayMS)
	assert.Equal(t, chain.DefaultOptionName, cfg.Chain.OptionName)
	assert.Equal(t, 3, cfg.Chain.MinMatches)
	assert.Equal(t, chain.DefaultNames, cfg.Chain.Names)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
shopify:
  store: acme.myshopify.com
  price_scale: 100
store:
  driver: sqlite
  database_url: reprice.db
throttle:
  mode: token_bucket
  delay_ms: 250
chain:
  min_matches: 2
  names: ["rope s", "rope m"]
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "acme.myshopify.com", cfg.Shopify.Store)
	assert.Equal(t, 100, cfg.Shopify.PriceScale)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "reprice.db", cfg.Store.DatabaseURL)
	assert.Equal(t, throttle.ModeTokenBucket, cfg.Throttle.Mode)
	assert.Equal(t, 250, cfg.Throttle.DelayMS)
	assert.Equal(t, 2, cfg.Chain.MinMatches)
	assert.Equal(t, []string{"rope s", "rope m"}, cfg.Chain.Names)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 250, cfg.Shopify.PageSize)
	assert.Equal(t, chain.DefaultOptionName, cfg.Chain.OptionName)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("REPRICE_STORE_DRIVER", "postgres")
	t.Setenv("REPRICE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadLegacyShopifyEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SHOPIFY_STORE", "legacy.myshopify.com")
	t.Setenv("SHOPIFY_ADMIN_TOKEN", "shpat_legacy")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy.myshopify.com", cfg.Shopify.Store)
	assert.Equal(t, "shpat_legacy", cfg.Shopify.Token)
}

func TestLoadPrefixedEnvWinsOverLegacy(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SHOPIFY_STORE", "legacy.myshopify.com")
	t.Setenv("REPRICE_SHOPIFY_STORE", "current.myshopify.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "current.myshopify.com", cfg.Shopify.Store)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	env := "SHOPIFY_STORE=dotenv.myshopify.com\nREPRICE_THROTTLE_DELAY_MS=50\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644))
	t.Cleanup(func() {
		os.Unsetenv("SHOPIFY_STORE")
		os.Unsetenv("REPRICE_THROTTLE_DELAY_MS")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv.myshopify.com", cfg.Shopify.Store)
	assert.Equal(t, 50, cfg.Throttle.DelayMS)
}

func TestLoadFile_ExplicitPath(t *testing.T) {
	chdirTemp(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "staging.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: sqlite\n  dir: /var/lib/reprice\nserver:\n  port: 8080\n"), 0o644))
	// a config.yaml in the working directory is ignored when a path is given
	require.NoError(t, os.WriteFile("config.yaml", []byte("server:\n  port: 9999\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/reprice", cfg.Store.Dir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "2024-10", cfg.Shopify.APIVersion)
}

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	chdirTemp(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("REPRICE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Shopify.Store = "acme.myshopify.com"
	cfg.Shopify.Token = "shpat_x"
	cfg.Shopify.PriceScale = 1
	cfg.Store.Driver = "file"
	cfg.Store.Dir = "data"
	cfg.Throttle.Mode = throttle.ModeFixed
	cfg.Throttle.DelayMS = 120
	cfg.Server.Port = 4000
	return cfg
}

func TestValidateCatalog_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("catalog"))
}

func TestValidateCatalog_MissingCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.Shopify.Store = ""
	cfg.Shopify.Token = ""

	err := cfg.Validate("catalog")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "shopify.store is required")
	assert.Contains(t, err.Error(), "shopify.token is required")
}

func TestValidateStore_IgnoresCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.Shopify.Token = ""

	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateStore_Drivers(t *testing.T) {
	cfg := validDefaults()

	cfg.Store.Driver = "postgres"
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required for the postgres driver")

	cfg.Store.DatabaseURL = "postgres://localhost/reprice"
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""
	err = cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required for the mysql driver")

	cfg.Store.DatabaseURL = "reprice:secret@tcp(localhost:3306)/reprice"
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mongo"
	err = cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateThrottle(t *testing.T) {
	cfg := validDefaults()
	cfg.Throttle.Mode = "adaptive"

	err := cfg.Validate("catalog")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "throttle.mode")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
