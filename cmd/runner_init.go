package main

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/chain"
	"github.com/sells-group/reprice/internal/resilience"
	"github.com/sells-group/reprice/internal/runner"
	"github.com/sells-group/reprice/internal/store"
	"github.com/sells-group/reprice/internal/throttle"
	"github.com/sells-group/reprice/pkg/shopify"
)

// runnerEnv holds the store, catalog client and runner needed by the
// catalog commands and the server.
type runnerEnv struct {
	Store   store.Store
	Catalog shopify.Client
	Runner  *runner.Runner
}

// Close releases resources held by the environment.
func (re *runnerEnv) Close() {
	if re.Store != nil {
		_ = re.Store.Close()
	}
}

// initRunner sets up the store, the Shopify client and the Runner.
// Callers should defer env.Close().
func initRunner(ctx context.Context, mode string) (*runnerEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	th, err := throttle.New(cfg.Throttle)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	catalog := initCatalog()
	r := runner.New(catalog, st, th, chain.New(cfg.Chain))

	return &runnerEnv{Store: st, Catalog: catalog, Runner: r}, nil
}

// initCatalog builds the Shopify client from configuration.
func initCatalog() shopify.Client {
	retry := resilience.DefaultRetryConfig()
	if cfg.Shopify.MaxRetries >= 0 {
		retry.MaxAttempts = cfg.Shopify.MaxRetries + 1
	}
	timeout := 30 * time.Second
	if cfg.Shopify.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.Shopify.TimeoutSecs) * time.Second
	}
	return shopify.NewClient(cfg.Shopify.Store, cfg.Shopify.Token, cfg.Shopify.APIVersion,
		shopify.WithHTTPClient(&http.Client{Timeout: timeout}),
		shopify.WithPageSize(cfg.Shopify.PageSize),
		shopify.WithPriceScale(cfg.Shopify.PriceScale),
		shopify.WithRetryConfig(retry),
	)
}

// initStore opens the configured backup store without migrating it.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "file":
		return store.NewFile(cfg.Store.Dir), nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(cfg.Store.Dir, "reprice.db")
		}
		return store.NewSQLite(dsn)
	case "mysql":
		return store.NewMySQL(ctx, cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
