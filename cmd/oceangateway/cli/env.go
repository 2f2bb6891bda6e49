package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"oceangateway/internal/blob"
	"oceangateway/internal/cache"
	"oceangateway/internal/catalog"
	catalogsqlite "oceangateway/internal/catalog/sqlite"
	"oceangateway/internal/config"
	configfile "oceangateway/internal/config/file"
	configmem "oceangateway/internal/config/memory"
	"oceangateway/internal/fetch"
	"oceangateway/internal/gateway"
	"oceangateway/internal/home"
	"oceangateway/internal/reader"
	"oceangateway/internal/reader/registry"
	"oceangateway/internal/source"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// env is everything a command needs to build gateways.
type env struct {
	home       home.Dir
	instance   string
	store      config.Store
	configPath string // empty for inline configuration
	catalog    *catalog.Catalog
	catalogDB  *catalogsqlite.Store
	deps       reader.Deps
	table      source.Table
	logger     *slog.Logger
	closers    []io.Closer
}

// openEnv resolves the home directory and opens the config store, the
// catalog and the shared reader dependencies.
func (a *app) openEnv(cmd *cobra.Command) (*env, error) {
	homeFlag, _ := cmd.Flags().GetString("home")
	hd, err := resolveHome(homeFlag)
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	if err := hd.EnsureExists(); err != nil {
		return nil, err
	}
	instance, err := hd.InstanceName()
	if err != nil {
		return nil, err
	}

	e := &env{home: hd, instance: instance, logger: a.logger.With("instance", instance)}
	if err := e.openStore(cmd); err != nil {
		return nil, err
	}
	if err := e.openCatalog(cmd); err != nil {
		_ = e.Close()
		return nil, err
	}

	rate, _ := cmd.Flags().GetFloat64("rate")
	ttl, _ := cmd.Flags().GetDuration("cache-ttl")
	var c *cache.Cache
	if ttl > 0 {
		c = cache.New(hd.CacheDir(), ttl, a.logger)
	}
	e.deps = reader.Deps{
		Fetch: fetch.New(fetch.Config{
			Rate:      rate,
			Burst:     2,
			UserAgent: fmt.Sprintf("oceangateway/%s (%s)", a.version, instance),
			Logger:    a.logger,
		}),
		Cache:  c,
		Blob:   blob.NewOpener(blobConfigFromEnv(a.logger)),
		Logger: a.logger,
	}
	e.table = registry.Default(e.deps)
	return e, nil
}

func resolveHome(flagValue string) (home.Dir, error) {
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	return home.Default()
}

func (e *env) openStore(cmd *cobra.Command) error {
	inline, _ := cmd.Flags().GetString("inline")
	if inline != "" {
		raw, err := parseInline(inline)
		if err != nil {
			return err
		}
		e.store = configmem.NewStore(raw)
		return nil
	}
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = e.home.ConfigPath(configfile.FormatYAML)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	e.configPath = path
	e.store = configfile.NewStore(path)
	return nil
}

// parseInline decodes YAML, which also accepts JSON.
func parseInline(s string) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("--inline: %w", err)
	}
	m, _ := config.Normalize(raw).(map[string]any)
	return m, nil
}

// openCatalog prefers --catalog, then the home SQLite catalog when it has
// rows, then the built-in catalog.
func (e *env) openCatalog(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("catalog"); path != "" {
		c, err := catalog.Load(path)
		if err != nil {
			return err
		}
		e.catalog = c
		return nil
	}
	db, err := e.openCatalogDB()
	if err != nil {
		return err
	}
	c, err := db.Load(cmd.Context())
	if err != nil {
		return err
	}
	if c == nil {
		c = catalog.Default()
	}
	e.catalog = c
	return nil
}

// openCatalogDB opens <home>/catalog.db once per env.
func (e *env) openCatalogDB() (*catalogsqlite.Store, error) {
	if e.catalogDB != nil {
		return e.catalogDB, nil
	}
	db, err := catalogsqlite.Open(e.home.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	e.catalogDB = db
	e.closers = append(e.closers, db)
	return db, nil
}

func (e *env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *env) loadConfig(ctx context.Context) (*config.Config, error) {
	return config.FromStore(ctx, e.store, e.table.Names())
}

// newGateway loads the current configuration and builds a gateway for it.
func (e *env) newGateway(ctx context.Context) (*gateway.Gateway, error) {
	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return gateway.New(cfg, e.table, gateway.Options{Catalog: e.catalog, Logger: e.logger})
}

// blobConfigFromEnv reads object store credentials. Anything unset falls
// back to each SDK's default chain.
func blobConfigFromEnv(logger *slog.Logger) blob.Config {
	return blob.Config{
		S3Region:              os.Getenv("OCEANGATEWAY_S3_REGION"),
		S3Endpoint:            os.Getenv("OCEANGATEWAY_S3_ENDPOINT"),
		S3AccessKey:           os.Getenv("OCEANGATEWAY_S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("OCEANGATEWAY_S3_SECRET_KEY"),
		GCSAnonymous:          strings.EqualFold(os.Getenv("OCEANGATEWAY_GCS_ANONYMOUS"), "true"),
		GCSCredentialsFile:    os.Getenv("OCEANGATEWAY_GCS_CREDENTIALS"),
		AzureAccountURL:       os.Getenv("OCEANGATEWAY_AZURE_ACCOUNT_URL"),
		AzureConnectionString: os.Getenv("OCEANGATEWAY_AZURE_CONNECTION_STRING"),
		Logger:                logger,
	}
}

// planLabel names a reader instance in output and export paths.
func planLabel(p gateway.Plan) string {
	return fmt.Sprintf("%s-%d", p.Source, p.Index)
}
