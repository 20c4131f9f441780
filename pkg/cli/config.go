package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/adapter"
	"github.com/m-mizutani/promptshot/pkg/interfaces"
	"github.com/m-mizutani/promptshot/pkg/policy"
	"github.com/m-mizutani/promptshot/pkg/repository"
	"github.com/m-mizutani/promptshot/pkg/service/imagegen"
	"github.com/m-mizutani/promptshot/pkg/usecase/generate"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	"github.com/m-mizutani/promptshot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

const (
	storeSQLite    = "sqlite"
	storeGCS       = "gcs"
	storeFirestore = "firestore"
	storeMemory    = "memory"
)

// config holds configuration values
type config struct {
	logLevel string

	// Persistence
	store       string
	dbPath      string
	bucket      string
	prefix      string
	project     string
	database    string
	credentials string

	// Generation
	catalog   string
	policyDir string
	timeout   time.Duration
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("PROMPTSHOT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "store",
			Aliases:     []string{"s"},
			Usage:       "History storage backend (sqlite, gcs, firestore, memory)",
			Value:       storeSQLite,
			Sources:     cli.EnvVars("PROMPTSHOT_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "SQLite database file (default: <user config dir>/promptshot/store.db)",
			Sources:     cli.EnvVars("PROMPTSHOT_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for the gcs backend",
			Sources:     cli.EnvVars("PROMPTSHOT_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object name prefix for the gcs backend",
			Value:       "promptshot/",
			Sources:     cli.EnvVars("PROMPTSHOT_PREFIX"),
			Destination: &cfg.prefix,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID for the firestore backend",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "credentials",
			Usage:       "Google Cloud credentials JSON file",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.credentials,
		},
	}
}

// generatorFlags returns flags for image generation with destination config
func generatorFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "YAML file with placeholder images and delay",
			Sources:     cli.EnvVars("PROMPTSHOT_CATALOG"),
			Destination: &cfg.catalog,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego files defining data.prompt.deny",
			Sources:     cli.EnvVars("PROMPTSHOT_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of a single generation (0 means no timeout)",
			Sources:     cli.EnvVars("PROMPTSHOT_TIMEOUT"),
			Destination: &cfg.timeout,
		},
	}
}

// withLogger configures the logger from flags and attaches it to ctx
func (cfg *config) withLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

func (cfg *config) clientOptions() []option.ClientOption {
	if cfg.credentials == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.credentials)}
}

func defaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(dir, "promptshot", "store.db"), nil
}

// newKVS creates the configured persistence backend. The returned function
// releases it.
func (cfg *config) newKVS(ctx context.Context) (interfaces.KVS, func(), error) {
	switch cfg.store {
	case storeSQLite, "":
		path := cfg.dbPath
		if path == "" {
			p, err := defaultDBPath()
			if err != nil {
				return nil, nil, err
			}
			path = p
		}

		repo, err := repository.NewSQLite(ctx, path)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to open sqlite store")
		}
		return repo, func() { _ = repo.Close() }, nil

	case storeGCS:
		kvs, err := adapter.NewStorage(ctx, cfg.bucket, cfg.prefix, cfg.clientOptions()...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create storage")
		}
		return kvs, func() {}, nil

	case storeFirestore:
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database, cfg.clientOptions()...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create firestore repository")
		}
		return repo, func() { _ = repo.Close() }, nil

	case storeMemory:
		return repository.NewMemory(), func() {}, nil

	default:
		return nil, nil, goerr.New("unsupported store",
			goerr.V("store", cfg.store),
			goerr.V("supported", []string{storeSQLite, storeGCS, storeFirestore, storeMemory}))
	}
}

// newProvider creates the image provider
func (cfg *config) newProvider() (imagegen.ImageProvider, error) {
	var opts []imagegen.PlaceholderOption
	if cfg.catalog != "" {
		catalog, err := imagegen.LoadCatalog(cfg.catalog)
		if err != nil {
			return nil, err
		}
		opts = catalog.Options()
	}

	return imagegen.Bounded(imagegen.NewPlaceholder(opts...), cfg.timeout), nil
}

// newPolicy loads the prompt policy. It returns nil if no policy is configured.
func (cfg *config) newPolicy(ctx context.Context) (policy.Checker, error) {
	if cfg.policyDir == "" {
		return nil, nil
	}

	p, err := policy.Load(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load prompt policy", goerr.V("dir", cfg.policyDir))
	}
	if p == nil {
		return nil, nil
	}
	return p, nil
}

// newController creates a workflow controller recording into store
func (cfg *config) newController(ctx context.Context, store *history.Store) (*generate.Controller, error) {
	provider, err := cfg.newProvider()
	if err != nil {
		return nil, err
	}

	checker, err := cfg.newPolicy(ctx)
	if err != nil {
		return nil, err
	}

	var opts []generate.Option
	if checker != nil {
		opts = append(opts, generate.WithPolicy(checker))
	}

	return generate.New(provider, store, opts...), nil
}
