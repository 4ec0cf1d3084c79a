package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"dbunify/internal/blobstore"
	"dbunify/internal/config"
	"dbunify/internal/db"
	"dbunify/internal/db/repository"
	"dbunify/internal/domain"
	"dbunify/internal/engine"
	"dbunify/internal/logging"
	"dbunify/internal/service/unify"
	"dbunify/internal/textgen"
)

// historyReadConns bounds the read pool of the persistent history store.
const historyReadConns = 4

// closerFunc adapts a release function to io.Closer.
type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// Open builds a Session from configuration: the engine backend, the history
// store, the blob store and the text generator. A nil logger is built from
// the logging settings in cfg and flushed on Close.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	var closers []io.Closer
	if logger == nil {
		var flush func()
		logger, flush = logging.Setup(logging.Options{
			Level:  cfg.SlogLevel(),
			Format: cfg.LogFormat,
			SeqURL: cfg.SeqURL,
		})
		closers = append(closers, closerFunc(flush))
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	fail := func(err error) (*Session, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	eng, err := engine.New(cfg.Engine, engine.Options{
		SpoolDir: cfg.SpoolDir,
		Logger:   logger.With("component", "engine"),
	})
	if err != nil {
		return fail(err)
	}
	policy, err := unify.ParsePolicy(cfg.CollisionPolicy)
	if err != nil {
		return fail(err)
	}

	deps := Deps{
		Engine:          eng,
		Policy:          policy,
		ExportTableName: cfg.ExportTableName,
		Logger:          logger,
	}

	if cfg.HistoryDBPath != "" {
		writeDB, readDB, err := db.OpenSQLitePair(cfg.HistoryDBPath, historyReadConns)
		if err != nil {
			return fail(fmt.Errorf("open history store: %w", err))
		}
		closers = append(closers, writeDB, readDB)
		if err := db.RunMigrations(writeDB); err != nil {
			return fail(fmt.Errorf("migrate history store: %w", err))
		}
		deps.History = repository.NewQueryHistoryRepo(writeDB, readDB)
		logger.Info("persistent query history enabled", "path", cfg.HistoryDBPath)
	}

	objects, closer, err := openObjectStore(ctx, cfg.BlobStore)
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	if objects != nil {
		deps.Sources = blobstore.NewStore(objects, cfg.BlobStore.Prefix, logger.With("component", "blobstore"))
		logger.Info("source persistence enabled", "kind", cfg.BlobStore.Kind)
	}

	if cfg.TextGen.Enabled() {
		gen, err := textgen.New(textgen.Options{
			APIKey:   cfg.TextGen.APIKey,
			Model:    cfg.TextGen.Model,
			Endpoint: cfg.TextGen.Endpoint,
			Timeout:  cfg.TextGen.Timeout,
			RPS:      cfg.TextGen.RateLimitRPS,
			Burst:    cfg.TextGen.RateLimitBurst,
			Logger:   logger.With("component", "textgen"),
		})
		if err != nil {
			return fail(err)
		}
		deps.Generator = gen
	}

	s, err := New(ctx, deps)
	if err != nil {
		return fail(err)
	}
	s.closers = closers
	return s, nil
}

// openObjectStore selects the blob backend. Both results are nil when
// persistence is disabled; the closer is non-nil only for backends holding a
// client that must be released.
func openObjectStore(ctx context.Context, bc config.BlobStoreConfig) (blobstore.ObjectStore, io.Closer, error) {
	switch bc.Kind {
	case config.BlobFS:
		st, err := blobstore.NewFSStore(bc.Dir)
		return st, nil, err
	case config.BlobS3:
		st, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
			Bucket:   bc.S3Bucket,
			Region:   bc.S3Region,
			Endpoint: bc.S3Endpoint,
			KeyID:    bc.S3KeyID,
			Secret:   bc.S3Secret,
		})
		return st, nil, err
	case config.BlobGCS:
		st, err := blobstore.NewGCSStore(ctx, blobstore.GCSOptions{
			Bucket:          bc.GCSBucket,
			CredentialsFile: bc.GCSCredentialsFile,
			Endpoint:        bc.GCSEndpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case config.BlobAzure:
		st, err := blobstore.NewAzureStore(blobstore.AzureOptions{
			AccountName: bc.AzureAccountName,
			AccountKey:  bc.AzureAccountKey,
			Container:   bc.AzureContainer,
			ServiceURL:  bc.AzureServiceURL,
		})
		return st, nil, err
	case config.BlobNone, "":
		return nil, nil, nil
	default:
		return nil, nil, domain.ErrValidation("unknown blob store kind %q", bc.Kind)
	}
}
