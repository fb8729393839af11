package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/zoobzio/veil"
	"github.com/zoobzio/veil/config"
	"github.com/zoobzio/veil/internal/telemetry"
	"github.com/zoobzio/veil/keys"
	"github.com/zoobzio/veil/keys/gormstore"
	"github.com/zoobzio/veil/keys/kms"
)

// app holds the components built from one configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *keys.Manager
	pipeline *veil.Pipeline
	closers  []func() error
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.LogLevel()
	return telemetry.NewLogger(w, level, cfg.Log.Format, cfg.Otel.ProjectID)
}

// newApp wires the store, KMS, key manager and pipeline, and bootstraps
// configured slots.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := append(cfg.ManagerOptions(), keys.WithLogger(logger))
	if cfg.KMS.KeyName != "" {
		var kmsOpts []option.ClientOption
		if cfg.KMS.CredentialsFile != "" {
			kmsOpts = append(kmsOpts, kms.WithCredentialsFile(cfg.KMS.CredentialsFile))
		}
		client, err := kms.New(ctx, cfg.KMS.KeyName, kmsOpts...)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		opts = append(opts, keys.WithKMS(client))
	}

	a.manager = keys.NewManager(store, opts...)
	if err := a.manager.Bootstrap(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("bootstrap keys: %w", err)
	}

	crypterOpts, err := cfg.CrypterOptions()
	if err != nil {
		a.close()
		return nil, err
	}
	crypter, err := veil.NewCrypter(a.manager, append(crypterOpts, veil.WithCrypterLogger(logger))...)
	if err != nil {
		a.close()
		return nil, err
	}
	digester, err := cfg.Digester()
	if err != nil {
		a.close()
		return nil, err
	}
	a.pipeline, err = veil.NewPipeline(crypter, digester,
		veil.WithClassifier(cfg.Classifier()),
		veil.WithLogger(logger),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (keys.Store, error) {
	if a.cfg.Store.Driver == config.DriverMemory {
		a.logger.WarnContext(ctx, "using in-memory key store, keys are lost on exit",
			"operation", "open_store",
		)
		return keys.NewMemoryStore(), nil
	}

	db, err := gormstore.Open(a.cfg.Store.Driver, a.cfg.Store.DSN, a.cfg.Pool())
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sqlDB.Close)

	store := gormstore.New(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate key store: %w", err)
	}
	return store, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
