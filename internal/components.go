package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/db"
	"github.com/starford/docvault/internal/intake"
	"github.com/starford/docvault/internal/itemservice"
	"github.com/starford/docvault/internal/ocr"
	"github.com/starford/docvault/internal/vaultindex"
)

// components is the set of components every command shares.
type components struct {
	app    *application
	cfg    *Config
	logger *slog.Logger

	db     *db.DB
	caps   *capability.Store
	index  *vaultindex.Builder
	items  *itemservice.Service
	intake *intake.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout, logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// open builds the shared components. intakeOpts are appended to the
// defaults, e.g. to route row updates to SSE.
func open(ctx context.Context, app *application, intakeOpts ...intake.Option) (*components, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.Bool("persist_selection", cfg.Vault.PersistSelection),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ocr_base_url", cfg.OCR.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	database, err := db.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	capOpts := []capability.Option{capability.WithLogger(logger)}
	if app.picker != nil {
		capOpts = append(capOpts, capability.WithPicker(app.picker))
	}
	if cfg.Vault.PersistSelection {
		capOpts = append(capOpts, capability.WithPersister(database))
	}
	caps := capability.NewStore(capOpts...)

	if err := selectVault(ctx, app, caps, logger); err != nil {
		_ = database.Close()
		return nil, err
	}

	index := vaultindex.NewBuilder(caps, logger)
	rt := &components{
		app:    app,
		cfg:    cfg,
		logger: logger,
		db:     database,
		caps:   caps,
		index:  index,
		items:  itemservice.NewService(caps, index, logger),
	}
	opts := append([]intake.Option{
		intake.WithLogger(logger),
		intake.WithClientResolver(index),
	}, intakeOpts...)
	rt.intake = intake.NewService(caps, ocr.New(cfg.OCR.BaseURL, cfg.OCR.Timeout), opts...)
	return rt, nil
}

// selectVault installs the initial vault: an explicit path wins, then the
// persisted selection. Failing both, the picker (if any) is left for the
// first command that needs a vault.
func selectVault(ctx context.Context, app *application, caps *capability.Store, logger *slog.Logger) error {
	path := app.vaultPath
	if path == "" {
		path = app.config.Vault.Path
	}
	if path != "" {
		if _, err := caps.ChooseWith(ctx, capability.StaticPicker(path)); err != nil {
			return fmt.Errorf("select vault %s: %w", path, err)
		}
		return nil
	}
	if !app.config.Vault.PersistSelection {
		return nil
	}
	if _, err := caps.Restore(ctx); err != nil {
		if errors.Is(err, apperr.ErrNoVaultSelected) {
			logger.Info("no persisted vault selection")
		} else {
			logger.Warn("persisted vault not restored", slog.String("error", err.Error()))
		}
	}
	return nil
}

// requireVault returns the selected vault, prompting through the picker
// when nothing is selected yet.
func (rt *components) requireVault(ctx context.Context) (*capability.Capability, error) {
	if c, err := rt.caps.Ensure(); err == nil {
		return c, nil
	}
	if rt.app.picker == nil {
		return nil, apperr.ErrNoVaultSelected
	}
	return rt.caps.Choose(ctx)
}

func (rt *components) Close() error {
	return rt.db.Close()
}
