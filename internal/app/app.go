// Package app wires the SDK together for the CLI: configuration, logging,
// the persisted store, the secret vault, and the wpauth client.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/harborperks/membersdk/internal/store"
	"github.com/harborperks/membersdk/internal/store/sqlite"
	"github.com/harborperks/membersdk/pkg/secrets"
	"github.com/harborperks/membersdk/pkg/slogx"
	"github.com/harborperks/membersdk/pkg/wpauth"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type App struct {
	Config Config
	Logger *slog.Logger
	Store  store.Store
	Client *wpauth.Client
}

func New(cfg Config) (*App, error) {
	logger := slogx.New(slogx.Config{
		App:     "membersdk",
		Version: Version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	st, err := sqlite.NewStore(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	vault := secrets.NewFileVault(cfg.VaultFile, cfg.DeviceKey)

	// No pinned logger: Transport resolves the contextual logger attached
	// to each request's context, falling back to the default installed above
	httpClient := &http.Client{
		Timeout:   15 * time.Second,
		Transport: slogx.NewTransport(nil, nil),
	}

	client := wpauth.New(wpauth.Config{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		HTTPClient:     httpClient,
		Logger:         logger,
	}, st, vault)

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  st,
		Client: client,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
