package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"postline/internal/config"
	"postline/internal/db"
	"postline/internal/domain"
	"postline/internal/engine"
	"postline/internal/identity"
	"postline/internal/migrate"
	"postline/internal/notion"
	"postline/internal/repo"
	"postline/internal/repo/pgstore"
)

// LinkStore is an identity link backend.
type LinkStore interface {
	identity.LinkStore
	ListLinks(ctx context.Context) ([]domain.IdentityLink, error)
	DeleteLink(ctx context.Context, localUserID string) error
	Close() error
}

// App holds the long-lived collaborators of a running service or CLI
// invocation.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Notion *notion.Handle
	Links  LinkStore
	Engine engine.Engine
}

// Open builds the link store, the Notion handle and the engine for cfg.
// Notion credentials are not checked here.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	links, err := OpenLinks(ctx, workspace, cfg.Store)
	if err != nil {
		return nil, err
	}
	handle := notion.NewHandle(notion.Config{
		Token:   cfg.Notion.APIKey,
		BaseURL: cfg.Notion.BaseURL,
		Version: cfg.Notion.Version,
		Logger:  logger.With("component", "notion"),
	})
	resolver := identity.New(NewStrategy(cfg.Notion, handle), links, logger.With("component", "identity"))
	return &App{
		Config: cfg,
		Logger: logger,
		Notion: handle,
		Links:  links,
		Engine: engine.New(handle, resolver, cfg, logger.With("component", "engine")),
	}, nil
}

func (a *App) Close() error {
	return a.Links.Close()
}

// OpenLinks opens and migrates the configured identity link store.
func OpenLinks(ctx context.Context, workspace string, store config.Store) (LinkStore, error) {
	switch store.Driver {
	case config.DriverPostgres:
		s, err := pgstore.Open(ctx, store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverSQLite, "":
		conn, err := db.Open(db.Config{Workspace: workspace, Path: store.DSN})
		if err != nil {
			return nil, err
		}
		if err := migrate.MigrateContext(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return repo.Repo{DB: conn}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", store.Driver)
	}
}

// NewStrategy picks directory lookup when a directory database is
// configured and the workspace user list otherwise.
func NewStrategy(cfg config.Notion, handle *notion.Handle) identity.Strategy {
	if cfg.UsesDirectory() {
		return identity.DirectoryQuery{
			Pages:          handle,
			DatabaseID:     cfg.DirectoryDatabaseID,
			EmailProperty:  cfg.DirectoryEmailProperty,
			PeopleProperty: cfg.DirectoryPeopleProperty,
		}
	}
	return identity.UserScan{Users: handle}
}

// NewLogger returns a slog logger writing to w in the configured format.
func NewLogger(cfg config.Log, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
