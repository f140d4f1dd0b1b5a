package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"shootboard/internal/config"
	"shootboard/internal/db"
	"shootboard/internal/domain"
	"shootboard/internal/engine"
	"shootboard/internal/events"
	"shootboard/internal/migrate"
	"shootboard/internal/repo"
	shootboardsdk "shootboard/sdk/go"
)

var (
	_ engine.Gateway = repo.Repo{}
	_ engine.Gateway = (*shootboardsdk.Client)(nil)
)

// Overrides carries flag values that win over shootboard.yml.
type Overrides struct {
	RemoteURL string
	Token     string
}

// Gateway is the selected store plus the resources it holds.
type Gateway struct {
	engine.Gateway
	// Repo is set when the gateway is the local SQL store.
	Repo  *repo.Repo
	close func() error
}

func (g *Gateway) Close() error {
	if g == nil || g.close == nil {
		return nil
	}
	return g.close()
}

// Remote reports whether writes go over HTTP.
func (g *Gateway) Remote() bool {
	return g.Repo == nil
}

// Events returns the newest write-log entries from whichever store backs g.
func (g *Gateway) Events(ctx context.Context, n int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if g.Repo != nil {
		return g.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
	}
	c, ok := g.Gateway.(*shootboardsdk.Client)
	if !ok {
		return nil, fmt.Errorf("event log not available")
	}
	items, err := c.Events(ctx, n, entityKind, entityID)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Event, 0, len(items))
	for _, e := range items {
		if evtType != "" && e.Type != evtType {
			continue
		}
		res = append(res, domain.Event(e))
	}
	return res, nil
}

// OpenGateway picks the HTTP client when a remote base url is configured and
// the workspace SQL store otherwise. The local store is migrated before use.
func OpenGateway(ctx context.Context, workspace string, cfg *config.Config, ov Overrides, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.Remote.BaseURL
	if ov.RemoteURL != "" {
		baseURL = ov.RemoteURL
	}
	if baseURL != "" {
		c := shootboardsdk.New(baseURL)
		if cfg.Server.BasePath != "" {
			c.BasePath = cfg.Server.BasePath
		}
		if cfg.Remote.Timeout > 0 {
			c.Timeout = cfg.Remote.Timeout
		}
		c.BearerToken = cfg.Remote.Token
		if ov.Token != "" {
			c.BearerToken = ov.Token
		}
		logger.Debug("using remote gateway", zap.String("base_url", baseURL))
		return &Gateway{Gateway: c}, nil
	}

	conn, r, err := OpenRepo(ctx, workspace, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Gateway{Gateway: r, Repo: &r, close: conn.Close}, nil
}

// OpenRepo opens and migrates the configured SQL store.
func OpenRepo(ctx context.Context, workspace string, cfg *config.Config, logger *zap.Logger) (*sql.DB, repo.Repo, error) {
	dialect := db.Dialect(cfg.Store.Driver)
	conn, err := db.Open(db.Config{Workspace: workspace, Dialect: dialect, DSN: cfg.Store.DSN})
	if err != nil {
		return nil, repo.Repo{}, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, repo.Repo{}, fmt.Errorf("connect %s store: %w", dialect, err)
	}
	if err := migrate.MigrateContext(ctx, conn, dialect); err != nil {
		conn.Close()
		return nil, repo.Repo{}, fmt.Errorf("migrate: %w", err)
	}
	return conn, repo.New(conn, dialect, logger), nil
}

// NewSession builds the engine over gw with the sync timings from cfg and
// performs the initial load. A partial load still returns the session along
// with the LOAD_FAILURE error.
func NewSession(ctx context.Context, gw engine.Gateway, cfg *config.Config, logger *zap.Logger, bus events.Publisher) (*engine.Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	eng := engine.New(gw,
		engine.WithLogger(logger),
		engine.WithBus(bus),
		engine.WithNotifier(engine.NewNotifier(cfg.Sync.NoticeTTL, bus)),
	)
	s := engine.NewSession(eng, engine.AutosaveConfig{
		Debounce:       cfg.Sync.AutosaveDebounce,
		SavedHold:      cfg.Sync.SavedHold,
		RequestTimeout: cfg.Sync.RequestTimeout,
	})
	return s, eng.LoadAll(ctx)
}
