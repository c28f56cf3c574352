package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/tickwise/internal/config"
	"github.com/metalagman/tickwise/internal/containers"
	"github.com/metalagman/tickwise/internal/db"
	"github.com/metalagman/tickwise/internal/dispatch"
	"github.com/metalagman/tickwise/internal/index"
	"github.com/metalagman/tickwise/internal/intent"
	"github.com/metalagman/tickwise/internal/mutation"
	"github.com/metalagman/tickwise/internal/orchestrator"
	"github.com/metalagman/tickwise/internal/resolve"
	"github.com/metalagman/tickwise/internal/ticktick"
	"github.com/rs/zerolog/log"
)

func workDir() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return root, nil
}

func currentConfig() (config.Config, error) {
	root, err := workDir()
	if err != nil {
		return config.Config{}, err
	}
	return loadConfig(root)
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Index.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return db.Open(cfg.Index.Path)
}

func newRemote(cfg config.Config) (*ticktick.Client, error) {
	token := cfg.TickTickToken()
	if token == "" {
		return nil, fmt.Errorf("ticktick access token is not set (ticktick.access_token or $%s)", cfg.TickTick.AccessTokenEnv)
	}
	return ticktick.New(cfg.TickTick.BaseURL, token, ticktick.WithTimeout(cfg.TickTick.Timeout))
}

func newDirectory(cfg config.Config, conn *sql.DB, remote containers.Lister) *containers.Directory {
	return containers.NewDirectory(remote,
		containers.WithTTL(cfg.TickTick.ContainerTTL),
		containers.WithDefault(cfg.TickTick.DefaultContainer),
		containers.WithSnapshots(containers.NewSnapshots(conn)),
	)
}

// newParser returns nil when no API key is configured.
func newParser(ctx context.Context, cfg config.Config, dir *containers.Directory) (intent.Parser, error) {
	key := cfg.ParserKey()
	if key == "" {
		return nil, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	p, err := intent.NewGeminiParser(ctx, intent.GeminiConfig{
		APIKey:     key,
		Model:      cfg.Parser.Model,
		BaseURL:    cfg.Parser.BaseURL,
		Timeout:    cfg.Parser.Timeout,
		Location:   loc,
		Containers: dir,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newEngine(cfg config.Config, store *index.Store, journal *db.Store, remote dispatch.Remote, dir *containers.Directory, parser intent.Parser) (*orchestrator.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Deps{
		Resolver: resolve.New(store, resolve.WithCompleted(cfg.Index.IncludeCompleted)),
		Index:    store,
		Mutator:  mutation.New(mutation.WithLocation(loc)),
		Dispatcher: dispatch.New(remote, store,
			dispatch.WithDefaultContainer(cfg.TickTick.DefaultContainer),
			dispatch.WithRetry(cfg.Dispatch.RetryAttempts, cfg.Dispatch.RetryBackoff),
		),
		Containers: dir,
		Parser:     parser,
		Journal:    journal,
	}), nil
}

// app is the object graph used by one-shot commands.
type app struct {
	cfg        config.Config
	db         *sql.DB
	index      *index.Store
	journal    *db.Store
	remote     *ticktick.Client
	containers *containers.Directory
	engine     *orchestrator.Engine
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// openIndexOnly opens the local database without touching the remote.
func openIndexOnly() (*app, error) {
	cfg, err := currentConfig()
	if err != nil {
		return nil, err
	}
	conn, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, db: conn, index: index.NewStore(conn), journal: db.NewStore(conn)}, nil
}

// openApp builds the full graph. The parser is required only when
// needParser is set.
func openApp(ctx context.Context, needParser bool) (*app, error) {
	a, err := openIndexOnly()
	if err != nil {
		return nil, err
	}
	if a.remote, err = newRemote(a.cfg); err != nil {
		a.Close()
		return nil, err
	}
	a.containers = newDirectory(a.cfg, a.db, a.remote)

	parser, err := newParser(ctx, a.cfg, a.containers)
	if err != nil {
		a.Close()
		return nil, err
	}
	if parser == nil && needParser {
		a.Close()
		return nil, fmt.Errorf("parser api key is not set (parser.api_key or $%s)", a.cfg.Parser.APIKeyEnv)
	}
	if parser == nil {
		log.Debug().Msg("no parser configured, free-text commands are disabled")
	}
	if a.engine, err = newEngine(a.cfg, a.index, a.journal, a.remote, a.containers, parser); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
