package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/metalagman/tickwise/internal/config"
	"github.com/metalagman/tickwise/internal/containers"
	"github.com/metalagman/tickwise/internal/db"
	"github.com/metalagman/tickwise/internal/index"
	"github.com/metalagman/tickwise/internal/intent"
	"github.com/metalagman/tickwise/internal/orchestrator"
	"github.com/metalagman/tickwise/internal/ticktick"
	"github.com/metalagman/tickwise/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := currentConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	app := fx.New(serverModule(ctx, cfg), fx.WithLogger(func() fxevent.Logger {
		return fxLogger{logger: log.Logger}
	}))
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	select {
	case sig := <-app.Done():
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}

// serverModule wires the serve object graph.
func serverModule(ctx context.Context, cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			provideDB,
			func(conn *sql.DB) *index.Store { return index.NewStore(conn) },
			db.NewStore,
			provideRemote,
			provideDirectory,
			func(cfg config.Config, dir *containers.Directory) (intent.Parser, error) {
				return newParser(ctx, cfg, dir)
			},
			func(cfg config.Config, store *index.Store, journal *db.Store, remote *ticktick.Client, dir *containers.Directory, parser intent.Parser) (*orchestrator.Engine, error) {
				return newEngine(cfg, store, journal, remote, dir, parser)
			},
			provideHTTPServer,
		),
		fx.Invoke(func(*http.Server) {}),
	)
}

func provideDB(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	conn, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		return conn.Close()
	}})
	return conn, nil
}

func provideRemote(cfg config.Config) (*ticktick.Client, error) {
	return newRemote(cfg)
}

func provideDirectory(lc fx.Lifecycle, cfg config.Config, conn *sql.DB, remote *ticktick.Client) *containers.Directory {
	dir := newDirectory(cfg, conn, remote)
	lc.Append(fx.Hook{OnStart: func(context.Context) error {
		go func() {
			ctx, cancel := context.WithTimeout(log.Logger.WithContext(context.Background()), cfg.TickTick.Timeout)
			defer cancel()
			if _, err := dir.List(ctx); err != nil {
				log.Warn().Err(err).Msg("initial container fetch failed")
			}
		}()
		return nil
	}})
	return dir
}

func provideHTTPServer(lc fx.Lifecycle, cfg config.Config, engine *orchestrator.Engine, store *index.Store, journal *db.Store) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           web.NewServer(engine, store, journal, log.Logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("http api listening")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return srv
}

// fxLogger routes fx lifecycle events to zerolog.
type fxLogger struct {
	logger zerolog.Logger
}

func (l fxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.Provided:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("constructor", e.ConstructorName).Msg("fx provide failed")
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("function", e.FunctionName).Msg("fx invoke failed")
		}
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("fx start hook failed")
		} else {
			l.logger.Debug().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("fx start hook done")
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("fx stop hook failed")
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Msg("fx start failed")
		} else {
			l.logger.Debug().Msg("fx started")
		}
	}
}
