package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/metalagman/tickwise/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func TestServerModule_GraphIsComplete(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Index.Path = filepath.Join(t.TempDir(), "index.db")
	cfg.TickTick.AccessToken = "token"
	require.NoError(t, fx.ValidateApp(serverModule(context.Background(), cfg), fx.WithLogger(func() fxevent.Logger {
		return fxevent.NopLogger
	})))
}

func TestServerModule_StartsAndStops(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Index.Path = filepath.Join(t.TempDir(), "index.db")
	cfg.TickTick.AccessToken = "token"
	cfg.TickTick.BaseURL = "http://127.0.0.1:1"
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Parser.APIKeyEnv = "TW_TEST_UNSET_KEY"

	app := fx.New(serverModule(context.Background(), cfg), fx.NopLogger)
	require.NoError(t, app.Err())
	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.NoError(t, app.Stop(ctx))
}
