package app

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/coordinator"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/conn"
)

type App struct {
	coordinator *coordinator.Coordinator
	cfg         *config.Coordinator
	log         zerolog.Logger
}

func NewApp(c *coordinator.Coordinator, cfg *config.Coordinator, log zerolog.Logger) *App {
	return &App{
		coordinator: c,
		cfg:         cfg,
		log:         log,
	}
}

// Run takes the coordinator lock, compensates whatever the previous
// coordinator left behind and serves the admin console until ctx is done.
func (app *App) Run(ctx context.Context) error {
	app.log.Info().Msg("running coordinator app")

	if err := app.coordinator.Lock(ctx, app.cfg.ConsoleAddr()); err != nil {
		return err
	}
	if err := app.coordinator.Recover(ctx); err != nil {
		app.log.Error().Err(err).Msg("failed to recover coordinator state")
		return err
	}

	address := app.cfg.ConsoleAddr()
	listener, err := conn.Listen(address, app.cfg.ReusePort)
	if err != nil {
		app.log.Error().Err(err).Msg("error serve coordinator console")
		return err
	}
	app.log.Info().Str("address", address).Msg("serve coordinator console")

	err = app.Serve(ctx, listener)
	app.log.Debug().Msg("exit coordinator app")
	return err
}

// Serve runs the admin console on an already bound listener.
func (app *App) Serve(ctx context.Context, listener net.Listener) error {
	srv := conn.NewServer(app.Execute, nil, app.log)
	return srv.Serve(ctx, listener, nil)
}
