package app

import (
	"context"
	"fmt"
	"net"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/node"
	"github.com/pg-sharding/ringkv/pkg/cache"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/conn"
	"github.com/pg-sharding/ringkv/pkg/ring"
	"github.com/pg-sharding/ringkv/pkg/store"
	"github.com/pg-sharding/ringkv/qdb"
)

type App struct {
	node *node.Node
	cfg  *config.Node
	log  zerolog.Logger
}

func NewApp(n *node.Node, cfg *config.Node, log zerolog.Logger) *App {
	return &App{
		node: n,
		cfg:  cfg,
		log:  log,
	}
}

// NewNode assembles a node from its config and moves it to STOPPED.
func NewNode(ctx context.Context, cfg *config.Node, log zerolog.Logger) (*node.Node, error) {
	hf, err := ring.HashFunctionByName(cfg.HashFunction)
	if err != nil {
		return nil, err
	}
	policy, err := cache.PolicyByName(cfg.CachePolicy)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(policy, cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	var dataPath string
	if cfg.DataDir != "" {
		dataPath = filepath.Join(cfg.DataDir, fmt.Sprintf("%s_%d.json", cfg.Host, cfg.Port))
	}
	durable, err := store.Open(dataPath, log)
	if err != nil {
		return nil, err
	}
	if cfg.Clean {
		if err := durable.Clear(); err != nil {
			return nil, err
		}
		log.Info().Str("path", dataPath).Msg("node: data file truncated")
	}

	db, err := qdb.NewQDB(&cfg.QDB, log)
	if err != nil {
		return nil, err
	}

	n := node.New(node.Options{
		Addr:             cfg.Addr(),
		HashFunction:     hf,
		MetadataPath:     cfg.QDB.MetadataPath,
		MigrationTimeout: cfg.MigrationTimeoutDuration(),
		PeerTimeout:      cfg.PeerTimeoutDuration(),
	}, c, durable, db, log)

	if err := n.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return n, nil
}

// ServeNode listens on the node address until ctx is done or the node is
// shut down through the control plane.
func (app *App) ServeNode(ctx context.Context) error {
	address := app.cfg.Addr()
	listener, err := conn.Listen(address, app.cfg.ReusePort)
	if err != nil {
		return err
	}

	app.log.Info().
		Str("address", address).
		Str("cache policy", app.cfg.CachePolicy).
		Int("cache size", app.cfg.CacheSize).
		Msg("node is ready")

	defer func() {
		if err := app.node.Close(); err != nil {
			app.log.Error().Err(err).Msg("failed to close metadata directory")
		}
	}()
	return app.Serve(ctx, listener)
}

// Serve runs the line protocol on an already bound listener.
func (app *App) Serve(ctx context.Context, listener net.Listener) error {
	srv := conn.NewServer(func(ctx context.Context, frame string) string {
		return app.node.Handle(ctx, frame).String()
	}, app.node.Statistics(), app.log)

	return srv.Serve(ctx, listener, app.node.Done())
}
