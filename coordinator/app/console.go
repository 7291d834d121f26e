package app

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/pkg/cache"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

const (
	ReplyOK    = "OK"
	ReplyError = "ERROR"
)

const consoleHelp = "init <count> [cacheSize] [policy] | addNode [cacheSize] [policy] | " +
	"addNodes <count> [cacheSize] [policy] | removeNode <index...> | start | stop | shutdown | " +
	"list | stats | logLevel <level> | help"

// Execute runs one console command and renders the single line reply.
// Verbs are case insensitive.
func (app *App) Execute(ctx context.Context, line string) string {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return reply("", kverror.New(kverror.KV_INVALID_ARGUMENT, "empty command"))
	}
	verb, args := strings.ToLower(tokens[0]), tokens[1:]

	app.log.Info().Str("command", line).Msg("coordinator console: executing command")

	switch verb {
	case "init":
		if len(args) < 1 {
			return usage("init <count> [cacheSize] [policy]")
		}
		count, err := parseCount(args[0])
		if err != nil {
			return reply("", err)
		}
		size, policy, err := app.cacheArgs(args[1:])
		if err != nil {
			return reply("", err)
		}
		if err := app.coordinator.Initialize(ctx, count, size, policy); err != nil {
			return reply("", err)
		}
		return reply(fmt.Sprintf("initialized %d nodes", count), nil)

	case "addnode":
		size, policy, err := app.cacheArgs(args)
		if err != nil {
			return reply("", err)
		}
		e, err := app.coordinator.AddNode(ctx, size, policy)
		if err != nil {
			return reply("", err)
		}
		return reply("added "+describe(e), nil)

	case "addnodes":
		if len(args) < 1 {
			return usage("addNodes <count> [cacheSize] [policy]")
		}
		count, err := parseCount(args[0])
		if err != nil {
			return reply("", err)
		}
		size, policy, err := app.cacheArgs(args[1:])
		if err != nil {
			return reply("", err)
		}
		added, err := app.coordinator.AddNodes(ctx, count, size, policy)
		if err != nil {
			if len(added) > 0 {
				return reply("", fmt.Errorf("added %s before failure: %w", describeAll(added), err))
			}
			return reply("", err)
		}
		return reply("added "+describeAll(added), nil)

	case "removenode", "removenodes":
		if len(args) < 1 {
			return usage("removeNode <index...>")
		}
		indexes := make([]int, 0, len(args))
		for _, a := range args {
			index, err := strconv.Atoi(a)
			if err != nil {
				return reply("", kverror.Newf(kverror.KV_INVALID_ARGUMENT, "node index %q is not a number", a))
			}
			indexes = append(indexes, index)
		}
		if err := app.coordinator.RemoveNodes(ctx, indexes); err != nil {
			return reply("", err)
		}
		return reply(fmt.Sprintf("removed %d nodes", len(indexes)), nil)

	case "start":
		return reply("storage service started", app.coordinator.Start(ctx))

	case "stop":
		return reply("storage service stopped", app.coordinator.Stop(ctx))

	case "shutdown":
		return reply("storage service shut down", app.coordinator.ShutdownAll(ctx))

	case "list":
		return reply(app.list(), nil)

	case "stats":
		return reply(app.stats(ctx), nil)

	case "loglevel":
		if len(args) != 1 {
			return usage("logLevel <level>")
		}
		level := kvlog.ParseLevel(args[0])
		zerolog.SetGlobalLevel(level)
		return reply("log level "+level.String(), nil)

	case "help":
		return reply(consoleHelp, nil)

	default:
		return reply("", kverror.Newf(kverror.KV_INVALID_ARGUMENT, "unknown command %q, try help", tokens[0]))
	}
}

// cacheArgs reads the optional "[cacheSize] [policy]" tail, falling back to
// the configured defaults.
func (app *App) cacheArgs(args []string) (int, cache.Policy, error) {
	size := app.cfg.DefaultCacheSize
	policyName := app.cfg.DefaultCachePolicy

	if len(args) > 2 {
		return 0, "", kverror.Newf(kverror.KV_INVALID_ARGUMENT, "unexpected arguments %v", args[2:])
	}
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return 0, "", kverror.Newf(kverror.KV_INVALID_ARGUMENT, "cache size %q must be a positive number", args[0])
		}
		size = v
	}
	if len(args) > 1 {
		policyName = args[1]
	}

	policy, err := cache.PolicyByName(policyName)
	if err != nil {
		return 0, "", err
	}
	return size, policy, nil
}

func (app *App) list() string {
	infos := app.coordinator.List()
	if len(infos) == 0 {
		return "node pool is empty"
	}
	rows := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Active {
			rows = append(rows, fmt.Sprintf("%s %s ACTIVE %s", info.Name, info.Addr, info.Range))
		} else {
			rows = append(rows, fmt.Sprintf("%s %s IDLE", info.Name, info.Addr))
		}
	}
	return strings.Join(rows, "; ")
}

func (app *App) stats(ctx context.Context) string {
	m := app.coordinator.MoveStats()
	parts := []string{fmt.Sprintf("moves=%d avg_total=%s avg_qdb=%s avg_node=%s",
		m.TotalMoves, m.TotalTime, m.QDBTime, m.NodeTime)}

	nodes := app.coordinator.NodeStats(ctx)
	for _, addr := range slices.Sorted(maps.Keys(nodes)) {
		parts = append(parts, addr+" "+nodes[addr])
	}
	return strings.Join(parts, "; ")
}

func parseCount(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "node count %q must be a positive number", s)
	}
	return v, nil
}

func describe(e config.PoolEntry) string {
	return e.Name + " " + e.Addr()
}

func describeAll(entries []config.PoolEntry) string {
	ret := make([]string, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, describe(e))
	}
	return strings.Join(ret, ", ")
}

func usage(syntax string) string {
	return reply("", kverror.Newf(kverror.KV_INVALID_ARGUMENT, "usage: %s", syntax))
}

func reply(detail string, err error) string {
	if err != nil {
		return ReplyError + " " + err.Error()
	}
	if detail == "" {
		return ReplyOK
	}
	return ReplyOK + " " + detail
}
