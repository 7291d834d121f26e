package coordinator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/pkg/cache"
	"github.com/pg-sharding/ringkv/pkg/config"
)

// LaunchSpec describes one storage node process to bring up.
type LaunchSpec struct {
	Entry       config.PoolEntry
	CacheSize   int
	CachePolicy cache.Policy
}

// Launcher brings node processes up. Readiness is probed separately over
// the control plane.
//
//go:generate mockgen -source=coordinator/launcher.go -destination=coordinator/mock/launcher.go -package=mock
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) error
}

// ProcessLauncher runs the node binary on the coordinator host.
type ProcessLauncher struct {
	cfg *config.Coordinator
	log zerolog.Logger

	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

var _ Launcher = &ProcessLauncher{}

func NewProcessLauncher(cfg *config.Coordinator, log zerolog.Logger) *ProcessLauncher {
	return &ProcessLauncher{
		cfg:   cfg,
		log:   log,
		procs: map[string]*exec.Cmd{},
	}
}

// args renders the node command line. The node joins the ring empty, so
// its data file is truncated on start.
func (l *ProcessLauncher) args(spec LaunchSpec) []string {
	args := append([]string{}, l.cfg.NodeArgs...)
	args = append(args,
		"run",
		"--host", spec.Entry.Host,
		"--port", strconv.Itoa(spec.Entry.Port),
		"--cache-size", strconv.Itoa(spec.CacheSize),
		"--cache-policy", string(spec.CachePolicy),
		"--hash-function", l.cfg.HashFunction,
		"--qdb-type", l.cfg.QDB.Type,
		"--metadata-path", l.cfg.QDB.MetadataPath,
		"--migration-timeout", l.cfg.MigrationTimeoutDuration().String(),
		"--peer-timeout", l.cfg.ControlTimeoutDuration().String(),
		"--clean",
	)
	if l.cfg.QDB.Addr != "" {
		args = append(args, "--qdb-addr", l.cfg.QDB.Addr)
	}
	if l.cfg.QDB.BackupPath != "" {
		args = append(args, "--qdb-backup-path", l.cfg.QDB.BackupPath)
	}
	if l.cfg.NodeDataDir != "" {
		args = append(args, "--data-dir", l.cfg.NodeDataDir)
	}
	if l.cfg.NodeLogDir != "" {
		args = append(args, "--log-file", filepath.Join(l.cfg.NodeLogDir, spec.Entry.Name+".log"))
	}
	if l.cfg.LogLevel != "" {
		args = append(args, "--log-level", l.cfg.LogLevel)
	}
	return args
}

func (l *ProcessLauncher) Launch(ctx context.Context, spec LaunchSpec) error {
	if l.cfg.NodeBinary == "" {
		l.log.Debug().Str("node", spec.Entry.Name).Msg("coordinator: no node binary configured, expecting node to be started externally")
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cmd, ok := l.procs[spec.Entry.Addr()]; ok {
		return fmt.Errorf("node %s is already running with pid %d", spec.Entry.Name, cmd.Process.Pid)
	}

	cmd := exec.Command(l.cfg.NodeBinary, l.args(spec)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start node %s: %w", spec.Entry.Name, err)
	}
	l.procs[spec.Entry.Addr()] = cmd

	l.log.Info().
		Str("node", spec.Entry.Name).
		Str("addr", spec.Entry.Addr()).
		Int("pid", cmd.Process.Pid).
		Msg("coordinator: node process launched")

	go func() {
		err := cmd.Wait()
		l.mu.Lock()
		if l.procs[spec.Entry.Addr()] == cmd {
			delete(l.procs, spec.Entry.Addr())
		}
		l.mu.Unlock()
		l.log.Info().Err(err).Str("node", spec.Entry.Name).Msg("coordinator: node process exited")
	}()
	return nil
}
