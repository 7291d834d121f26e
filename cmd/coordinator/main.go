package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pg-sharding/ringkv/coordinator"
	"github.com/pg-sharding/ringkv/coordinator/app"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
	"github.com/pg-sharding/ringkv/pkg/ring"
	"github.com/pg-sharding/ringkv/qdb"
)

var (
	cfgPath     string
	prettyLog   bool
	logLevel    string
	consolePort int
)

var rootCmd = &cobra.Command{
	Use:   "ringkv-coordinator run --config `path-to-config`",
	Short: "ringkv coordinator",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run coordinator and serve its admin console",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dump, err := config.LoadCoordinatorCfg(cfgPath)
		if err != nil {
			return errors.Wrap(err, "failed to load coordinator config")
		}
		applyOverrides(cmd, cfg)

		log, err := kvlog.NewZeroLogger(cfg.LogFile, cfg.LogLevel, cfg.PrettyLogging)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		log.Info().RawJSON("config", []byte(dump)).Msg("running config")

		hf, err := ring.HashFunctionByName(cfg.HashFunction)
		if err != nil {
			return err
		}

		db, err := qdb.NewQDB(&cfg.QDB, log)
		if err != nil {
			return errors.Wrap(err, "failed to open metadata directory")
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close metadata directory")
			}
		}()

		c := coordinator.NewCoordinator(coordinator.Options{
			HashFunction:  hf,
			MetadataPath:  cfg.QDB.MetadataPath,
			LaunchTimeout: cfg.LaunchTimeoutDuration(),
		},
			cfg.Pool,
			db,
			coordinator.NewTCPControl(cfg.ControlTimeoutDuration(), cfg.MigrationTimeoutDuration(), log),
			coordinator.NewProcessLauncher(cfg, log),
			log,
		)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := app.NewApp(c, cfg, log).Run(ctx); err != nil {
			log.Error().Err(err).Msg("coordinator stopped with error")
			return err
		}
		return nil
	},
}

// applyOverrides lets explicitly passed flags win over the config file.
func applyOverrides(cmd *cobra.Command, cfg *config.Coordinator) {
	flags := cmd.Flags()
	if flags.Changed("pretty-log") {
		cfg.PrettyLogging = prettyLog
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("console-port") {
		cfg.ConsolePort = consolePort
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "/etc/ringkv/coordinator.yaml", "path to config file")

	runCmd.Flags().BoolVarP(&prettyLog, "pretty-log", "P", false, "human readable log output")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	runCmd.Flags().IntVar(&consolePort, "console-port", config.DefaultConsolePort, "admin console port")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
