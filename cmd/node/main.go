package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pg-sharding/ringkv/node/app"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
)

var (
	cfgPath string

	host             string
	port             int
	cacheSize        int
	cachePolicy      string
	hashFunction     string
	dataDir          string
	clean            bool
	qdbType          string
	qdbAddr          string
	qdbBackupPath    string
	metadataPath     string
	migrationTimeout string
	peerTimeout      string
	logFile          string
	logLevel         string
	prettyLogging    bool
)

var rootCmd = &cobra.Command{
	Use:   "ringkv-node run --config `path-to-config`",
	Short: "ringkv storage node",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run storage node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dump, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load node config")
		}

		log, err := kvlog.NewZeroLogger(cfg.LogFile, cfg.LogLevel, cfg.PrettyLogging)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		log = log.With().Str("node", cfg.Addr()).Logger()
		log.Info().RawJSON("config", []byte(dump)).Msg("running config")

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		n, err := app.NewNode(ctx, cfg, log)
		if err != nil {
			return errors.Wrap(err, "node failed to start")
		}

		if err := app.NewApp(n, cfg, log).ServeNode(ctx); err != nil {
			log.Error().Err(err).Msg("node stopped with error")
			return err
		}
		log.Info().Msg("node exited")
		return nil
	},
}

// loadConfig reads the config file if one is given and lets explicitly set
// flags override it.
func loadConfig(cmd *cobra.Command) (*config.Node, string, error) {
	cfg := &config.Node{}
	if cfgPath != "" {
		var err error
		if cfg, _, err = config.LoadNodeCfg(cfgPath); err != nil {
			return nil, "", err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("cache-size") {
		cfg.CacheSize = cacheSize
	}
	if flags.Changed("cache-policy") {
		cfg.CachePolicy = cachePolicy
	}
	if flags.Changed("hash-function") {
		cfg.HashFunction = hashFunction
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("clean") {
		cfg.Clean = clean
	}
	if flags.Changed("qdb-type") {
		cfg.QDB.Type = qdbType
	}
	if flags.Changed("qdb-addr") {
		cfg.QDB.Addr = qdbAddr
	}
	if flags.Changed("qdb-backup-path") {
		cfg.QDB.BackupPath = qdbBackupPath
	}
	if flags.Changed("metadata-path") {
		cfg.QDB.MetadataPath = metadataPath
	}
	if flags.Changed("migration-timeout") {
		cfg.MigrationTimeout = migrationTimeout
	}
	if flags.Changed("peer-timeout") {
		cfg.PeerTimeout = peerTimeout
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("pretty-log") {
		cfg.PrettyLogging = prettyLogging
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	if cfg.Port == 0 {
		return nil, "", fmt.Errorf("node port is not set")
	}
	return cfg, config.Dump(cfg), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	runCmd.Flags().StringVar(&host, "host", "", "listen host")
	runCmd.Flags().IntVar(&port, "port", 0, "listen port")
	runCmd.Flags().IntVar(&cacheSize, "cache-size", config.DefaultCacheSize, "cache capacity in entries")
	runCmd.Flags().StringVar(&cachePolicy, "cache-policy", config.DefaultCachePolicy, "cache eviction policy: FIFO, LRU or LFU")
	runCmd.Flags().StringVar(&hashFunction, "hash-function", "md5", "ring hash function: md5, murmur, city or xxhash")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "", "directory of the durable data file, in memory when empty")
	runCmd.Flags().BoolVar(&clean, "clean", false, "truncate the data file on start")
	runCmd.Flags().StringVar(&qdbType, "qdb-type", config.QDBTypeMem, "metadata directory type: mem or etcd")
	runCmd.Flags().StringVar(&qdbAddr, "qdb-addr", "", "etcd endpoint of the metadata directory")
	runCmd.Flags().StringVar(&qdbBackupPath, "qdb-backup-path", "", "file shared by a mem metadata directory")
	runCmd.Flags().StringVar(&metadataPath, "metadata-path", config.DefaultMetadataPath, "path of the ring metadata blob")
	runCmd.Flags().StringVar(&migrationTimeout, "migration-timeout", "", "bound of one outbound migration")
	runCmd.Flags().StringVar(&peerTimeout, "peer-timeout", "", "bound of one transfer roundtrip")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "log file, stdout when empty")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	runCmd.Flags().BoolVar(&prettyLogging, "pretty-log", false, "human readable log output")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
