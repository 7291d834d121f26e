package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pg-sharding/ringkv/pkg/client"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
	"github.com/pg-sharding/ringkv/pkg/protocol"
)

var (
	cfgPath    string
	host       string
	port       int
	returnHome bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use: "kvctl --host localhost --port 5000",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "read a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, r *client.Router) (*protocol.Response, error) {
			return r.Get(ctx, args[0])
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <key> [value...]",
	Short: "write a key, an empty value or null deletes it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, r *client.Router) (*protocol.Response, error) {
			return r.Put(ctx, args[0], strings.Join(args[1:], " "))
		})
	},
}

func loadConfig(cmd *cobra.Command) (*config.Client, error) {
	cfg := &config.Client{}
	if cfgPath != "" {
		var err error
		if cfg, _, err = config.LoadClientCfg(cfgPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("host") || cfgPath == "" {
		cfg.Host = host
	}
	if flags.Changed("port") || cfgPath == "" {
		cfg.Port = port
	}
	if flags.Changed("return-home") {
		cfg.ReturnHome = returnHome
	}
	if flags.Changed("log-level") || cfgPath == "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, request func(ctx context.Context, r *client.Router) (*protocol.Response, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load client config")
	}
	log, err := kvlog.NewZeroLogger(cfg.LogFile, cfg.LogLevel, true)
	if err != nil {
		return err
	}

	r, err := client.NewRouter(cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()

	resp, err := request(cmd.Context(), r)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	return report(cmd.OutOrStdout(), resp)
}

// report prints the reply and fails on statuses that signal an error.
func report(out io.Writer, resp *protocol.Response) error {
	fmt.Fprintln(out, resp.String())
	switch resp.Status {
	case protocol.GetError, protocol.PutError, protocol.DeleteError,
		protocol.ServerStopped, protocol.ServerWriteLock, protocol.Failed:
		return errors.Errorf("request answered with %s", resp.Status)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to client config file")
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "home node host")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 5000, "home node port")
	rootCmd.PersistentFlags().BoolVar(&returnHome, "return-home", false, "reconnect to the home node after a redirect")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level")

	rootCmd.AddCommand(getCmd, putCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
