package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pg-sharding/ringkv/pkg/conn"
)

var (
	coordinatorEndpoint string
	requestTimeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use: "coordctl -e localhost:7000",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// consoleCommand maps a subcommand onto the console verb of the same name.
func consoleCommand(use, verb, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), cmd.OutOrStdout(), strings.Join(append([]string{verb}, args...), " "))
		},
	}
}

// execute sends one console line and prints the reply. An ERROR reply
// fails the command.
func execute(ctx context.Context, out io.Writer, line string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	c, err := conn.Dial(ctx, coordinatorEndpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to dial coordinator %s", coordinatorEndpoint)
	}
	defer c.Close()

	if err := c.WriteFrame(ctx, line); err != nil {
		return errors.Wrap(err, "failed to send command")
	}
	reply, err := c.ReadFrame(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read reply")
	}

	fmt.Fprintln(out, reply)
	if strings.HasPrefix(reply, "ERROR") {
		return errors.Errorf("command %q failed", line)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&coordinatorEndpoint, "endpoint", "e", "localhost:7000", "coordinator console endpoint")
	rootCmd.PersistentFlags().DurationVarP(&requestTimeout, "timeout", "t", 10*time.Minute, "bound of one command")

	rootCmd.AddCommand(
		consoleCommand("init <count> [cacheSize] [policy]", "init", "launch the first nodes of the pool", cobra.RangeArgs(1, 3)),
		consoleCommand("addNode [cacheSize] [policy]", "addNode", "add one idle node to the ring", cobra.MaximumNArgs(2)),
		consoleCommand("addNodes <count> [cacheSize] [policy]", "addNodes", "add several idle nodes to the ring", cobra.RangeArgs(1, 3)),
		consoleCommand("removeNode <index...>", "removeNode", "remove active nodes by join order index", cobra.MinimumNArgs(1)),
		consoleCommand("start", "start", "open all active nodes for clients", cobra.NoArgs),
		consoleCommand("stop", "stop", "close all active nodes for clients", cobra.NoArgs),
		consoleCommand("shutdown", "shutdown", "shut all active nodes down", cobra.NoArgs),
		consoleCommand("list", "list", "list the node pool", cobra.NoArgs),
		consoleCommand("stats", "stats", "show move and node statistics", cobra.NoArgs),
		consoleCommand("logLevel <level>", "logLevel", "change the coordinator log level", cobra.ExactArgs(1)),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
