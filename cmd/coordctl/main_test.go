package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pg-sharding/ringkv/pkg/conn"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
)

// fakeConsole answers "OK <line>" except for lines starting with "fail".
func fakeConsole(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l, err := conn.Listen("127.0.0.1:0", false)
	require.NoError(t, err)
	srv := conn.NewServer(func(_ context.Context, line string) string {
		if strings.HasPrefix(line, "fail") {
			return "ERROR Code: KVA. Name: Invalid argument. Description: nope."
		}
		return "OK " + line
	}, nil, kvlog.Nop())
	go func() {
		_ = srv.Serve(ctx, l, nil)
	}()
	return l.Addr().String()
}

func TestExecute(t *testing.T) {
	coordinatorEndpoint = fakeConsole(t)
	requestTimeout = 5 * time.Second

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), &out, "addNodes 2 10 LRU"))
	assert.Equal(t, "OK addNodes 2 10 LRU\n", out.String())

	out.Reset()
	err := execute(context.Background(), &out, "fail now")
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "ERROR"))
}

func TestSubcommandBuildsConsoleLine(t *testing.T) {
	coordinatorEndpoint = fakeConsole(t)
	requestTimeout = 5 * time.Second

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"removeNode", "0", "2", "-e", coordinatorEndpoint})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "OK removeNode 0 2\n", out.String())
}

func TestExecuteUnreachable(t *testing.T) {
	l, err := conn.Listen("127.0.0.1:0", false)
	require.NoError(t, err)
	coordinatorEndpoint = l.Addr().String()
	require.NoError(t, l.Close())
	requestTimeout = time.Second

	assert.Error(t, execute(context.Background(), &bytes.Buffer{}, "list"))
}
