package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pg-sharding/ringkv/coordinator"
	"github.com/pg-sharding/ringkv/coordinator/app"
	"github.com/pg-sharding/ringkv/coordinator/mock"
	"github.com/pg-sharding/ringkv/pkg/cache"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/conn"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
	"github.com/pg-sharding/ringkv/pkg/ring"
	"github.com/pg-sharding/ringkv/qdb"
)

type console struct {
	app      *app.App
	control  *mock.MockNodeControl
	launcher *mock.MockLauncher
	pool     []config.PoolEntry
}

func newConsole(t *testing.T) *console {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	cfg := &config.Coordinator{
		Host:               "127.0.0.1",
		DefaultCacheSize:   100,
		DefaultCachePolicy: "LRU",
	}
	pool := []config.PoolEntry{
		{Name: "node0", Host: "127.0.0.1", Port: 6100},
		{Name: "node1", Host: "127.0.0.1", Port: 6101},
	}
	control := mock.NewMockNodeControl(ctrl)
	launcher := mock.NewMockLauncher(ctrl)
	coord := coordinator.NewCoordinator(coordinator.Options{
		HashFunction:  ring.HashFunctionMD5,
		MetadataPath:  "/ringkv/metadata",
		LaunchTimeout: time.Second,
	}, pool, qdb.NewMemQDB("", kvlog.Nop()), control, launcher, kvlog.Nop())

	return &console{
		app:      app.NewApp(coord, cfg, kvlog.Nop()),
		control:  control,
		launcher: launcher,
		pool:     pool,
	}
}

func TestExecuteValidation(t *testing.T) {
	c := newConsole(t)

	for _, tt := range []struct {
		command string
		want    string
	}{
		{command: "", want: "ERROR Code: KVA."},
		{command: "frobnicate", want: "ERROR Code: KVA."},
		{command: "init", want: "ERROR Code: KVA."},
		{command: "init zero", want: "ERROR Code: KVA."},
		{command: "init 1 -5", want: "ERROR Code: KVA."},
		{command: "init 1 10 MRU", want: "ERROR"},
		{command: "init 3", want: "ERROR Code: KVI."},
		{command: "addNode", want: "ERROR Code: KVN."},
		{command: "removeNode x", want: "ERROR Code: KVA."},
		{command: "removeNode 0", want: "ERROR Code: KVA."},
		{command: "start", want: "ERROR Code: KVN."},
		{command: "help", want: "OK init <count>"},
		{command: "list", want: "OK node0 127.0.0.1:6100 IDLE; node1 127.0.0.1:6101 IDLE"},
	} {
		t.Run(tt.command, func(t *testing.T) {
			got := c.app.Execute(context.Background(), tt.command)
			assert.True(t, strings.HasPrefix(got, tt.want), "got %q", got)
		})
	}
}

func TestExecuteInitAndStart(t *testing.T) {
	assert := assert.New(t)
	c := newConsole(t)
	addr := c.pool[0].Addr()

	c.launcher.EXPECT().Launch(gomock.Any(), coordinator.LaunchSpec{
		Entry:       c.pool[0],
		CacheSize:   100,
		CachePolicy: cache.PolicyLRU,
	}).Return(nil)
	c.control.EXPECT().Stats(gomock.Any(), addr).Return("", nil)
	c.control.EXPECT().UpdateMetadata(gomock.Any(), addr).Return(nil)
	c.control.EXPECT().Start(gomock.Any(), addr).Return(nil)
	c.control.EXPECT().Stats(gomock.Any(), addr).Return("connections_active=0", nil)

	assert.Equal("OK initialized 1 nodes", c.app.Execute(context.Background(), "INIT 1"))
	assert.Equal("OK storage service started", c.app.Execute(context.Background(), "start"))

	list := c.app.Execute(context.Background(), "list")
	assert.True(strings.HasPrefix(list, "OK node0 "+addr+" ACTIVE "), list)
	assert.True(strings.HasSuffix(list, "; node1 127.0.0.1:6101 IDLE"), list)

	stats := c.app.Execute(context.Background(), "stats")
	assert.True(strings.HasPrefix(stats, "OK moves=0 "), stats)
	assert.True(strings.HasSuffix(stats, "; "+addr+" connections_active=0"), stats)
}

func TestExecuteAddNodeWithPolicy(t *testing.T) {
	c := newConsole(t)

	c.launcher.EXPECT().Launch(gomock.Any(), gomock.Any()).Return(nil)
	c.control.EXPECT().Stats(gomock.Any(), gomock.Any()).Return("", nil)
	c.control.EXPECT().UpdateMetadata(gomock.Any(), gomock.Any()).Return(nil)
	require.Equal(t, "OK initialized 1 nodes", c.app.Execute(context.Background(), "init 1"))

	c.launcher.EXPECT().Launch(gomock.Any(), coordinator.LaunchSpec{
		Entry:       c.pool[1],
		CacheSize:   5,
		CachePolicy: cache.PolicyLFU,
	}).Return(nil)
	c.control.EXPECT().Stats(gomock.Any(), c.pool[1].Addr()).Return("", nil)
	c.control.EXPECT().LockWrite(gomock.Any(), c.pool[0].Addr(), c.pool[1].Addr(), gomock.Any()).Return(nil)
	c.control.EXPECT().UpdateMetadata(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	c.control.EXPECT().UnlockWrite(gomock.Any(), c.pool[0].Addr()).Return(nil)

	assert.Equal(t, "OK added node1 "+c.pool[1].Addr(), c.app.Execute(context.Background(), "addNode 5 lfu"))
}

func TestServeConsole(t *testing.T) {
	c := newConsole(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := conn.Listen("127.0.0.1:0", false)
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() {
		served <- c.app.Serve(ctx, l)
	}()

	lc, err := conn.Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	defer lc.Close()

	require.NoError(t, lc.WriteFrame(ctx, "logLevel debug"))
	reply, err := lc.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK log level debug", reply)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console did not stop")
	}
}
