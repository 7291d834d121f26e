package coordinator_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pg-sharding/ringkv/coordinator"
	"github.com/pg-sharding/ringkv/node"
	"github.com/pg-sharding/ringkv/node/app"
	"github.com/pg-sharding/ringkv/pkg/cache"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/conn"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
	"github.com/pg-sharding/ringkv/pkg/protocol"
	"github.com/pg-sharding/ringkv/pkg/ring"
	"github.com/pg-sharding/ringkv/pkg/store"
	"github.com/pg-sharding/ringkv/qdb"
)

// loopbackLauncher serves nodes in process on listeners bound up front.
type loopbackLauncher struct {
	ctx context.Context
	db  qdb.QDB

	mu        sync.Mutex
	listeners map[string]net.Listener
	nodes     map[string]*node.Node
}

var _ coordinator.Launcher = &loopbackLauncher{}

func (l *loopbackLauncher) Launch(ctx context.Context, spec coordinator.LaunchSpec) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	listener, ok := l.listeners[spec.Entry.Addr()]
	if !ok {
		return fmt.Errorf("no listener for %s", spec.Entry.Addr())
	}
	delete(l.listeners, spec.Entry.Addr())

	c, err := cache.New(spec.CachePolicy, spec.CacheSize)
	if err != nil {
		return err
	}
	durable, err := store.Open("", kvlog.Nop())
	if err != nil {
		return err
	}
	n := node.New(node.Options{
		Addr:             spec.Entry.Addr(),
		HashFunction:     ring.HashFunctionMD5,
		MetadataPath:     metadataPath,
		MigrationTimeout: 5 * time.Second,
		PeerTimeout:      time.Second,
	}, c, durable, l.db, kvlog.Nop())
	if err := n.Init(ctx); err != nil {
		return err
	}
	l.nodes[spec.Entry.Addr()] = n

	a := app.NewApp(n, &config.Node{}, kvlog.Nop())
	go func() {
		_ = a.Serve(l.ctx, listener)
	}()
	return nil
}

func (l *loopbackLauncher) node(addr string) *node.Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nodes[addr]
}

func newCluster(t *testing.T, size int) (*coordinator.Coordinator, *loopbackLauncher) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db := qdb.NewMemQDB("", kvlog.Nop())
	launcher := &loopbackLauncher{
		ctx:       ctx,
		db:        db,
		listeners: map[string]net.Listener{},
		nodes:     map[string]*node.Node{},
	}

	pool := make([]config.PoolEntry, 0, size)
	for i := 0; i < size; i++ {
		l, err := conn.Listen("127.0.0.1:0", false)
		require.NoError(t, err)
		t.Cleanup(func() { _ = l.Close() })

		e := config.PoolEntry{
			Name: fmt.Sprintf("node%d", i),
			Host: "127.0.0.1",
			Port: l.Addr().(*net.TCPAddr).Port,
		}
		launcher.listeners[e.Addr()] = l
		pool = append(pool, e)
	}

	control := coordinator.NewTCPControl(time.Second, 5*time.Second, kvlog.Nop())
	coord := coordinator.NewCoordinator(coordinator.Options{
		HashFunction:  ring.HashFunctionMD5,
		MetadataPath:  metadataPath,
		LaunchTimeout: 5 * time.Second,
	}, pool, db, control, launcher, kvlog.Nop())
	return coord, launcher
}

func request(t *testing.T, addr, frame string) *protocol.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := conn.Do(ctx, addr, frame)
	require.NoError(t, err)
	return resp
}

// checkPlacement asserts that every key is served by its owner only.
func checkPlacement(t *testing.T, coord *coordinator.Coordinator, data map[string]string) {
	t.Helper()

	meta := coord.Metadata()
	for key, value := range data {
		owner, ok := meta.Owner(key)
		require.True(t, ok)
		for _, addr := range meta.Addrs() {
			resp := request(t, addr, "get "+key)
			if addr == owner.Addr {
				assert.Equal(t, protocol.GetSuccess, resp.Status, "key %s on %s", key, addr)
				assert.Equal(t, value, resp.Value, "key %s on %s", key, addr)
			} else {
				assert.Equal(t, protocol.ServerNotResponsible, resp.Status, "key %s on %s", key, addr)
				assert.Equal(t, meta.Encode(), resp.Metadata)
			}
		}
	}
}

func TestClusterMembershipKeepsKeysReachable(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	coord, launcher := newCluster(t, 3)

	require.NoError(t, coord.Initialize(ctx, 2, 16, cache.PolicyLRU))
	require.NoError(t, coord.Start(ctx))

	data := map[string]string{}
	for i := 0; i < 64; i++ {
		key, value := fmt.Sprintf("key%d", i), fmt.Sprintf("value%d", i)
		owner, ok := coord.Metadata().Owner(key)
		require.True(t, ok)
		resp := request(t, owner.Addr, fmt.Sprintf("put %s %s", key, value))
		require.Equal(t, protocol.PutSuccess, resp.Status)
		data[key] = value
	}
	checkPlacement(t, coord, data)

	added, err := coord.AddNode(ctx, 16, cache.PolicyFIFO)
	require.NoError(t, err)
	assert.Equal(node.StateStarted, launcher.node(added.Addr()).State())
	checkPlacement(t, coord, data)

	removed := coord.List()[0]
	require.NoError(t, coord.RemoveNode(ctx, 0))
	checkPlacement(t, coord, data)
	select {
	case <-launcher.node(removed.Addr).Done():
	case <-time.After(5 * time.Second):
		t.Fatal("removed node was not shut down")
	}

	stats := coord.NodeStats(ctx)
	assert.Len(stats, 2)

	require.NoError(t, coord.ShutdownAll(ctx))
	for _, info := range coord.List() {
		assert.False(info.Active)
	}
}
