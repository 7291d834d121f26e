package app_test

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

const metadataPath = "/ringkv/metadata"

type running struct {
	node    *node.Node
	durable *store.FileStore
	addr    string
	served  chan error
}

// serve binds a loopback listener and runs a node on it against db.
func serve(t *testing.T, ctx context.Context, db qdb.QDB, l net.Listener) *running {
	t.Helper()

	c, err := cache.New(cache.PolicyLRU, 16)
	require.NoError(t, err)
	durable, err := store.Open("", kvlog.Nop())
	require.NoError(t, err)

	addr := l.Addr().String()
	n := node.New(node.Options{
		Addr:             addr,
		HashFunction:     ring.HashFunctionMD5,
		MetadataPath:     metadataPath,
		MigrationTimeout: 5 * time.Second,
		PeerTimeout:      time.Second,
	}, c, durable, db, kvlog.Nop())
	require.NoError(t, n.Init(ctx))

	r := &running{node: n, durable: durable, addr: addr, served: make(chan error, 1)}
	a := app.NewApp(n, &config.Node{}, kvlog.Nop())
	go func() {
		r.served <- a.Serve(ctx, l)
	}()
	return r
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := conn.Listen("127.0.0.1:0", false)
	require.NoError(t, err)
	return l
}

func publish(t *testing.T, db qdb.QDB, addrs ...string) *ring.Metadata {
	t.Helper()
	meta := ring.Build(addrs, ring.HashFunctionMD5)
	require.NoError(t, db.WriteMetadata(context.Background(), metadataPath, []byte(meta.Encode())))
	return meta
}

func do(t *testing.T, addr, frame string) *protocol.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := conn.Do(ctx, addr, frame)
	require.NoError(t, err)
	return resp
}

func TestServeRoundtrip(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := qdb.NewMemQDB("", kvlog.Nop())
	l := listen(t)
	publish(t, db, l.Addr().String())
	r := serve(t, ctx, db, l)

	c, err := conn.Dial(ctx, r.addr)
	require.NoError(t, err)
	defer c.Close()

	for _, tt := range []struct {
		request string
		want    string
	}{
		{request: "put k v", want: "SERVER_STOPPED"},
		{request: "start", want: "CONTROL_OK start"},
		{request: "put k v", want: "PUT_SUCCESS < k , v >"},
		{request: "get k\r", want: "GET_SUCCESS < k , v >"},
		{request: "put k", want: "DELETE_SUCCESS < k , >"},
		{request: "get k", want: "GET_ERROR < k , >"},
		{request: "", want: "FAILED Code: KVP."},
	} {
		resp, err := c.Roundtrip(ctx, tt.request)
		require.NoError(t, err)
		assert.Contains(resp.String(), tt.want, tt.request)
	}

	assert.EqualValues(1, r.node.Statistics().ActiveConnections.Load())
}

func TestServeShutdown(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := qdb.NewMemQDB("", kvlog.Nop())
	l := listen(t)
	publish(t, db, l.Addr().String())
	r := serve(t, ctx, db, l)

	idle, err := conn.Dial(ctx, r.addr)
	require.NoError(t, err)
	defer idle.Close()

	resp := do(t, r.addr, "shutdown")
	assert.Equal(protocol.ControlOK, resp.Status)
	assert.Equal(protocol.VerbShutdown, resp.Verb)

	select {
	case err := <-r.served:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after shutdown")
	}

	_, err = idle.ReadFrame(ctx)
	assert.Error(err)

	_, err = conn.Dial(ctx, r.addr)
	assert.Error(err)
}

func TestServeOversizedFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := qdb.NewMemQDB("", kvlog.Nop())
	l := listen(t)
	publish(t, db, l.Addr().String())
	r := serve(t, ctx, db, l)

	c, err := conn.Dial(ctx, r.addr)
	require.NoError(t, err)
	defer c.Close()

	big := make([]byte, protocol.MaxFrameSize+1)
	for i := range big {
		big[i] = 'x'
	}
	_ = c.WriteFrame(ctx, "put k "+string(big))

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	defer readCancel()
	line, err := c.ReadFrame(readCtx)
	require.NoError(t, err)
	resp, err := protocol.ParseResponse(line)
	require.NoError(t, err)
	assert.Equal(t, protocol.Failed, resp.Status)

	// The connection keeps serving after the oversized frame.
	resp, err = c.Roundtrip(readCtx, "stats")
	require.NoError(t, err)
	assert.Equal(t, protocol.ControlOK, resp.Status)
	assert.Equal(t, protocol.ControlOK, do(t, r.addr, "stats").Status)
}

func TestMigration(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := qdb.NewMemQDB("", kvlog.Nop())
	la, lb := listen(t), listen(t)
	addrA, addrB := la.Addr().String(), lb.Addr().String()

	publish(t, db, addrA)
	a := serve(t, ctx, db, la)
	require.NoError(t, a.node.Start())

	keys := map[string]string{}
	for i := 0; i < 64; i++ {
		k, v := fmt.Sprintf("key%d", i), fmt.Sprintf("value %d", i)
		keys[k] = v
		require.Equal(t, protocol.PutSuccess, do(t, addrA, "put "+k+" "+v).Status)
	}

	next := publish(t, db, addrA, addrB)
	b := serve(t, ctx, db, lb)
	require.NoError(t, b.node.Start())

	pb, ok := next.Lookup(addrB)
	require.True(t, ok)

	var expected int
	for k := range keys {
		if p, _ := next.Owner(k); p.Addr == addrB {
			expected++
		}
	}
	require.Greater(t, expected, 0)

	resp := do(t, addrA, fmt.Sprintf("lockWrite %s %s", addrB, pb.Range))
	assert.Equal(protocol.ControlOK, resp.Status)
	assert.Equal(fmt.Sprintf("moved %d keys", expected), resp.Detail)
	assert.Equal(protocol.ServerWriteLock, do(t, addrA, "put key0 other").Status)

	assert.Equal(protocol.ControlOK, do(t, addrA, "update_metadata").Status)
	assert.Equal(protocol.ControlOK, do(t, addrB, "update_metadata").Status)
	assert.Equal(protocol.ControlOK, do(t, addrA, "unlockWrite").Status)

	for k, v := range keys {
		owner, _ := next.Owner(k)
		other := addrA
		if owner.Addr == addrA {
			other = addrB
		}
		assert.Equal(protocol.KeyValue(protocol.GetSuccess, k, v), do(t, owner.Addr, "get "+k), k)
		assert.Equal(protocol.ServerNotResponsible, do(t, other, "get "+k).Status, k)
	}

	assert.Equal(len(keys)-expected, a.durable.Len())
	assert.Equal(expected, b.durable.Len())
}

func TestMigrationPeerDown(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := qdb.NewMemQDB("", kvlog.Nop())
	la := listen(t)
	addrA := la.Addr().String()
	publish(t, db, addrA)
	a := serve(t, ctx, db, la)
	require.NoError(t, a.node.Start())
	require.Equal(t, protocol.PutSuccess, do(t, addrA, "put k v").Status)

	lb := listen(t)
	addrB := lb.Addr().String()
	require.NoError(t, lb.Close())

	pb, _ := ring.Build([]string{addrA, addrB}, ring.HashFunctionMD5).Lookup(addrB)
	whole := ring.Range{Lower: pb.Range.Lower, Upper: pb.Range.Lower}

	resp := do(t, addrA, fmt.Sprintf("lockWrite %s %s", addrB, whole))
	assert.Equal(protocol.ControlError, resp.Status)
	assert.True(a.node.WriteLocked())

	// Nothing was lost on the source.
	assert.Equal(protocol.ControlOK, do(t, addrA, "unlockWrite").Status)
	assert.Equal(protocol.KeyValue(protocol.GetSuccess, "k", "v"), do(t, addrA, "get k"))
}

func TestNewNodeClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "127.0.0.1_5999.json")

	durable, err := store.Open(path, kvlog.Nop())
	require.NoError(t, err)
	_, err = durable.Add("stale", "value")
	require.NoError(t, err)

	for _, tt := range []struct {
		clean bool
		want  int
	}{
		{clean: false, want: 1},
		{clean: true, want: 0},
	} {
		cfg := &config.Node{Host: "127.0.0.1", Port: 5999, DataDir: dir, Clean: tt.clean}
		require.NoError(t, cfg.Validate())

		n, err := app.NewNode(context.Background(), cfg, kvlog.Nop())
		require.NoError(t, err)
		assert.Equal(t, node.StateStopped, n.State())
		require.NoError(t, n.Close())

		reopened, err := store.Open(path, kvlog.Nop())
		require.NoError(t, err)
		assert.Equal(t, tt.want, reopened.Len(), "clean=%v", tt.clean)
	}
}
