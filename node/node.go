package node

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/pkg/cache"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/pkg/protocol"
	"github.com/pg-sharding/ringkv/pkg/ring"
	"github.com/pg-sharding/ringkv/pkg/store"
	"github.com/pg-sharding/ringkv/qdb"
)

type State string

const (
	StateIdle     = State("IDLE")
	StateStopped  = State("STOPPED")
	StateStarted  = State("STARTED")
	StateShutDown = State("SHUT_DOWN")
)

type Options struct {
	Addr         string
	HashFunction ring.HashFunctionType
	MetadataPath string
	// MigrationTimeout bounds a whole outbound migration, PeerTimeout one
	// transfer roundtrip.
	MigrationTimeout time.Duration
	PeerTimeout      time.Duration
}

// Node owns one partition of the ring. Every field below mu is guarded by
// it; handlers of all connections go through that single lock.
type Node struct {
	opts    Options
	durable store.Durable
	db      qdb.QDB
	stats   *Statistics
	log     zerolog.Logger

	mu        sync.Mutex
	state     State
	writeLock bool
	cache     cache.Cache
	meta      *ring.Metadata
	metaBlob  string

	shutdownOnce sync.Once
	done         chan struct{}
}

func New(opts Options, c cache.Cache, durable store.Durable, db qdb.QDB, log zerolog.Logger) *Node {
	return &Node{
		opts:    opts,
		durable: durable,
		db:      db,
		stats:   NewStatistics(),
		log:     log.With().Str("node", opts.Addr).Logger(),
		state:   StateIdle,
		cache:   c,
		meta:    &ring.Metadata{HashFunction: opts.HashFunction},
		done:    make(chan struct{}),
	}
}

// Init pulls the ring assignment and leaves IDLE for STOPPED.
func (n *Node) Init(ctx context.Context) error {
	if err := n.UpdateMetadata(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return kverror.Newf(kverror.KV_UNEXPECTED, "node is already %s", n.state)
	}
	n.state = StateStopped
	n.log.Info().Msg("node: initialized")
	return nil
}

func (n *Node) Addr() string {
	return n.opts.Addr
}

func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Node) WriteLocked() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.writeLock
}

func (n *Node) Statistics() *Statistics {
	return n.stats
}

// Done is closed once the node is shut down.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// ownsLocked reports whether key belongs to this node under the current
// snapshot. Caller holds mu.
func (n *Node) ownsLocked(key string) bool {
	p, ok := n.meta.Lookup(n.opts.Addr)
	if !ok {
		return false
	}
	return ring.Owns(p.Range, ring.Digest(key, n.opts.HashFunction))
}

// ==============================================================================
//                                  CLIENT API
// ==============================================================================

func (n *Node) Get(key string) *protocol.Response {
	defer n.stats.Record(protocol.VerbGet, time.Now())

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateStarted {
		return &protocol.Response{Status: protocol.ServerStopped}
	}
	if err := protocol.ValidateKey(key); err != nil {
		return protocol.KeyValue(protocol.GetError, key, "")
	}
	if !n.ownsLocked(key) {
		return protocol.NotResponsible(n.metaBlob)
	}

	if v, ok := n.cache.Get(key); ok {
		return protocol.KeyValue(protocol.GetSuccess, key, v)
	}
	v, ok := n.durable.Find(key)
	if !ok {
		return protocol.KeyValue(protocol.GetError, key, "")
	}
	n.cachePutLocked(key, v)
	return protocol.KeyValue(protocol.GetSuccess, key, v)
}

func (n *Node) Put(key, value string) *protocol.Response {
	defer n.stats.Record(protocol.VerbPut, time.Now())

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateStarted {
		return &protocol.Response{Status: protocol.ServerStopped}
	}
	if n.writeLock {
		return &protocol.Response{Status: protocol.ServerWriteLock}
	}
	if protocol.ValidateKey(key) != nil || protocol.ValidateValue(value) != nil {
		return protocol.KeyValue(protocol.PutError, key, value)
	}
	if !n.ownsLocked(key) {
		return protocol.NotResponsible(n.metaBlob)
	}

	if protocol.IsDeleteValue(value) {
		inCache := n.cache.Remove(key)
		inStore, err := n.durable.Add(key, "")
		if err != nil {
			n.log.Error().Err(err).Str("key", key).Msg("node: durable delete failed")
			return protocol.KeyValue(protocol.DeleteError, key, value)
		}
		if inCache || inStore {
			return protocol.KeyValue(protocol.DeleteSuccess, key, value)
		}
		return protocol.KeyValue(protocol.DeleteError, key, value)
	}

	existed, err := n.upsertLocked(key, value)
	if err != nil {
		n.log.Error().Err(err).Str("key", key).Msg("node: durable write failed")
		return protocol.KeyValue(protocol.PutError, key, value)
	}
	if existed {
		return protocol.KeyValue(protocol.PutUpdate, key, value)
	}
	return protocol.KeyValue(protocol.PutSuccess, key, value)
}

// upsertLocked writes through the durable store first so that a failed save
// leaves the cache untouched. Caller holds mu.
func (n *Node) upsertLocked(key, value string) (bool, error) {
	inCache := n.cache.Contains(key)
	inStore, err := n.durable.Add(key, value)
	if err != nil {
		return false, err
	}
	n.cachePutLocked(key, value)
	return inCache || inStore, nil
}

func (n *Node) cachePutLocked(key, value string) {
	evicted, err := n.cache.Put(key, value)
	if err != nil {
		n.log.Error().Err(err).Str("key", key).Msg("node: cache put failed")
		return
	}
	if len(evicted) > 0 {
		n.log.Debug().Strs("evicted", evicted).Msg("node: cache eviction")
	}
}

// ==============================================================================
//                                 CONTROL API
// ==============================================================================

// Transfer is the inbound side of a migration. It skips ownership and lock
// checks and is accepted in every state but SHUT_DOWN.
func (n *Node) Transfer(key, value string) *protocol.Response {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == StateShutDown {
		return protocol.Failure("node is shut down")
	}

	if protocol.ValidateKey(key) != nil || protocol.ValidateValue(value) != nil {
		return protocol.Failure("transfer of invalid key or value")
	}
	existed, err := n.upsertLocked(key, value)
	if err != nil {
		n.log.Error().Err(err).Str("key", key).Msg("node: transfer write failed")
		return protocol.Failure(err.Error())
	}
	if existed {
		return protocol.KeyValue(protocol.TransferUpdate, key, value)
	}
	return protocol.KeyValue(protocol.TransferSuccess, key, value)
}

func (n *Node) UnlockWrite() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.writeLock = false
	n.log.Info().Msg("node: write lock released")
}

// UpdateMetadata replaces the ring snapshot with the directory's copy. Keys
// that fall outside a still present partition are dropped locally; they were
// handed to their new owner before the metadata was broadcast.
func (n *Node) UpdateMetadata(ctx context.Context) error {
	raw, err := n.db.ReadMetadata(ctx, n.opts.MetadataPath)
	if err != nil {
		n.log.Error().Err(err).Msg("node: failed to read metadata")
		return err
	}
	meta, err := ring.ParseMetadata(string(raw), n.opts.HashFunction)
	if err != nil {
		n.log.Error().Err(err).Msg("node: failed to parse metadata")
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.meta = meta
	n.metaBlob = meta.Encode()
	n.log.Info().Int("partitions", len(meta.Partitions)).Msg("node: metadata updated")

	return n.pruneLocked()
}

func (n *Node) pruneLocked() error {
	p, ok := n.meta.Lookup(n.opts.Addr)
	if !ok {
		return nil
	}
	owned := func(k string) bool {
		return ring.Owns(p.Range, ring.Digest(k, n.opts.HashFunction))
	}

	for _, k := range n.cache.Keys() {
		if !owned(k) {
			n.cache.Remove(k)
		}
	}
	var stale []string
	n.durable.Range(func(k, _ string) bool {
		if !owned(k) {
			stale = append(stale, k)
		}
		return true
	})
	if len(stale) == 0 {
		return nil
	}
	n.log.Info().Int("keys", len(stale)).Msg("node: dropping keys outside partition")
	return n.durable.DeleteMany(stale)
}

func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateStopped, StateStarted:
		n.state = StateStarted
		n.log.Info().Msg("node: started")
		return nil
	default:
		return kverror.Newf(kverror.KV_NODE_UNAVAILABLE, "cannot start node in state %s", n.state)
	}
}

func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateStopped, StateStarted:
		n.state = StateStopped
		n.log.Info().Msg("node: stopped")
		return nil
	default:
		return kverror.Newf(kverror.KV_NODE_UNAVAILABLE, "cannot stop node in state %s", n.state)
	}
}

// Shutdown is terminal. It signals Done so the listener closes; the
// directory handle is released by Close.
func (n *Node) Shutdown() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == StateShutDown {
		return kverror.New(kverror.KV_NODE_UNAVAILABLE, "node is already shut down")
	}
	n.state = StateShutDown
	n.log.Info().Msg("node: shutting down")
	n.shutdownOnce.Do(func() {
		close(n.done)
	})
	return nil
}

// Close detaches the node from the metadata directory.
func (n *Node) Close() error {
	return n.db.Close()
}
