package coordinator

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/pg-sharding/ringkv/coordinator/statistics"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/pkg/ring"
	"github.com/pg-sharding/ringkv/qdb"
)

const readinessProbeInterval = 100 * time.Millisecond

const (
	serviceStarted = "started"
	serviceStopped = "stopped"
)

type Options struct {
	HashFunction  ring.HashFunctionType
	MetadataPath  string
	LaunchTimeout time.Duration
}

// NodeInfo is one pool slot as reported by List.
type NodeInfo struct {
	Name   string
	Addr   string
	Active bool
	Range  string
}

// Coordinator is the sole writer of the ring metadata. It owns the split of
// the node pool into active and idle slots and drives every membership
// change. Membership operations are serialized.
type Coordinator struct {
	opts     Options
	db       qdb.QDB
	control  NodeControl
	launcher Launcher
	stats    *statistics.Recorder
	log      zerolog.Logger

	pool []config.PoolEntry

	mu          sync.Mutex
	initialized bool
	started     bool
	// active is kept in join order.
	active []config.PoolEntry
	idle   []config.PoolEntry
	meta   *ring.Metadata
}

func NewCoordinator(opts Options, pool []config.PoolEntry, db qdb.QDB, control NodeControl, launcher Launcher, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		opts:     opts,
		db:       db,
		control:  control,
		launcher: launcher,
		stats:    statistics.NewRecorder(),
		log:      log,
		pool:     slices.Clone(pool),
		idle:     slices.Clone(pool),
		meta:     &ring.Metadata{HashFunction: opts.HashFunction},
	}
}

// Lock takes the coordinator lock of the metadata directory for addr.
func (c *Coordinator) Lock(ctx context.Context, addr string) error {
	if err := c.db.TryCoordinatorLock(ctx, addr); err != nil {
		c.log.Error().Err(err).Msg("coordinator: failed to take coordinator lock")
		return err
	}
	c.log.Info().Str("addr", addr).Msg("coordinator: lock acquired")
	return nil
}

func (c *Coordinator) Metadata() *ring.Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

func (c *Coordinator) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Coordinator) MoveStats() *statistics.MoveStatistics {
	return c.stats.GetMoveStats()
}

// List reports active slots in join order followed by idle slots.
func (c *Coordinator) List() []NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := make([]NodeInfo, 0, len(c.active)+len(c.idle))
	for _, e := range c.active {
		info := NodeInfo{Name: e.Name, Addr: e.Addr(), Active: true}
		if p, ok := c.meta.Lookup(e.Addr()); ok {
			info.Range = p.Range.String()
		}
		ret = append(ret, info)
	}
	for _, e := range c.idle {
		ret = append(ret, NodeInfo{Name: e.Name, Addr: e.Addr()})
	}
	return ret
}

// NodeStats collects the stats line of every active node.
func (c *Coordinator) NodeStats(ctx context.Context) map[string]string {
	c.mu.Lock()
	addrs := addrsOf(c.active)
	c.mu.Unlock()

	var mu sync.Mutex
	ret := make(map[string]string, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		g.Go(func() error {
			line, err := c.control.Stats(gctx, addr)
			if err != nil {
				line = err.Error()
			}
			mu.Lock()
			ret[addr] = line
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return ret
}

// ==============================================================================
//                                   HELPERS
// ==============================================================================

func addrsOf(entries []config.PoolEntry) []string {
	ret := make([]string, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.Addr())
	}
	return ret
}

// publish writes meta to the directory and makes it the coordinator's view.
func (c *Coordinator) publish(ctx context.Context, meta *ring.Metadata) error {
	t := time.Now()
	defer func() { c.stats.RecordQDBOperation(time.Since(t)) }()

	if err := c.db.WriteMetadata(ctx, c.opts.MetadataPath, []byte(meta.Encode())); err != nil {
		return err
	}
	c.meta = meta
	c.log.Info().Str("metadata", meta.Encode()).Msg("coordinator: metadata published")
	return nil
}

// servicePath is the directory key holding whether the storage service is
// started, so a restarted coordinator starts joining nodes as well.
func (c *Coordinator) servicePath() string {
	return c.opts.MetadataPath + "/service"
}

// persistStarted records the service state in the directory. Caller holds mu.
func (c *Coordinator) persistStarted(ctx context.Context, started bool) error {
	t := time.Now()
	defer func() { c.stats.RecordQDBOperation(time.Since(t)) }()

	state := serviceStopped
	if started {
		state = serviceStarted
	}
	if err := c.db.WriteMetadata(ctx, c.servicePath(), []byte(state)); err != nil {
		return err
	}
	c.started = started
	return nil
}

// broadcast runs fn against every addr concurrently and returns the first
// error after all calls finished.
func (c *Coordinator) broadcast(ctx context.Context, addrs []string, fn func(ctx context.Context, addr string) error) error {
	t := time.Now()
	defer func() { c.stats.RecordNodeOperation(time.Since(t)) }()

	var g errgroup.Group
	for _, addr := range addrs {
		g.Go(func() error {
			if err := fn(ctx, addr); err != nil {
				c.log.Error().Err(err).Str("addr", addr).Msg("coordinator: node command failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// nodeCall times a single control call.
func (c *Coordinator) nodeCall(fn func() error) error {
	t := time.Now()
	defer func() { c.stats.RecordNodeOperation(time.Since(t)) }()
	return fn()
}

// waitReady polls addr over the control plane until it answers or the
// launch timeout passes.
func (c *Coordinator) waitReady(ctx context.Context, addr string) error {
	backoff := retry.NewConstant(readinessProbeInterval)
	if c.opts.LaunchTimeout > 0 {
		backoff = retry.WithMaxDuration(c.opts.LaunchTimeout, backoff)
	}
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := c.control.Stats(ctx, addr); err != nil {
			c.log.Debug().Err(err).Str("addr", addr).Msg("coordinator: node is not ready yet")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return kverror.Newf(kverror.KV_NODE_UNAVAILABLE, "node %s did not become ready: %s", addr, err)
	}
	return nil
}

// ==============================================================================
//                                   RECOVERY
// ==============================================================================

// Recover rebuilds the active and idle sets from the published metadata and
// compensates a membership change left unfinished by a previous coordinator.
func (c *Coordinator) Recover(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.db.ReadMetadata(ctx, c.opts.MetadataPath)
	if err != nil {
		return err
	}
	meta, err := ring.ParseMetadata(string(raw), c.opts.HashFunction)
	if err != nil {
		return err
	}
	c.adopt(meta)

	state, err := c.db.ReadMetadata(ctx, c.servicePath())
	if err != nil {
		return err
	}
	c.started = c.initialized && string(state) == serviceStarted

	change, err := c.db.GetMembershipChange(ctx)
	if err != nil {
		return err
	}
	if change == nil {
		c.log.Info().
			Int("active", len(c.active)).
			Int("idle", len(c.idle)).
			Bool("started", c.started).
			Msg("coordinator: recovered, no change in flight")
		return nil
	}

	c.log.Info().
		Str("change", change.ID).
		Str("kind", string(change.Kind)).
		Str("node", change.Node).
		Str("status", string(change.Status)).
		Msg("coordinator: found unfinished membership change")

	if change.Status == qdb.ChangeComplete {
		return c.db.RemoveMembershipChange(ctx)
	}

	prev, err := ring.ParseMetadata(change.PrevMetadata, c.opts.HashFunction)
	if err != nil {
		return err
	}
	r, err := ring.ParseRange(change.Range, c.opts.HashFunction)
	if err != nil && change.Range != "" {
		return err
	}

	if err := c.publish(ctx, prev); err != nil {
		return err
	}
	c.adopt(prev)
	if err := c.broadcast(ctx, prev.Addrs(), c.control.UpdateMetadata); err != nil {
		c.log.Warn().Err(err).Msg("coordinator: failed to broadcast restored metadata")
	}

	switch change.Kind {
	case qdb.MembershipAdd:
		if change.Status == qdb.ChangeDataMoved {
			if err := c.control.LockWrite(ctx, change.Node, change.Peer, r); err != nil {
				c.log.Error().Err(err).Msg("coordinator: failed to move keys back to successor")
			}
		}
		if err := c.control.UnlockWrite(ctx, change.Peer); err != nil {
			c.log.Warn().Err(err).Str("node", change.Peer).Msg("coordinator: failed to unlock successor")
		}
		if err := c.control.Shutdown(ctx, change.Node); err != nil {
			c.log.Warn().Err(err).Str("node", change.Node).Msg("coordinator: failed to shut down joining node")
		}
	case qdb.MembershipRemove:
		if err := c.control.UnlockWrite(ctx, change.Node); err != nil {
			c.log.Warn().Err(err).Str("node", change.Node).Msg("coordinator: failed to unlock leaving node")
		}
	}

	c.log.Info().Str("change", change.ID).Msg("coordinator: unfinished membership change rolled back")
	return c.db.RemoveMembershipChange(ctx)
}

// adopt splits the pool by membership in meta: active slots in ring order,
// idle slots in pool order. Caller holds mu.
func (c *Coordinator) adopt(meta *ring.Metadata) {
	byAddr := make(map[string]config.PoolEntry, len(c.pool))
	for _, e := range c.pool {
		byAddr[e.Addr()] = e
	}

	c.active, c.idle = nil, nil
	for _, addr := range meta.Addrs() {
		e, ok := byAddr[addr]
		if !ok {
			c.log.Warn().Str("addr", addr).Msg("coordinator: ring member is not in the node pool")
			continue
		}
		c.active = append(c.active, e)
	}
	for _, e := range c.pool {
		if _, ok := meta.Lookup(e.Addr()); !ok {
			c.idle = append(c.idle, e)
		}
	}
	c.meta = meta
	c.initialized = !meta.Empty()
}
