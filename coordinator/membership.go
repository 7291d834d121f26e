package coordinator

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pg-sharding/ringkv/pkg/cache"
	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/pkg/ring"
	"github.com/pg-sharding/ringkv/qdb"
)

var errNotInitialized = kverror.New(kverror.KV_NODE_UNAVAILABLE, "storage service is not initialized")

// Initialize launches the first activeCount pool slots and publishes the
// ring they form.
func (c *Coordinator) Initialize(ctx context.Context, activeCount, cacheSize int, policy cache.Policy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return kverror.New(kverror.KV_INVALID_ARGUMENT, "storage service has already been initialized")
	}
	if activeCount < 1 {
		return kverror.Newf(kverror.KV_INVALID_ARGUMENT, "node count must be positive, got %d", activeCount)
	}
	if activeCount > len(c.idle) {
		return kverror.Newf(kverror.KV_NO_IDLE_NODES, "requested %d nodes, only %d idle", activeCount, len(c.idle))
	}

	entries := slices.Clone(c.idle[:activeCount])
	prev := c.meta
	next := ring.Build(addrsOf(entries), c.opts.HashFunction)

	c.log.Info().Int("nodes", activeCount).Int("cache size", cacheSize).Str("policy", string(policy)).Msg("coordinator: initializing storage service")

	err := c.runSaga(ctx, nil,
		sagaStep{
			name: "reserve nodes",
			do: func(context.Context) error {
				c.idle = c.idle[activeCount:]
				return nil
			},
			undo: func(context.Context) error {
				c.idle = append(slices.Clone(entries), c.idle...)
				return nil
			},
		},
		sagaStep{
			name: "publish metadata",
			do: func(ctx context.Context) error {
				return c.publish(ctx, next)
			},
			undo: func(ctx context.Context) error {
				return c.publish(ctx, prev)
			},
		},
		sagaStep{
			name: "launch nodes",
			do: func(ctx context.Context) error {
				g, gctx := errgroup.WithContext(ctx)
				for _, e := range entries {
					g.Go(func() error {
						return c.launch(gctx, e, cacheSize, policy)
					})
				}
				if err := g.Wait(); err != nil {
					c.shutdownQuietly(context.WithoutCancel(ctx), addrsOf(entries))
					return err
				}
				return nil
			},
			undo: func(ctx context.Context) error {
				c.shutdownQuietly(ctx, addrsOf(entries))
				return nil
			},
		},
		sagaStep{
			name: "broadcast metadata",
			do: func(ctx context.Context) error {
				return c.broadcast(ctx, addrsOf(entries), c.control.UpdateMetadata)
			},
		},
		sagaStep{
			name: "commit",
			do: func(context.Context) error {
				c.active = entries
				c.initialized = true
				c.started = false
				return nil
			},
		},
	)
	if err != nil {
		return err
	}
	c.log.Info().Int("nodes", len(c.active)).Msg("coordinator: storage service initialized")
	return nil
}

// AddNode moves one idle slot into the ring. The successor streams the
// carved out range to the new node under its write lock before the new
// metadata is broadcast.
func (c *Coordinator) AddNode(ctx context.Context, cacheSize int, policy cache.Policy) (config.PoolEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addNode(ctx, cacheSize, policy)
}

// AddNodes adds count nodes one after another and returns those that made it.
func (c *Coordinator) AddNodes(ctx context.Context, count, cacheSize int, policy cache.Policy) ([]config.PoolEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if count < 1 {
		return nil, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "node count must be positive, got %d", count)
	}
	if count > len(c.idle) {
		return nil, kverror.Newf(kverror.KV_NO_IDLE_NODES, "requested %d nodes, only %d idle", count, len(c.idle))
	}

	var added []config.PoolEntry
	for i := 0; i < count; i++ {
		e, err := c.addNode(ctx, cacheSize, policy)
		if err != nil {
			return added, err
		}
		added = append(added, e)
	}
	return added, nil
}

func (c *Coordinator) addNode(ctx context.Context, cacheSize int, policy cache.Policy) (config.PoolEntry, error) {
	if !c.initialized {
		return config.PoolEntry{}, errNotInitialized
	}
	if len(c.idle) == 0 {
		return config.PoolEntry{}, kverror.New(kverror.KV_NO_IDLE_NODES, "no idle nodes left in the pool")
	}

	c.stats.RecordMoveStart(time.Now())
	defer func() {
		_ = c.stats.RecordMoveFinish(time.Now())
	}()

	entry := c.idle[0]
	addr := entry.Addr()
	prev := c.meta
	prevActive := addrsOf(c.active)
	next := ring.Build(append(slices.Clone(prevActive), addr), c.opts.HashFunction)

	part, _ := next.Lookup(addr)
	succ, hasSucc := next.Successor(addr)
	hasSucc = hasSucc && succ.Addr != addr

	change := &qdb.MembershipChange{
		ID:           uuid.NewString(),
		Kind:         qdb.MembershipAdd,
		Node:         addr,
		Range:        part.Range.String(),
		PrevMetadata: prev.Encode(),
		NextMetadata: next.Encode(),
		Status:       qdb.ChangePlanned,
	}
	if hasSucc {
		change.Peer = succ.Addr
	}
	if err := c.recordChange(ctx, change); err != nil {
		return config.PoolEntry{}, err
	}

	c.log.Info().
		Str("change", change.ID).
		Str("node", addr).
		Str("range", part.Range.String()).
		Str("successor", change.Peer).
		Msg("coordinator: adding node")

	steps := []sagaStep{
		{
			name: "reserve idle node",
			do: func(context.Context) error {
				c.idle = c.idle[1:]
				return nil
			},
			undo: func(context.Context) error {
				c.idle = append([]config.PoolEntry{entry}, c.idle...)
				return nil
			},
		},
		{
			name: "publish metadata",
			do: func(ctx context.Context) error {
				if err := c.publish(ctx, next); err != nil {
					return err
				}
				return c.setChangeStatus(ctx, change, qdb.ChangeMetadataPublished)
			},
			undo: func(ctx context.Context) error {
				if err := c.publish(ctx, prev); err != nil {
					return err
				}
				return c.broadcast(ctx, prevActive, c.control.UpdateMetadata)
			},
		},
		{
			name: "launch node",
			do: func(ctx context.Context) error {
				if err := c.launch(ctx, entry, cacheSize, policy); err != nil {
					c.shutdownQuietly(context.WithoutCancel(ctx), []string{addr})
					return err
				}
				return nil
			},
			undo: func(ctx context.Context) error {
				c.shutdownQuietly(ctx, []string{addr})
				return nil
			},
		},
	}

	if hasSucc {
		steps = append(steps, sagaStep{
			name: "migrate range from successor",
			do: func(ctx context.Context) error {
				err := c.nodeCall(func() error {
					return c.control.LockWrite(ctx, succ.Addr, addr, part.Range)
				})
				if err != nil {
					if unlockErr := c.control.UnlockWrite(context.WithoutCancel(ctx), succ.Addr); unlockErr != nil {
						return errors.Join(err, unlockErr)
					}
					return err
				}
				return c.setChangeStatus(ctx, change, qdb.ChangeDataMoved)
			},
			undo: func(ctx context.Context) error {
				// The successor may already have dropped the range.
				return c.nodeCall(func() error {
					if err := c.control.LockWrite(ctx, addr, succ.Addr, part.Range); err != nil {
						c.log.Error().Err(err).Str("node", addr).Msg("coordinator: failed to move keys back to successor")
					}
					_ = c.control.UnlockWrite(ctx, addr)
					return c.control.UnlockWrite(ctx, succ.Addr)
				})
			},
		})
	}

	steps = append(steps, sagaStep{
		name: "broadcast metadata",
		do: func(ctx context.Context) error {
			return c.broadcast(ctx, append(slices.Clone(prevActive), addr), c.control.UpdateMetadata)
		},
	})

	if c.started {
		steps = append(steps, sagaStep{
			name: "start node",
			do: func(ctx context.Context) error {
				return c.nodeCall(func() error { return c.control.Start(ctx, addr) })
			},
		})
	}

	if hasSucc {
		steps = append(steps, sagaStep{
			name: "unlock successor",
			do: func(ctx context.Context) error {
				return c.nodeCall(func() error { return c.control.UnlockWrite(ctx, succ.Addr) })
			},
		})
	}

	steps = append(steps, sagaStep{
		name: "commit",
		do: func(context.Context) error {
			c.active = append(c.active, entry)
			return nil
		},
		undo: func(context.Context) error {
			c.active = slices.DeleteFunc(c.active, func(e config.PoolEntry) bool { return e.Addr() == addr })
			return nil
		},
	})

	if err := c.runSaga(ctx, change, steps...); err != nil {
		return config.PoolEntry{}, err
	}
	c.log.Info().Str("node", addr).Int("active", len(c.active)).Msg("coordinator: node added")
	return entry, nil
}

// RemoveNode takes the active slot at index (join order) out of the ring.
// Its successor absorbs the range, then the node streams its keys there and
// is shut down.
func (c *Coordinator) RemoveNode(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.active) {
		return kverror.Newf(kverror.KV_INVALID_ARGUMENT, "node index %d out of range [0, %d)", index, len(c.active))
	}
	return c.removeNode(ctx, c.active[index].Addr())
}

// RemoveNodes removes several slots. Indexes refer to the active list as it
// was before the first removal.
func (c *Coordinator) RemoveNodes(ctx context.Context, indexes []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	addrs := make([]string, 0, len(indexes))
	seen := map[int]bool{}
	for _, index := range indexes {
		if index < 0 || index >= len(c.active) {
			return kverror.Newf(kverror.KV_INVALID_ARGUMENT, "node index %d out of range [0, %d)", index, len(c.active))
		}
		if !seen[index] {
			seen[index] = true
			addrs = append(addrs, c.active[index].Addr())
		}
	}
	for _, addr := range addrs {
		if err := c.removeNode(ctx, addr); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) removeNode(ctx context.Context, addr string) error {
	index := slices.IndexFunc(c.active, func(e config.PoolEntry) bool { return e.Addr() == addr })
	if index < 0 {
		return kverror.Newf(kverror.KV_INVALID_ARGUMENT, "node %s is not active", addr)
	}
	entry := c.active[index]

	c.stats.RecordMoveStart(time.Now())
	defer func() {
		_ = c.stats.RecordMoveFinish(time.Now())
	}()

	prev := c.meta
	prevActive := addrsOf(c.active)
	remaining := slices.Delete(slices.Clone(prevActive), index, index+1)
	next := ring.Build(remaining, c.opts.HashFunction)

	detach := sagaStep{
		name: "detach node",
		do: func(context.Context) error {
			c.active = slices.Delete(c.active, index, index+1)
			return nil
		},
		undo: func(context.Context) error {
			c.active = slices.Insert(c.active, index, entry)
			return nil
		},
	}
	shutdown := sagaStep{
		name: "shut down node",
		do: func(ctx context.Context) error {
			c.shutdownQuietly(ctx, []string{addr})
			return nil
		},
	}
	release := sagaStep{
		name: "release node to idle pool",
		do: func(context.Context) error {
			c.idle = append(c.idle, entry)
			return nil
		},
	}

	if len(remaining) == 0 {
		c.log.Info().Str("node", addr).Msg("coordinator: removing last node, no migration")
		err := c.runSaga(ctx, nil,
			detach,
			sagaStep{
				name: "publish metadata",
				do: func(ctx context.Context) error {
					return c.publish(ctx, next)
				},
				undo: func(ctx context.Context) error {
					return c.publish(ctx, prev)
				},
			},
			shutdown,
			release,
		)
		if err == nil {
			c.log.Info().Str("node", addr).Msg("coordinator: node removed")
		}
		return err
	}

	part, _ := prev.Lookup(addr)
	succ, _ := next.OwnerOf(ring.Digest(addr, c.opts.HashFunction))

	change := &qdb.MembershipChange{
		ID:           uuid.NewString(),
		Kind:         qdb.MembershipRemove,
		Node:         addr,
		Peer:         succ.Addr,
		Range:        part.Range.String(),
		PrevMetadata: prev.Encode(),
		NextMetadata: next.Encode(),
		Status:       qdb.ChangePlanned,
	}
	if err := c.recordChange(ctx, change); err != nil {
		return err
	}

	c.log.Info().
		Str("change", change.ID).
		Str("node", addr).
		Str("range", part.Range.String()).
		Str("successor", succ.Addr).
		Msg("coordinator: removing node")

	err := c.runSaga(ctx, change,
		detach,
		sagaStep{
			name: "publish metadata",
			do: func(ctx context.Context) error {
				if err := c.publish(ctx, next); err != nil {
					return err
				}
				return c.setChangeStatus(ctx, change, qdb.ChangeMetadataPublished)
			},
			undo: func(ctx context.Context) error {
				if err := c.publish(ctx, prev); err != nil {
					return err
				}
				return c.broadcast(ctx, prevActive, c.control.UpdateMetadata)
			},
		},
		sagaStep{
			name: "broadcast metadata",
			do: func(ctx context.Context) error {
				return c.broadcast(ctx, remaining, c.control.UpdateMetadata)
			},
		},
		sagaStep{
			name: "migrate range to successor",
			do: func(ctx context.Context) error {
				err := c.nodeCall(func() error {
					return c.control.LockWrite(ctx, addr, succ.Addr, part.Range)
				})
				if err != nil {
					if unlockErr := c.control.UnlockWrite(context.WithoutCancel(ctx), addr); unlockErr != nil {
						return errors.Join(err, unlockErr)
					}
					return err
				}
				return c.setChangeStatus(ctx, change, qdb.ChangeDataMoved)
			},
			undo: func(ctx context.Context) error {
				return c.nodeCall(func() error { return c.control.UnlockWrite(ctx, addr) })
			},
		},
		shutdown,
		release,
	)
	if err != nil {
		return err
	}
	c.log.Info().Str("node", addr).Int("active", len(c.active)).Msg("coordinator: node removed")
	return nil
}

// Start opens every active node for client traffic.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return errNotInitialized
	}
	if err := c.broadcast(ctx, addrsOf(c.active), c.control.Start); err != nil {
		return err
	}
	if err := c.persistStarted(ctx, true); err != nil {
		return err
	}
	c.log.Info().Msg("coordinator: storage service started")
	return nil
}

// Stop closes every active node for client traffic.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return errNotInitialized
	}
	if err := c.broadcast(ctx, addrsOf(c.active), c.control.Stop); err != nil {
		return err
	}
	if err := c.persistStarted(ctx, false); err != nil {
		return err
	}
	c.log.Info().Msg("coordinator: storage service stopped")
	return nil
}

// ShutdownAll shuts every active node down and returns all slots to the
// idle pool. The storage service can be initialized again afterwards.
func (c *Coordinator) ShutdownAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return errNotInitialized
	}
	err := c.broadcast(ctx, addrsOf(c.active), c.control.Shutdown)
	if pubErr := c.publish(ctx, ring.Build(nil, c.opts.HashFunction)); pubErr != nil {
		return errors.Join(err, pubErr)
	}
	if pubErr := c.persistStarted(ctx, false); pubErr != nil {
		return errors.Join(err, pubErr)
	}

	c.idle = append(c.active, c.idle...)
	c.active = nil
	c.initialized = false
	c.started = false
	c.log.Info().Err(err).Msg("coordinator: storage service shut down")
	return err
}

// ==============================================================================
//                                   HELPERS
// ==============================================================================

func (c *Coordinator) launch(ctx context.Context, e config.PoolEntry, cacheSize int, policy cache.Policy) error {
	return c.nodeCall(func() error {
		if err := c.launcher.Launch(ctx, LaunchSpec{Entry: e, CacheSize: cacheSize, CachePolicy: policy}); err != nil {
			return err
		}
		return c.waitReady(ctx, e.Addr())
	})
}

// shutdownQuietly shuts addrs down and only logs failures. A node that is
// already gone is not part of the ring either way.
func (c *Coordinator) shutdownQuietly(ctx context.Context, addrs []string) {
	if err := c.broadcast(ctx, addrs, c.control.Shutdown); err != nil {
		c.log.Warn().Err(err).Strs("nodes", addrs).Msg("coordinator: failed to shut down nodes")
	}
}
