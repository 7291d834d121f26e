package node

import (
	"context"
	"sort"

	"github.com/pg-sharding/ringkv/pkg/conn"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/pkg/protocol"
	"github.com/pg-sharding/ringkv/pkg/ring"
)

type kv struct {
	key   string
	value string
}

// LockWrite sets the write lock and streams every key of r to peer, one
// acknowledged transfer at a time. Moved keys leave the cache once all of
// them are acknowledged. The lock stays set until UnlockWrite, also on
// failure, so the coordinator decides how to recover.
func (n *Node) LockWrite(ctx context.Context, peer string, r ring.Range) (int, error) {
	n.mu.Lock()
	if n.state == StateShutDown || n.state == StateIdle {
		n.mu.Unlock()
		return 0, kverror.Newf(kverror.KV_NODE_UNAVAILABLE, "cannot migrate from node in state %s", n.state)
	}
	n.writeLock = true
	batch := n.snapshotLocked(r)
	n.mu.Unlock()

	n.log.Info().
		Str("peer", peer).
		Str("range", r.String()).
		Int("keys", len(batch)).
		Msg("node: lock write, migrating")

	if len(batch) == 0 {
		return 0, nil
	}

	if n.opts.MigrationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.opts.MigrationTimeout)
		defer cancel()
	}

	if err := n.transferAll(ctx, peer, batch); err != nil {
		n.log.Error().Err(err).Str("peer", peer).Msg("node: migration failed")
		return 0, err
	}

	n.mu.Lock()
	for _, e := range batch {
		n.cache.Remove(e.key)
	}
	n.mu.Unlock()

	n.log.Info().Str("peer", peer).Int("keys", len(batch)).Msg("node: migration complete")
	return len(batch), nil
}

// snapshotLocked collects the entries of r from the cache and the durable
// store. Caller holds mu.
func (n *Node) snapshotLocked(r ring.Range) []kv {
	inRange := func(k string) bool {
		return ring.Owns(r, ring.Digest(k, n.opts.HashFunction))
	}

	entries := map[string]string{}
	n.durable.Range(func(k, v string) bool {
		if inRange(k) {
			entries[k] = v
		}
		return true
	})
	for _, k := range n.cache.Keys() {
		if !inRange(k) {
			continue
		}
		if v, ok := n.cache.Peek(k); ok {
			entries[k] = v
		}
	}

	batch := make([]kv, 0, len(entries))
	for k, v := range entries {
		batch = append(batch, kv{key: k, value: v})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].key < batch[j].key })
	return batch
}

func (n *Node) transferAll(ctx context.Context, peer string, batch []kv) error {
	c, err := conn.Dial(ctx, peer)
	if err != nil {
		return kverror.Newf(kverror.KV_MIGRATION_FAILED, "connect to %s: %s", peer, err)
	}
	defer c.Close()

	for _, e := range batch {
		if err := n.transferOne(ctx, c, e); err != nil {
			return kverror.Newf(kverror.KV_MIGRATION_FAILED, "transfer %q to %s: %s", e.key, peer, err)
		}
	}
	return nil
}

func (n *Node) transferOne(ctx context.Context, c *conn.LineConn, e kv) error {
	if n.opts.PeerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.opts.PeerTimeout)
		defer cancel()
	}
	req := protocol.Request{Verb: protocol.VerbTransfer, Key: e.key, Value: e.value}
	resp, err := c.Roundtrip(ctx, req.String())
	if err != nil {
		return err
	}
	switch resp.Status {
	case protocol.TransferSuccess, protocol.TransferUpdate:
		return nil
	default:
		return kverror.Newf(kverror.KV_MIGRATION_FAILED, "unexpected reply %s", resp.String())
	}
}
