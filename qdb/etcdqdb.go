package qdb

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/rs/zerolog"
	retry "github.com/sethvargo/go-retry"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/clientv3util"
	"go.etcd.io/etcd/client/v3/concurrency"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

type EtcdQDB struct {
	cli *clientv3.Client
	log zerolog.Logger
}

var _ QDB = &EtcdQDB{}

func NewEtcdQDB(addr string, log zerolog.Logger) (*EtcdQDB, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{addr},
		DialTimeout: 5 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("address", addr).
		Msg("etcdqdb: NewEtcdQDB")

	return &EtcdQDB{
		cli: cli,
		log: log,
	}, nil
}

const (
	membershipChangePath = "/ringkv/membership_change"
	metadataLockSpace    = "/ringkv/metadata_lock"
	coordLockKey         = "/ringkv/coordinator_exists"

	CoordKeepAliveTtl = 3
)

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(7, retry.NewFibonacci(100*time.Millisecond))
}

func (q *EtcdQDB) unlockMutex(ctx context.Context, mu *concurrency.Mutex) {
	if err := mu.Unlock(ctx); err != nil {
		q.log.Error().Err(err).Msg("etcdqdb: failed to unlock mutex")
	}
}

func (q *EtcdQDB) closeSession(sess *concurrency.Session) {
	if err := sess.Close(); err != nil {
		q.log.Error().Err(err).Msg("etcdqdb: failed to close session")
	}
}

// ==============================================================================
//                                  METADATA
// ==============================================================================

func (q *EtcdQDB) ReadMetadata(ctx context.Context, nodePath string) ([]byte, error) {
	q.log.Debug().
		Str("path", nodePath).
		Msg("etcdqdb: read metadata")

	var blob []byte
	err := retry.Do(ctx, defaultBackoff(), func(ctx context.Context) error {
		resp, err := q.cli.Get(ctx, nodePath)
		if err != nil {
			return retry.RetryableError(err)
		}
		switch len(resp.Kvs) {
		case 0:
			// create-if-absent, losing the race to a writer is fine
			_, err := q.cli.Txn(ctx).
				If(clientv3util.KeyMissing(nodePath)).
				Then(clientv3.OpPut(nodePath, "")).
				Commit()
			if err != nil {
				return retry.RetryableError(err)
			}
			blob = nil
			return nil
		case 1:
			blob = resp.Kvs[0].Value
			return nil
		default:
			return kverror.Newf(kverror.KV_METADATA_CORRUPTION, "possible data corruption: multiple key-value pairs found for %v", nodePath)
		}
	})
	if err != nil {
		return nil, xerrors.Errorf("read metadata %s: %w", nodePath, err)
	}
	return blob, nil
}

func (q *EtcdQDB) WriteMetadata(ctx context.Context, nodePath string, data []byte) error {
	q.log.Debug().
		Str("path", nodePath).
		Int("size", len(data)).
		Msg("etcdqdb: write metadata")

	sess, err := concurrency.NewSession(q.cli)
	if err != nil {
		return err
	}
	defer q.closeSession(sess)

	mu := concurrency.NewMutex(sess, path.Join(metadataLockSpace, nodePath))
	if err := mu.Lock(ctx); err != nil {
		return err
	}
	defer q.unlockMutex(ctx, mu)

	return retry.Do(ctx, defaultBackoff(), func(ctx context.Context) error {
		if _, err := q.cli.Put(ctx, nodePath, string(data)); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// ==============================================================================
//                              MEMBERSHIP CHANGES
// ==============================================================================

func (q *EtcdQDB) RecordMembershipChange(ctx context.Context, change *MembershipChange) error {
	q.log.Debug().
		Interface("change", change).
		Msg("etcdqdb: record membership change")

	raw, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return retry.Do(ctx, defaultBackoff(), func(ctx context.Context) error {
		if _, err := q.cli.Put(ctx, membershipChangePath, string(raw)); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (q *EtcdQDB) GetMembershipChange(ctx context.Context) (*MembershipChange, error) {
	q.log.Debug().Msg("etcdqdb: get membership change")

	resp, err := q.cli.Get(ctx, membershipChangePath)
	if err != nil {
		return nil, err
	}
	switch len(resp.Kvs) {
	case 0:
		return nil, nil
	case 1:
		var change MembershipChange
		if err := json.Unmarshal(resp.Kvs[0].Value, &change); err != nil {
			return nil, err
		}
		return &change, nil
	default:
		return nil, kverror.Newf(kverror.KV_METADATA_CORRUPTION, "possible data corruption: multiple key-value pairs found for %v", membershipChangePath)
	}
}

func (q *EtcdQDB) RemoveMembershipChange(ctx context.Context) error {
	q.log.Debug().Msg("etcdqdb: remove membership change")

	_, err := q.cli.Delete(ctx, membershipChangePath)
	return err
}

// ==============================================================================
//                                 COORDINATOR
// ==============================================================================

func (q *EtcdQDB) TryCoordinatorLock(ctx context.Context, addr string) error {
	q.log.Debug().
		Str("address", addr).
		Msg("etcdqdb: try coordinator lock")

	leaseGrantResp, err := q.cli.Grant(ctx, CoordKeepAliveTtl)
	if err != nil {
		q.log.Error().Err(err).Msg("etcdqdb: lease grant failed")
		return err
	}

	// the lease lives as long as the client, not the caller's context
	keepAliveCh, err := q.cli.KeepAlive(context.Background(), leaseGrantResp.ID)
	if err != nil {
		q.log.Error().Err(err).Msg("etcdqdb: lease keep alive failed")
		return err
	}

	op := clientv3.OpPut(coordLockKey, addr, clientv3.WithLease(leaseGrantResp.ID))
	stat, err := q.cli.Txn(ctx).If(clientv3util.KeyMissing(coordLockKey)).Then(op).Commit()
	if err != nil {
		q.log.Error().Err(err).Msg("etcdqdb: failed to commit coordinator lock")
		return err
	}

	if !stat.Succeeded {
		if _, err := q.cli.Revoke(ctx, leaseGrantResp.ID); err != nil {
			return err
		}
		return kverror.New(kverror.KV_COORDINATOR_IN_USE, "qdb is already in use")
	}

	go func() {
		for resp := range keepAliveCh {
			q.log.Debug().
				Uint64("raft-term", resp.RaftTerm).
				Int64("lease-id", int64(resp.ID)).
				Msg("etcdqdb: keep alive")
		}
	}()
	return nil
}

func (q *EtcdQDB) Close() error {
	return q.cli.Close()
}
