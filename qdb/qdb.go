package qdb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/pkg/config"
)

// QDB is the metadata directory shared by the coordinator and every node.
// It stores the ring assignment blob, the journal of the membership change
// in flight and the coordinator ownership lock.
//
//go:generate mockgen -source=qdb/qdb.go -destination=qdb/mock/qdb.go -package=mock
type QDB interface {
	// ReadMetadata returns the blob at path, creating an empty one when absent.
	ReadMetadata(ctx context.Context, path string) ([]byte, error)
	WriteMetadata(ctx context.Context, path string, data []byte) error

	RecordMembershipChange(ctx context.Context, change *MembershipChange) error
	// GetMembershipChange returns nil when no change is in flight.
	GetMembershipChange(ctx context.Context) (*MembershipChange, error)
	RemoveMembershipChange(ctx context.Context) error

	TryCoordinatorLock(ctx context.Context, addr string) error

	Close() error
}

func NewQDB(cfg *config.QDB, log zerolog.Logger) (QDB, error) {
	switch cfg.Type {
	case config.QDBTypeEtcd:
		return NewEtcdQDB(cfg.Addr, log)
	case config.QDBTypeMem, "":
		return RestoreQDB(cfg.BackupPath, log)
	default:
		return nil, fmt.Errorf("qdb implementation %s is invalid", cfg.Type)
	}
}
