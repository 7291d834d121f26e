package qdb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/pg-sharding/ringkv/pkg/command"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

const membershipChangeKey = "membership_change"

// MemQDB keeps the directory in memory. With a backup path every mutation
// is written to that file and every read reloads it, so processes sharing
// the file observe each other's writes.
type MemQDB struct {
	mu sync.RWMutex

	Blobs   map[string]string            `json:"blobs"`
	Changes map[string]*MembershipChange `json:"changes"`

	coordinator string
	backupPath  string
	log         zerolog.Logger
}

var _ QDB = &MemQDB{}

func NewMemQDB(backupPath string, log zerolog.Logger) *MemQDB {
	return &MemQDB{
		Blobs:      map[string]string{},
		Changes:    map[string]*MembershipChange{},
		backupPath: backupPath,
		log:        log,
	}
}

func RestoreQDB(backupPath string, log zerolog.Logger) (*MemQDB, error) {
	q := NewMemQDB(backupPath, log)
	if backupPath == "" {
		return q, nil
	}
	if _, err := os.Stat(backupPath); err != nil {
		log.Info().Err(err).Str("path", backupPath).Msg("memqdb: backup file does not exist, creating new one")
		if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
			return nil, err
		}
		return q, q.DumpState()
	}
	if err := q.reload(); err != nil {
		return nil, err
	}
	return q, nil
}

// reload replaces the in-memory state with the backup file. Caller holds mu.
func (q *MemQDB) reload() error {
	if q.backupPath == "" {
		return nil
	}
	data, err := os.ReadFile(q.backupPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	state := struct {
		Blobs   map[string]string            `json:"blobs"`
		Changes map[string]*MembershipChange `json:"changes"`
	}{}
	if err := json.Unmarshal(data, &state); err != nil {
		return kverror.Newf(kverror.KV_METADATA_CORRUPTION, "memqdb backup %s: %s", q.backupPath, err)
	}
	clear(q.Blobs)
	for k, v := range state.Blobs {
		q.Blobs[k] = v
	}
	clear(q.Changes)
	for k, v := range state.Changes {
		q.Changes[k] = v
	}
	return nil
}

func (q *MemQDB) DumpState() error {
	if q.backupPath == "" {
		return nil
	}
	tmpPath := q.backupPath + ".tmp"

	state, err := json.MarshalIndent(q, "", "	")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmpPath, state, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, q.backupPath)
}

// ==============================================================================
//                                  METADATA
// ==============================================================================

func (q *MemQDB) ReadMetadata(_ context.Context, path string) ([]byte, error) {
	q.log.Debug().Str("path", path).Msg("memqdb: read metadata")
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.reload(); err != nil {
		return nil, err
	}
	blob, ok := q.Blobs[path]
	if !ok {
		if err := command.Execute(q.DumpState, command.NewUpdate(q.Blobs, path, "")); err != nil {
			return nil, xerrors.Errorf("create metadata %s: %w", path, err)
		}
	}
	return []byte(blob), nil
}

func (q *MemQDB) WriteMetadata(_ context.Context, path string, data []byte) error {
	q.log.Debug().Str("path", path).Int("size", len(data)).Msg("memqdb: write metadata")
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.reload(); err != nil {
		return err
	}
	return command.Execute(q.DumpState, command.NewUpdate(q.Blobs, path, string(data)))
}

// ==============================================================================
//                              MEMBERSHIP CHANGES
// ==============================================================================

func (q *MemQDB) RecordMembershipChange(_ context.Context, change *MembershipChange) error {
	q.log.Debug().Interface("change", change).Msg("memqdb: record membership change")
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.reload(); err != nil {
		return err
	}
	cp := *change
	return command.Execute(q.DumpState, command.NewUpdate(q.Changes, membershipChangeKey, &cp))
}

func (q *MemQDB) GetMembershipChange(_ context.Context) (*MembershipChange, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.reload(); err != nil {
		return nil, err
	}
	change, ok := q.Changes[membershipChangeKey]
	if !ok {
		return nil, nil
	}
	cp := *change
	return &cp, nil
}

func (q *MemQDB) RemoveMembershipChange(_ context.Context) error {
	q.log.Debug().Msg("memqdb: remove membership change")
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.reload(); err != nil {
		return err
	}
	return command.Execute(q.DumpState, command.NewDelete(q.Changes, membershipChangeKey))
}

// ==============================================================================
//                                 COORDINATOR
// ==============================================================================

// TryCoordinatorLock only guards against two coordinators in one process.
func (q *MemQDB) TryCoordinatorLock(_ context.Context, addr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.coordinator != "" && q.coordinator != addr {
		return kverror.Newf(kverror.KV_COORDINATOR_IN_USE, "qdb is already in use by %s", q.coordinator)
	}
	q.coordinator = addr
	return nil
}

func (q *MemQDB) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.coordinator = ""
	return nil
}
