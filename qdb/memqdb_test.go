package qdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/kvlog"
	"github.com/pg-sharding/ringkv/qdb"
)

const metadataPath = "/ringkv/metadata"

func TestMemQDBReadCreatesEmpty(t *testing.T) {
	assert := assert.New(t)

	db := qdb.NewMemQDB("", kvlog.Nop())
	ctx := context.TODO()

	blob, err := db.ReadMetadata(ctx, metadataPath)
	assert.NoError(err)
	assert.Empty(blob)
	assert.Contains(db.Blobs, metadataPath)

	assert.NoError(db.WriteMetadata(ctx, metadataPath, []byte("h:1 aa-aa")))
	blob, err = db.ReadMetadata(ctx, metadataPath)
	assert.NoError(err)
	assert.Equal("h:1 aa-aa", string(blob))
}

func TestMemQDBMembershipChange(t *testing.T) {
	assert := assert.New(t)

	db := qdb.NewMemQDB("", kvlog.Nop())
	ctx := context.TODO()

	change, err := db.GetMembershipChange(ctx)
	assert.NoError(err)
	assert.Nil(change)

	rec := &qdb.MembershipChange{
		ID:     "id",
		Kind:   qdb.MembershipAdd,
		Node:   "h:2",
		Peer:   "h:1",
		Status: qdb.ChangePlanned,
	}
	assert.NoError(db.RecordMembershipChange(ctx, rec))

	// the stored record is a copy
	rec.Status = qdb.ChangeComplete
	change, err = db.GetMembershipChange(ctx)
	assert.NoError(err)
	assert.Equal(qdb.ChangePlanned, change.Status)

	assert.NoError(db.RemoveMembershipChange(ctx))
	change, err = db.GetMembershipChange(ctx)
	assert.NoError(err)
	assert.Nil(change)
}

func TestMemQDBSharedBackupFile(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()

	path := filepath.Join(t.TempDir(), "qdb", "state.json")
	writer, err := qdb.RestoreQDB(path, kvlog.Nop())
	require.NoError(t, err)
	reader, err := qdb.RestoreQDB(path, kvlog.Nop())
	require.NoError(t, err)

	assert.NoError(writer.WriteMetadata(ctx, metadataPath, []byte("h:1 aa-aa")))
	blob, err := reader.ReadMetadata(ctx, metadataPath)
	assert.NoError(err)
	assert.Equal("h:1 aa-aa", string(blob))

	assert.NoError(writer.RecordMembershipChange(ctx, &qdb.MembershipChange{ID: "x", Status: qdb.ChangeDataMoved}))
	change, err := reader.GetMembershipChange(ctx)
	assert.NoError(err)
	assert.Equal("x", change.ID)

	restored, err := qdb.RestoreQDB(path, kvlog.Nop())
	require.NoError(t, err)
	assert.Equal("h:1 aa-aa", restored.Blobs[metadataPath])
}

func TestMemQDBCoordinatorLock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()

	db := qdb.NewMemQDB("", kvlog.Nop())
	assert.NoError(db.TryCoordinatorLock(ctx, "h:7000"))
	assert.NoError(db.TryCoordinatorLock(ctx, "h:7000"))
	assert.Error(db.TryCoordinatorLock(ctx, "h:7001"))

	assert.NoError(db.Close())
	assert.NoError(db.TryCoordinatorLock(ctx, "h:7001"))
}

func TestNewQDB(t *testing.T) {
	assert := assert.New(t)

	db, err := qdb.NewQDB(&config.QDB{Type: config.QDBTypeMem}, kvlog.Nop())
	assert.NoError(err)
	assert.IsType(&qdb.MemQDB{}, db)

	_, err = qdb.NewQDB(&config.QDB{Type: "zookeeper"}, kvlog.Nop())
	assert.Error(err)
}
