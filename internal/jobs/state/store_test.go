package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
	"github.com/ternarybob/culefilo/internal/storage/badger"
)

func newTestStore(t *testing.T) (*Store, interfaces.KeyValueStorage) {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewStore(manager.KeyValueStorage(), logger), manager.KeyValueStorage()
}

func TestStore_CreateGetPut(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	job := newJob()
	rev, err := store.Create(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rev)

	_, err = store.Create(ctx, job)
	assert.ErrorIs(t, err, ErrJobExists)

	record, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, rev, record.Revision)
	assert.Equal(t, "ramen", record.Job.Input.FavoriteMealName)

	running := mustNext(t, record.Job, Claim{OwnerToken: "own_a", TTL: time.Minute}, t0)
	rev2, err := store.Put(ctx, running, record.Revision)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rev2)

	// a writer holding the old revision loses
	_, err = store.Put(ctx, running, record.Revision)
	assert.ErrorIs(t, err, interfaces.ErrRevisionMismatch)

	// invalid records never reach the store
	broken := running
	broken.Lease = nil
	_, err = store.Put(ctx, broken, rev2)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStore_GetMigratesLegacy(t *testing.T) {
	ctx := context.Background()
	store, kv := newTestStore(t)

	require.NoError(t, kv.Set(ctx, Key("legacy-2"), legacySuccess))

	record, err := store.Get(ctx, "legacy-2")
	require.NoError(t, err)
	assert.Equal(t, models.CurrentJobVersion, record.Job.Version)
	assert.Equal(t, uint64(1), record.Revision)
}

func TestStore_ListNewestFirstSkipsBadRecords(t *testing.T) {
	ctx := context.Background()
	store, kv := newTestStore(t)

	for i, id := range []string{"old", "new", "mid"} {
		job := newJob()
		job.ID = id
		job.CreatedAt = t0.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
		_, err := store.Create(ctx, job)
		require.NoError(t, err)
	}

	require.NoError(t, kv.Set(ctx, Key("garbage"), "not json"))
	require.NoError(t, kv.Set(ctx, Key("future"), `{"version": 99, "id": "future"}`))
	require.NoError(t, kv.Set(ctx, "config:other", "ignored"))

	jobs, err := store.List(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}
