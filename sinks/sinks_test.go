package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"hubgraph/reconcile"
	"hubgraph/types"

	"github.com/aws/smithy-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRedis struct {
	mu        sync.Mutex
	values    map[string]string
	ttls      map[string]time.Duration
	published map[string][]string
	setErr    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values:    map[string]string{},
		ttls:      map[string]time.Duration{},
		published: map[string][]string{},
	}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func snapshot(filled int) types.PoolSnapshot {
	slots := make([]types.Slot, 3)
	for i := range slots {
		slots[i] = types.Slot{Index: i, ID: reconcile.SlotID(i), State: types.SlotEmpty}
		if i < filled {
			slots[i].State = types.SlotFilled
			slots[i].Item = &types.Item{ID: string(rune('A' + i))}
		}
	}
	return types.PoolSnapshot{HubID: "hub-1", Size: 3, Filled: filled, Cursor: filled, Slots: slots}
}

func TestRedisSinkStoresAndPublishes(t *testing.T) {
	rdb := newFakeRedis()
	sink := NewRedisSink(rdb, "", time.Hour, nil)

	sink.Observe("job-1", snapshot(1))
	sink.Terminated("job-1", reconcile.Result{
		Outcome:  types.OutcomeAborted,
		Err:      types.ErrSourceUnavailable,
		Ticks:    2,
		Snapshot: snapshot(2),
	})

	key := "hubgraph:job:job-1:snapshot"
	assert.Equal(t, key, sink.SnapshotKey("job-1"))
	assert.Equal(t, time.Hour, rdb.ttls[key])

	msgs := rdb.published["hubgraph:job:job-1"]
	require.Len(t, msgs, 2)

	var first, last Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(rdb.values[key]), &last))

	assert.Equal(t, "snapshot", first.Type)
	assert.Equal(t, 1, first.Snapshot.Filled)
	assert.Equal(t, "terminated", last.Type)
	assert.Equal(t, types.OutcomeAborted, last.Outcome)
	assert.Equal(t, types.ErrSourceUnavailable.Error(), last.Error)
	assert.Equal(t, 2, last.Snapshot.Filled)
}

func TestRedisSinkSwallowsErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.setErr = errors.New("connection refused")
	core, logs := observer.New(zapcore.WarnLevel)
	sink := NewRedisSink(rdb, "dash", time.Minute, zap.New(core))

	sink.Observe("job-1", snapshot(1))

	assert.Empty(t, rdb.published, "nothing is published when the snapshot could not be stored")
	assert.Equal(t, 1, logs.FilterMessage("failed to store snapshot").Len())
}

type fakeStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeStore) Put(_ context.Context, bucket, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = data
	f.contentTypes[bucket+"/"+key] = contentType
	return nil
}

func (f *fakeStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestArchiveSinkRoundTrip(t *testing.T) {
	store := newFakeStore()
	sink := NewArchiveSink(store, "bucket", "hubgraph", nil)

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sink.Observe("job-1", snapshot(1))
	assert.Empty(t, store.objects, "progress snapshots are not archived")

	sink.Terminated("job-1", reconcile.Result{
		Outcome:    types.OutcomeSuccess,
		Ticks:      3,
		Snapshot:   snapshot(3),
		StartedAt:  started,
		FinishedAt: started.Add(15 * time.Second),
	})

	require.Contains(t, store.objects, "bucket/hubgraph/jobs/job-1.json")
	assert.Equal(t, "application/json", store.contentTypes["bucket/hubgraph/jobs/job-1.json"])

	st, err := sink.Load(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "hub-1", st.HubID)
	assert.Equal(t, 3, st.Target)
	assert.Equal(t, types.StateTerminated, st.State)
	assert.Equal(t, types.OutcomeSuccess, st.Outcome)
	assert.Equal(t, started, st.CreatedAt)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "C", st.Snapshot.Slots[2].Item.ID)
}

func TestArchiveSinkLoadMissing(t *testing.T) {
	sink := NewArchiveSink(newFakeStore(), "bucket", "", nil)

	assert.Equal(t, "jobs/x.json", sink.Key("x"))
	_, err := sink.Load(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotArchived)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	sink.Observe("job-1", snapshot(2))
	sink.Terminated("job-1", reconcile.Result{Outcome: types.OutcomeAborted, Err: reconcile.ErrCancelled})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "snapshot", entries[0].Message)
	assert.Equal(t, int64(2), entries[0].ContextMap()["filled"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "aborted", entries[1].ContextMap()["outcome"])
}

var (
	_ reconcile.Sink = (*RedisSink)(nil)
	_ reconcile.Sink = (*ArchiveSink)(nil)
	_ reconcile.Sink = (*LogSink)(nil)
)
