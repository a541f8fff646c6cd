package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"hubgraph/reconcile"
	"hubgraph/state"
	"hubgraph/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeHub serves a fixed cumulative list per hub and records uploads
type fakeHub struct {
	mu       sync.Mutex
	items    map[string][]types.Item
	fetchErr error
	uploaded string
	expanded []string
}

func (f *fakeHub) FetchItems(_ context.Context, hubID string) ([]types.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items[hubID], nil
}

func (f *fakeHub) StartSession(_ context.Context, filename string, file io.Reader, _ string) (types.SessionResponse, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return types.SessionResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = filename + ":" + string(data)
	return types.SessionResponse{Session: "s-1", Hub: "hub-upload"}, nil
}

func (f *fakeHub) ExpandNode(_ context.Context, nodeID string) ([]types.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expanded = append(f.expanded, nodeID)
	return []types.Item{{ID: nodeID + "-child"}}, nil
}

func itemsFor(ids ...string) []types.Item {
	out := make([]types.Item, len(ids))
	for i, id := range ids {
		out[i] = types.Item{ID: id}
	}
	return out
}

func newRunner(hub *fakeHub, sinks ...reconcile.Sink) (*Runner, *state.Manager) {
	m := state.NewManager()
	r := NewRunner(m, hub, Config{
		Target: 3,
		Loop:   reconcile.Options{Interval: time.Millisecond, FetchTimeout: time.Second},
		Sinks:  sinks,
	})
	seq := 0
	r.newID = func() string {
		seq++
		return fmt.Sprintf("job-%d", seq)
	}
	return r, m
}

func waitTerminated(t *testing.T, m *state.Manager, jobID string) types.JobStatus {
	t.Helper()
	var st types.JobStatus
	require.Eventually(t, func() bool {
		var err error
		st, err = m.GetStatus(jobID)
		return err == nil && st.Terminated()
	}, 5*time.Second, time.Millisecond)
	return st
}

type countingSink struct {
	mu         sync.Mutex
	terminated []string
}

func (c *countingSink) Observe(string, types.PoolSnapshot) {}

func (c *countingSink) Terminated(jobID string, _ reconcile.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = append(c.terminated, jobID)
}

func TestStartJobRunsToSuccess(t *testing.T) {
	hub := &fakeHub{items: map[string][]types.Item{"hub-1": itemsFor("A", "B", "C")}}
	extra := &countingSink{}
	r, m := newRunner(hub, extra)

	jobID, err := r.StartJob(types.JobRequest{HubID: "hub-1"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	st := waitTerminated(t, m, jobID)
	assert.Equal(t, types.OutcomeSuccess, st.Outcome)
	assert.Equal(t, 3, st.Target, "default target applied")
	assert.Equal(t, 3, st.Snapshot.Filled)

	require.NoError(t, r.Shutdown(context.Background()))
	assert.Eventually(t, func() bool {
		extra.mu.Lock()
		defer extra.mu.Unlock()
		return len(extra.terminated) == 1 && extra.terminated[0] == "job-1"
	}, time.Second, time.Millisecond)
}

func TestStartJobValidation(t *testing.T) {
	r, m := newRunner(&fakeHub{})
	defer r.Shutdown(context.Background())

	_, err := r.StartJob(types.JobRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = r.StartJob(types.JobRequest{HubID: "hub", Target: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, 0, m.Len())
}

func TestRunJobReportsAbort(t *testing.T) {
	hub := &fakeHub{fetchErr: types.ErrSourceProtocol}
	r, m := newRunner(hub)
	defer r.Shutdown(context.Background())

	res, err := r.RunJob(context.Background(), types.JobRequest{HubID: "hub-1", Target: 2})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, types.ErrSourceProtocol)

	st, err := m.GetStatus("job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Target)
}

func TestStartFromUpload(t *testing.T) {
	hub := &fakeHub{items: map[string][]types.Item{"hub-upload": itemsFor("A")}}
	r, m := newRunner(hub)

	resp, jobID, err := r.StartFromUpload(context.Background(), "paper.pdf", strings.NewReader("%PDF"), "", 1)
	require.NoError(t, err)
	assert.Equal(t, "hub-upload", resp.Hub)
	assert.Equal(t, "paper.pdf:%PDF", hub.uploaded)

	st := waitTerminated(t, m, jobID)
	assert.Equal(t, "hub-upload", st.HubID)
	assert.Equal(t, types.OutcomeSuccess, st.Outcome)
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestCancelJob(t *testing.T) {
	r, m := newRunner(&fakeHub{})
	r.cfg.Loop.Interval = time.Hour

	jobID, err := r.StartJob(types.JobRequest{HubID: "hub-1"})
	require.NoError(t, err)
	require.NoError(t, r.CancelJob(jobID))

	st := waitTerminated(t, m, jobID)
	assert.Equal(t, types.OutcomeAborted, st.Outcome)
	assert.Contains(t, st.Error, reconcile.ErrCancelled.Error())

	assert.ErrorIs(t, r.CancelJob("missing"), state.ErrJobNotFound)
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestExpand(t *testing.T) {
	hub := &fakeHub{}
	r, _ := newRunner(hub)
	defer r.Shutdown(context.Background())

	items, err := r.Expand(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1-child", items[0].ID)

	_, err = r.Expand(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestShutdownStopsRunningJobs(t *testing.T) {
	r, m := newRunner(&fakeHub{})
	r.cfg.Loop.Interval = time.Hour

	for i := 0; i < 3; i++ {
		_, err := r.StartJob(types.JobRequest{HubID: fmt.Sprintf("hub-%d", i)})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	for _, st := range m.List() {
		assert.Equal(t, types.OutcomeAborted, st.Outcome)
	}

	_, err := r.StartJob(types.JobRequest{HubID: "late"})
	assert.True(t, errors.Is(err, ErrShuttingDown))
}
