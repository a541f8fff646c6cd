package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hubgraph/reconcile"
	"hubgraph/state"
	"hubgraph/types"
	"hubgraph/workflow"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type fakeHub struct {
	mu        sync.Mutex
	items     []types.Item
	expandErr error
	filename  string
	sessionID string
}

func (f *fakeHub) FetchItems(context.Context, string) ([]types.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, nil
}

func (f *fakeHub) StartSession(_ context.Context, filename string, _ io.Reader, sessionID string) (types.SessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filename, f.sessionID = filename, sessionID
	return types.SessionResponse{Session: "sess-1", Hub: "hub-9"}, nil
}

func (f *fakeHub) ExpandNode(_ context.Context, nodeID string) ([]types.Item, error) {
	if f.expandErr != nil {
		return nil, f.expandErr
	}
	return []types.Item{{ID: nodeID + "-a"}, {ID: nodeID + "-b"}}, nil
}

type fakeArchive map[string]types.JobStatus

func (a fakeArchive) Load(_ context.Context, id string) (types.JobStatus, error) {
	st, ok := a[id]
	if !ok {
		return types.JobStatus{}, fmt.Errorf("not archived: %s", id)
	}
	return st, nil
}

func newTestServer(t *testing.T, hub *fakeHub, interval time.Duration, archive ArchiveReader) (*Server, *state.Manager) {
	t.Helper()
	m := state.NewManager()
	runner := workflow.NewRunner(m, hub, workflow.Config{
		Target: 2,
		Loop:   reconcile.Options{Interval: interval, FetchTimeout: time.Second},
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, runner.Shutdown(ctx))
	})
	return NewServer(m, runner, Options{Port: "0", Archive: archive}), m
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeHub{}, time.Millisecond, nil)

	w := do(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStartJobAndPollStatus(t *testing.T) {
	hub := &fakeHub{items: []types.Item{{ID: "A"}, {ID: "B"}}}
	s, _ := newTestServer(t, hub, time.Millisecond, nil)

	w := do(t, s, http.MethodPost, "/api/jobs", strings.NewReader(`{"hub_id":"hub-1"}`), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID := decode[map[string]string](t, w)["job_id"]
	require.NotEmpty(t, jobID)

	var st types.JobStatus
	require.Eventually(t, func() bool {
		w := do(t, s, http.MethodGet, "/api/jobs/"+jobID, nil, "")
		if w.Code != http.StatusOK {
			return false
		}
		st = decode[types.JobStatus](t, w)
		return st.Terminated()
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, types.OutcomeSuccess, st.Outcome)
	assert.Equal(t, "hub-1", st.HubID)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "node-1", st.Snapshot.Slots[0].ID)
	assert.Equal(t, "A", st.Snapshot.Slots[0].Item.ID)

	w = do(t, s, http.MethodGet, "/api/jobs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.JobStatus](t, w), 1)
}

func TestStartJobBadRequests(t *testing.T) {
	s, m := newTestServer(t, &fakeHub{}, time.Millisecond, nil)

	cases := []struct {
		name string
		body string
	}{
		{"missing hub", `{"target":3}`},
		{"negative target", `{"hub_id":"h","target":-1}`},
		{"not json", `hub`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/jobs", strings.NewReader(c.body), "application/json")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[map[string]string](t, w), "error")
		})
	}
	assert.Equal(t, 0, m.Len())
}

func TestGetJobUnknownAndArchived(t *testing.T) {
	archive := fakeArchive{"old": {JobID: "old", Outcome: types.OutcomeSuccess}}
	s, _ := newTestServer(t, &fakeHub{}, time.Millisecond, archive)

	w := do(t, s, http.MethodGet, "/api/jobs/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/jobs/old", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.OutcomeSuccess, decode[types.JobStatus](t, w).Outcome)
}

func TestCancelJob(t *testing.T) {
	s, m := newTestServer(t, &fakeHub{}, time.Hour, nil)

	w := do(t, s, http.MethodPost, "/api/jobs", strings.NewReader(`{"hub_id":"hub-1","target":5}`), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID := decode[map[string]string](t, w)["job_id"]

	w = do(t, s, http.MethodDelete, "/api/jobs/"+jobID, nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		st, err := m.GetStatus(jobID)
		return err == nil && st.Outcome == types.OutcomeAborted
	}, 5*time.Second, time.Millisecond)

	w = do(t, s, http.MethodDelete, "/api/jobs/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSessionUpload(t *testing.T) {
	hub := &fakeHub{items: []types.Item{{ID: "A"}}}
	s, m := newTestServer(t, hub, time.Millisecond, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "paper.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("session_id", "existing"))
	require.NoError(t, mw.WriteField("target", "1"))
	require.NoError(t, mw.Close())

	w := do(t, s, http.MethodPost, "/api/sessions", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[map[string]string](t, w)
	assert.Equal(t, "hub-9", resp["hub"])
	assert.Equal(t, "sess-1", resp["session"])
	hub.mu.Lock()
	assert.Equal(t, "paper.pdf", hub.filename)
	assert.Equal(t, "existing", hub.sessionID)
	hub.mu.Unlock()

	require.Eventually(t, func() bool {
		st, err := m.GetStatus(resp["job_id"])
		return err == nil && st.Outcome == types.OutcomeSuccess && st.Target == 1
	}, 5*time.Second, time.Millisecond)
}

func TestStartSessionRequiresFile(t *testing.T) {
	s, _ := newTestServer(t, &fakeHub{}, time.Millisecond, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("session_id", "x"))
	require.NoError(t, mw.Close())

	w := do(t, s, http.MethodPost, "/api/sessions", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExpandNode(t *testing.T) {
	hub := &fakeHub{}
	s, _ := newTestServer(t, hub, time.Millisecond, nil)

	w := do(t, s, http.MethodPost, "/api/nodes/n1/expand", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]types.Item](t, w)
	require.Len(t, items, 2)
	assert.Equal(t, "n1-a", items[0].ID)

	hub.expandErr = fmt.Errorf("%w: status 500", types.ErrSourceUnavailable)
	w = do(t, s, http.MethodPost, "/api/nodes/n1/expand", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, &fakeHub{}, time.Millisecond, nil)

	w := do(t, s, http.MethodOptions, "/api/jobs", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartCronRejectsBadSchedule(t *testing.T) {
	s, _ := newTestServer(t, &fakeHub{}, time.Millisecond, nil)

	assert.Error(t, s.StartCron("every now and then", time.Minute))
	require.NoError(t, s.StartCron("@every 1h", time.Minute))
	require.NoError(t, s.Shutdown(context.Background()))
}
