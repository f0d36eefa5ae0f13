package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoagent/internal/chat"
	"photoagent/internal/config"
	"photoagent/internal/conversation"
	"photoagent/internal/library"
	"photoagent/internal/metrics"
	"photoagent/internal/permission"
)

type fakeSession struct {
	mu        sync.Mutex
	state     *conversation.Store
	busy      bool
	submitted []string
}

func (f *fakeSession) SubmitUserInputAsync(_ context.Context, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.submitted = append(f.submitted, text)
	return true
}

func (f *fakeSession) Suggestion(n int) (chat.SuggestedAction, bool) {
	if n == 1 {
		return chat.SuggestedAction{Label: "Beach", Prompt: "show beach photos"}, true
	}
	return chat.SuggestedAction{}, false
}

func (f *fakeSession) State() *conversation.Store { return f.state }

func newTestServer(t *testing.T) (*Server, *fakeSession, *permission.QueueBroker) {
	t.Helper()
	sess := &fakeSession{state: conversation.NewStore()}
	broker := permission.NewQueueBroker()
	reg := prometheus.NewRegistry()
	metrics.MustNew(reg).IncToolCall("search_photos", "ok")
	srv := New(context.Background(), Options{
		Session:  sess,
		Consent:  broker,
		Photos:   library.NewMemoryStore(library.Record{URI: "a.jpg"}, library.Record{URI: "b.jpg"}),
		Gatherer: reg,
		Config:   config.ServerConfig{AllowedOrigins: []string{"http://localhost:*"}},
	})
	return srv, sess, broker
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.Router(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestPostInput(t *testing.T) {
	srv, sess, _ := newTestServer(t)
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/input", `{"text":"  find the beach  "}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/input", `{"suggestion":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"find the beach", "show beach photos"}, sess.submitted)

	rec = do(t, h, http.MethodPost, "/api/v1/input", `{"suggestion":7}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/input", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/input", `{"txt":"typo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sess.busy = true
	rec = do(t, h, http.MethodPost, "/api/v1/input", `{"text":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostSelection(t *testing.T) {
	srv, sess, _ := newTestServer(t)
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/selection", `{"uris":["a.jpg","b.jpg","a.jpg"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"selection":["a.jpg","b.jpg"]}`, rec.Body.String())
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, sess.state.Selection())

	rec = do(t, h, http.MethodPost, "/api/v1/selection", `{"uris":["ghost.jpg"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, sess.state.Selection())

	rec = do(t, h, http.MethodPost, "/api/v1/selection", `{"uris":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"selection":[]}`, rec.Body.String())
}

func TestConsentEndpoints(t *testing.T) {
	srv, _, broker := newTestServer(t)
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/v1/consent/", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var decided []bool
	broker.OnResult(func(_ string, granted bool) { decided = append(decided, granted) })
	_, err := broker.RequestConsent(context.Background(), permission.ConsentRequest{
		ID: "h-1", Tool: "delete_photos", Kind: permission.KindDelete, URIs: []string{"a.jpg"},
	})
	require.NoError(t, err)

	rec = do(t, h, http.MethodGet, "/api/v1/consent/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got permission.ConsentRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "h-1", got.ID)
	assert.Equal(t, permission.KindDelete, got.Kind)

	rec = do(t, h, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"consent":{"id":"h-1"`)
	assert.Contains(t, rec.Body.String(), `"status":"idle"`)

	rec = do(t, h, http.MethodPost, "/api/v1/consent/h-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/consent/other", `{"granted":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/consent/h-1", `{"granted":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{false}, decided)

	rec = do(t, h, http.MethodPost, "/api/v1/consent/h-1", `{"granted":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.Router(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `photoagent_tools_calls_total{outcome="ok",tool="search_photos"} 1`)
}

func TestEventsStreamSnapshots(t *testing.T) {
	srv, sess, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() conversation.Snapshot {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var snap conversation.Snapshot
				require.NoError(t, json.Unmarshal([]byte(data), &snap))
				return snap
			}
		}
	}

	first := next()
	assert.Equal(t, conversation.StatusIdle, first.Status)

	sess.state.SetStatus(conversation.StatusLoading)
	second := next()
	assert.Equal(t, conversation.StatusLoading, second.Status)
}
