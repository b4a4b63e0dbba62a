package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
	"github.com/devhid/stackoverflow-clone-sub000/internal/metrics"
)

type capturedCall struct {
	Service  Service
	Endpoint Endpoint
	Envelope Envelope
}

// fakeTransport records every invoke and answers from a canned script.
// Queued writes land on the same channel so tests can await them.
type fakeTransport struct {
	mu    sync.Mutex
	reply Reply
	err   error
	calls chan capturedCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reply: Reply{Status: http.StatusOK, Response: map[string]any{"status": StatusOK}},
		calls: make(chan capturedCall, 8),
	}
}

func (f *fakeTransport) respond(status int, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = Reply{Status: status, Response: body}
}

func (f *fakeTransport) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeTransport) Invoke(_ context.Context, svc Service, ep Endpoint, env Envelope) (Reply, error) {
	f.mu.Lock()
	reply, err := f.reply, f.err
	f.mu.Unlock()
	f.calls <- capturedCall{Service: svc, Endpoint: ep, Envelope: env}
	return reply, err
}

func (f *fakeTransport) awaitCall(t *testing.T) capturedCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a backend call")
		return capturedCall{}
	}
}

func (f *fakeTransport) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("unexpected backend call to %s/%s", call.Service, call.Endpoint)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeSessions resolves a fixed user and records bind/destroy calls.
type fakeSessions struct {
	mu        sync.Mutex
	user      *User
	bound     []User
	destroyed int
}

func (f *fakeSessions) Resolve(context.Context, *http.Request) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *fakeSessions) Bind(_ context.Context, _ http.ResponseWriter, user User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound = append(f.bound, user)
	return nil
}

func (f *fakeSessions) Destroy(context.Context, http.ResponseWriter, *http.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return nil
}

type testHarness struct {
	gateway   *Gateway
	cache     cache.ObjectCache
	transport *fakeTransport
	sessions  *fakeSessions
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	mem := cache.NewMemory(time.Minute)
	transport := newFakeTransport()
	sessions := &fakeSessions{}
	g := New(Config{
		Cache:      mem,
		Transport:  transport,
		Sessions:   sessions,
		Metrics:    metrics.NewRecorder(nil),
		TTL:        time.Minute,
		RPCTimeout: time.Second,
	})
	return &testHarness{gateway: g, cache: mem, transport: transport, sessions: sessions}
}

func (h *testHarness) login(username string) {
	h.sessions.mu.Lock()
	defer h.sessions.mu.Unlock()
	h.sessions.user = &User{Username: username, Reputation: 1}
}

func (h *testHarness) seedQuestion(t *testing.T, q *Question) {
	t.Helper()
	ctx := context.Background()
	h.gateway.store.put(ctx, cache.SourceKey(q.ID), q)
}

func (h *testHarness) seedAnswer(t *testing.T, a *Answer) {
	t.Helper()
	h.gateway.store.put(context.Background(), cache.SourceKey(a.ID), a)
}

func (h *testHarness) do(t *testing.T, svc Service, ep Endpoint, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "192.0.2.10:50000"
	for name, value := range params {
		req.SetPathValue(name, value)
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	rec := httptest.NewRecorder()
	env := h.gateway.buildEnvelope(req, ep, names)
	h.gateway.Handle(rec, req, svc, ep, env)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleWaitsOnBackendForNonQA(t *testing.T) {
	h := newTestHarness(t)
	h.transport.respond(http.StatusOK, map[string]any{"status": StatusOK})

	rec := h.do(t, ServiceSearch, SearchPosts, http.MethodPost, "/search", `{"q":"go"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	call := h.transport.awaitCall(t)
	assert.Equal(t, ServiceSearch, call.Service)
	assert.Equal(t, SearchPosts, call.Endpoint)
	assert.Equal(t, "go", call.Envelope.Body["q"])
	assert.Equal(t, "192.0.2.10", call.Envelope.IP)
}

func TestHandleRelaysBackendErrorVerbatim(t *testing.T) {
	h := newTestHarness(t)
	h.transport.respond(http.StatusBadRequest, map[string]any{
		"status": StatusError,
		"error":  ErrQuestionNotFound,
	})

	rec := h.do(t, ServiceQA, QAGetQuestion, http.MethodGet, "/questions/missing", "", map[string]string{"qid": "missing"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, StatusError, body["status"])
	assert.Equal(t, ErrQuestionNotFound, body["error"])
}

func TestHandleMapsTimeoutToTookTooLong(t *testing.T) {
	h := newTestHarness(t)
	h.transport.fail(context.DeadlineExceeded)

	rec := h.do(t, ServiceUser, UserGet, http.MethodGet, "/user/alice", "", map[string]string{"uid": "alice"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrTookTooLong, decodeBody(t, rec)["error"])
}

func TestHandleMapsTransportFailureToGenericError(t *testing.T) {
	h := newTestHarness(t)
	h.transport.fail(errors.New("connection refused"))

	rec := h.do(t, ServiceAuth, AuthLogin, http.MethodPost, "/login", `{"username":"a","password":"b"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrGeneral, decodeBody(t, rec)["error"])
}

func TestHandleLoginBindsSessionAndStripsUser(t *testing.T) {
	h := newTestHarness(t)
	h.transport.respond(http.StatusOK, map[string]any{
		"status": StatusOK,
		"user":   map[string]any{"username": "alice", "email": "a@example.com", "reputation": 7},
	})

	rec := h.do(t, ServiceAuth, AuthLogin, http.MethodPost, "/login", `{"username":"alice","password":"pw"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, StatusOK, body["status"])
	assert.NotContains(t, body, "user")

	require.Len(t, h.sessions.bound, 1)
	assert.Equal(t, "alice", h.sessions.bound[0].Username)
	assert.Equal(t, 7, h.sessions.bound[0].Reputation)
}

func TestHandleLogoutDestroysSession(t *testing.T) {
	h := newTestHarness(t)
	h.login("alice")
	h.transport.respond(http.StatusOK, map[string]any{"status": StatusOK})

	rec := h.do(t, ServiceAuth, AuthLogout, http.MethodPost, "/logout", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.sessions.destroyed)
}

func TestHandleAddQuestionLocalAckAndQueuedWrite(t *testing.T) {
	h := newTestHarness(t)
	h.login("alice")

	rec := h.do(t, ServiceQA, QAAddQuestion, http.MethodPost, "/questions/add",
		`{"title":"t","body":"b","tags":["go"]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, StatusOK, body["status"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	call := h.transport.awaitCall(t)
	assert.Equal(t, QAAddQuestion, call.Endpoint)
	assert.Equal(t, id, call.Envelope.ID)
}

func TestHandleAddQuestionWithMediaWaits(t *testing.T) {
	h := newTestHarness(t)
	h.login("alice")
	h.transport.respond(http.StatusOK, map[string]any{"status": StatusOK, "id": "backend-id"})

	rec := h.do(t, ServiceQA, QAAddQuestion, http.MethodPost, "/questions/add",
		`{"title":"t","body":"b","tags":["go"],"media":["m1"]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "backend-id", decodeBody(t, rec)["id"])

	call := h.transport.awaitCall(t)
	assert.Empty(t, call.Envelope.ID)
}

func TestHandleAddQuestionAnonymous(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(t, ServiceQA, QAAddQuestion, http.MethodPost, "/questions/add",
		`{"title":"t","body":"b","tags":["go"]}`, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ErrMissingParams, decodeBody(t, rec)["error"])
	h.transport.assertNoCall(t)
}

func TestHandleGetQuestionLocalFromCache(t *testing.T) {
	h := newTestHarness(t)
	h.seedQuestion(t, &Question{ID: "q1", User: User{Username: "alice"}, Title: "t", Body: "b", ViewCount: 3})

	rec := h.do(t, ServiceQA, QAGetQuestion, http.MethodGet, "/questions/q1", "", map[string]string{"qid": "q1"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	question, ok := body["question"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "q1", question["id"])
	assert.Equal(t, float64(4), question["view_count"])
	h.transport.assertNoCall(t)
}

func TestHandleDeleteQuestionOwnerLocal(t *testing.T) {
	h := newTestHarness(t)
	h.login("alice")
	h.seedQuestion(t, &Question{ID: "q1", User: User{Username: "alice"}})

	rec := h.do(t, ServiceQA, QADeleteQuestion, http.MethodDelete, "/questions/q1", "", map[string]string{"qid": "q1"})

	require.Equal(t, http.StatusOK, rec.Code)
	call := h.transport.awaitCall(t)
	assert.Equal(t, QADeleteQuestion, call.Endpoint)

	// The source entry is gone and a racing read replays the deletion.
	ctx := context.Background()
	_, ok, err := h.cache.Get(ctx, cache.SourceKey("q1"))
	require.NoError(t, err)
	assert.False(t, ok)

	rec = h.do(t, ServiceQA, QAGetQuestion, http.MethodGet, "/questions/q1", "", map[string]string{"qid": "q1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrQuestionNotFound, decodeBody(t, rec)["error"])
	h.transport.assertNoCall(t)
}

func TestHandleDeleteQuestionNotOwner(t *testing.T) {
	h := newTestHarness(t)
	h.login("mallory")
	h.seedQuestion(t, &Question{ID: "q1", User: User{Username: "alice"}})

	rec := h.do(t, ServiceQA, QADeleteQuestion, http.MethodDelete, "/questions/q1", "", map[string]string{"qid": "q1"})

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ErrDeleteNotOwnQ, decodeBody(t, rec)["error"])
	h.transport.assertNoCall(t)

	_, ok, err := h.cache.Get(context.Background(), cache.SourceKey("q1"))
	require.NoError(t, err)
	assert.True(t, ok, "failed delete must not touch the cache")
}

func TestHandleUpvoteQuestionLocal(t *testing.T) {
	h := newTestHarness(t)
	h.login("alice")
	h.seedQuestion(t, &Question{ID: "q1", User: User{Username: "bob"}, Score: 1})

	rec := h.do(t, ServiceQA, QAUpvoteQuestion, http.MethodPost, "/questions/q1/upvote",
		`{"upvote":true}`, map[string]string{"qid": "q1"})

	require.Equal(t, http.StatusOK, rec.Code)
	call := h.transport.awaitCall(t)
	assert.Equal(t, QAUpvoteQuestion, call.Endpoint)

	_, ok, err := h.cache.Get(context.Background(), cache.SourceKey("q1"))
	require.NoError(t, err)
	assert.False(t, ok, "upvote must drop the cached source")
}

func TestHandleGetAnswersLocal(t *testing.T) {
	h := newTestHarness(t)
	h.gateway.store.put(context.Background(), cache.QuestionAnswersKey("q1"), []Answer{
		{ID: "a1", QID: "q1", User: "bob", Body: "answer", Score: 2},
	})

	rec := h.do(t, ServiceQA, QAGetAnswers, http.MethodGet, "/questions/q1/answers", "", map[string]string{"qid": "q1"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	answers, ok := body["answers"].([]any)
	require.True(t, ok)
	require.Len(t, answers, 1)
	first, ok := answers[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a1", first["id"])
	assert.NotContains(t, first, "qid")
	h.transport.assertNoCall(t)
}

func TestBuildEnvelopeClientIP(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/questions/q1", nil)
	req.RemoteAddr = "192.0.2.10:50000"
	env := h.gateway.buildEnvelope(req, QAGetQuestion, nil)
	assert.Equal(t, "192.0.2.10", env.IP)

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	env = h.gateway.buildEnvelope(req, QAGetQuestion, nil)
	assert.Equal(t, "203.0.113.9", env.IP)
}
