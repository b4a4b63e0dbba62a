package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway"
)

// recordingDispatcher captures which operation each request routed to.
type recordingDispatcher struct {
	service  gateway.Service
	endpoint gateway.Endpoint
	params   map[string]string
}

func (d *recordingDispatcher) Handler(svc gateway.Service, ep gateway.Endpoint, params ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.service = svc
		d.endpoint = ep
		d.params = make(map[string]string, len(params))
		for _, name := range params {
			d.params[name] = r.PathValue(name)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRouterDispatchesOperations(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		wantSvc    gateway.Service
		wantEp     gateway.Endpoint
		wantParams map[string]string
	}{
		{"login", http.MethodPost, "/login", gateway.ServiceAuth, gateway.AuthLogin, map[string]string{}},
		{"logout", http.MethodPost, "/logout", gateway.ServiceAuth, gateway.AuthLogout, map[string]string{}},
		{"verify", http.MethodPost, "/verify", gateway.ServiceEmail, gateway.EmailVerify, map[string]string{}},
		{"adduser", http.MethodPost, "/adduser", gateway.ServiceRegister, gateway.RegisterUser, map[string]string{}},
		{"add media", http.MethodPost, "/addmedia", gateway.ServiceMedia, gateway.MediaAdd, map[string]string{}},
		{"get media", http.MethodGet, "/media/m1", gateway.ServiceMedia, gateway.MediaGet, map[string]string{"id": "m1"}},
		{"add question", http.MethodPost, "/questions/add", gateway.ServiceQA, gateway.QAAddQuestion, map[string]string{}},
		{"get question", http.MethodGet, "/questions/q1", gateway.ServiceQA, gateway.QAGetQuestion, map[string]string{"qid": "q1"}},
		{"delete question", http.MethodDelete, "/questions/q1", gateway.ServiceQA, gateway.QADeleteQuestion, map[string]string{"qid": "q1"}},
		{"add answer", http.MethodPost, "/questions/q1/answers/add", gateway.ServiceQA, gateway.QAAddAnswer, map[string]string{"qid": "q1"}},
		{"get answers", http.MethodGet, "/questions/q1/answers", gateway.ServiceQA, gateway.QAGetAnswers, map[string]string{"qid": "q1"}},
		{"upvote question", http.MethodPost, "/questions/q1/upvote", gateway.ServiceQA, gateway.QAUpvoteQuestion, map[string]string{"qid": "q1"}},
		{"upvote answer", http.MethodPost, "/answers/a1/upvote", gateway.ServiceQA, gateway.QAUpvoteAnswer, map[string]string{"aid": "a1"}},
		{"accept answer", http.MethodPost, "/answers/a1/accept", gateway.ServiceQA, gateway.QAAcceptAnswer, map[string]string{"aid": "a1"}},
		{"search", http.MethodPost, "/search", gateway.ServiceSearch, gateway.SearchPosts, map[string]string{}},
		{"get user", http.MethodGet, "/user/alice", gateway.ServiceUser, gateway.UserGet, map[string]string{"uid": "alice"}},
		{"user questions", http.MethodGet, "/user/alice/questions", gateway.ServiceUser, gateway.UserQuestions, map[string]string{"uid": "alice"}},
		{"user answers", http.MethodGet, "/user/alice/answers", gateway.ServiceUser, gateway.UserAnswers, map[string]string{"uid": "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			router := NewRouter(d, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantSvc, d.service)
			assert.Equal(t, tt.wantEp, d.endpoint)
			assert.Equal(t, tt.wantParams, d.params)
		})
	}
}

func TestRouterUnknownPath(t *testing.T) {
	router := NewRouter(&recordingDispatcher{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterHealthz(t *testing.T) {
	router := NewRouter(&recordingDispatcher{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
}

func TestRouterMountsMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics"))
	})
	router := NewRouter(&recordingDispatcher{}, metrics)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
