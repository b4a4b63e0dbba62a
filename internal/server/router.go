package server

import (
	"net/http"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway"
)

// Dispatcher is the surface the router needs from the gateway: one handler
// per (service, endpoint) pair, with the named path wildcards to lift into
// the request envelope.
type Dispatcher interface {
	Handler(svc gateway.Service, ep gateway.Endpoint, params ...string) http.Handler
}

// route binds one HTTP pattern to the backend operation that owns it.
type route struct {
	pattern  string
	service  gateway.Service
	endpoint gateway.Endpoint
	params   []string
}

var routes = []route{
	{pattern: "POST /login", service: gateway.ServiceAuth, endpoint: gateway.AuthLogin},
	{pattern: "POST /logout", service: gateway.ServiceAuth, endpoint: gateway.AuthLogout},
	{pattern: "POST /verify", service: gateway.ServiceEmail, endpoint: gateway.EmailVerify},
	{pattern: "POST /adduser", service: gateway.ServiceRegister, endpoint: gateway.RegisterUser},

	{pattern: "POST /addmedia", service: gateway.ServiceMedia, endpoint: gateway.MediaAdd},
	{pattern: "GET /media/{id}", service: gateway.ServiceMedia, endpoint: gateway.MediaGet, params: []string{"id"}},

	{pattern: "POST /questions/add", service: gateway.ServiceQA, endpoint: gateway.QAAddQuestion},
	{pattern: "GET /questions/{qid}", service: gateway.ServiceQA, endpoint: gateway.QAGetQuestion, params: []string{"qid"}},
	{pattern: "DELETE /questions/{qid}", service: gateway.ServiceQA, endpoint: gateway.QADeleteQuestion, params: []string{"qid"}},
	{pattern: "POST /questions/{qid}/answers/add", service: gateway.ServiceQA, endpoint: gateway.QAAddAnswer, params: []string{"qid"}},
	{pattern: "GET /questions/{qid}/answers", service: gateway.ServiceQA, endpoint: gateway.QAGetAnswers, params: []string{"qid"}},
	{pattern: "POST /questions/{qid}/upvote", service: gateway.ServiceQA, endpoint: gateway.QAUpvoteQuestion, params: []string{"qid"}},
	{pattern: "POST /answers/{aid}/upvote", service: gateway.ServiceQA, endpoint: gateway.QAUpvoteAnswer, params: []string{"aid"}},
	{pattern: "POST /answers/{aid}/accept", service: gateway.ServiceQA, endpoint: gateway.QAAcceptAnswer, params: []string{"aid"}},

	{pattern: "POST /search", service: gateway.ServiceSearch, endpoint: gateway.SearchPosts},
	{pattern: "GET /user/{uid}", service: gateway.ServiceUser, endpoint: gateway.UserGet, params: []string{"uid"}},
	{pattern: "GET /user/{uid}/questions", service: gateway.ServiceUser, endpoint: gateway.UserQuestions, params: []string{"uid"}},
	{pattern: "GET /user/{uid}/answers", service: gateway.ServiceUser, endpoint: gateway.UserAnswers, params: []string{"uid"}},
}

// NewRouter maps the public HTTP surface onto gateway dispatches and mounts
// the operational endpoints alongside it.
func NewRouter(d Dispatcher, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	for _, rt := range routes {
		mux.Handle(rt.pattern, d.Handler(rt.service, rt.endpoint, rt.params...))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}
