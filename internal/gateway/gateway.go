package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
	"github.com/devhid/stackoverflow-clone-sub000/internal/metrics"
)

const defaultRPCTimeout = 5 * time.Second

// maxMediaBytes caps multipart uploads read into the envelope.
const maxMediaBytes = 16 << 20

// Config carries the gateway's collaborators. Cache and Transport are
// required; the rest default sensibly.
type Config struct {
	Cache      cache.ObjectCache
	Transport  Transport
	Sessions   SessionStore
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
	TTL        time.Duration
	RPCTimeout time.Duration
}

// Gateway dispatches inbound operations: it resolves whatever cached object
// the operation depends on, decides whether to hold the caller for a backend
// reply or answer locally, and applies the cache fallout afterward.
type Gateway struct {
	store      *objectStore
	transport  Transport
	sessions   SessionStore
	logger     *slog.Logger
	metrics    *metrics.Recorder
	rpcTimeout time.Duration
}

// New constructs a Gateway from its collaborators.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RPCTimeout
	if timeout <= 0 {
		timeout = defaultRPCTimeout
	}
	return &Gateway{
		store:      newObjectStore(cfg.Cache, cfg.TTL, logger, cfg.Metrics),
		transport:  cfg.Transport,
		sessions:   cfg.Sessions,
		logger:     logger,
		metrics:    cfg.Metrics,
		rpcTimeout: timeout,
	}
}

// Handler adapts one (service, endpoint) pair to an http.Handler. params
// names the path wildcards to copy into the envelope.
func (g *Gateway) Handler(svc Service, ep Endpoint, params ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env := g.buildEnvelope(r, ep, params)
		g.Handle(w, r, svc, ep, env)
	})
}

// buildEnvelope normalizes one HTTP request into the envelope the dispatch
// pipeline and the backend services consume.
func (g *Gateway) buildEnvelope(r *http.Request, ep Endpoint, params []string) Envelope {
	env := Envelope{IP: clientIP(r)}

	if g.sessions != nil {
		if user := g.sessions.Resolve(r.Context(), r); user != nil {
			env.Session.User = user
		}
	}

	if len(params) > 0 {
		env.Params = make(map[string]string, len(params))
		for _, name := range params {
			env.Params[name] = r.PathValue(name)
		}
	}

	if ep == MediaAdd {
		env.Body = readMediaBody(r)
		return env
	}
	if r.Body != nil && r.Method != http.MethodGet {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			env.Body = body
		}
	}
	return env
}

// readMediaBody lifts a multipart upload's "content" file into the envelope
// as base64, so it survives the JSON hop to the media service.
func readMediaBody(r *http.Request) map[string]any {
	if err := r.ParseMultipartForm(maxMediaBytes); err != nil {
		return nil
	}
	file, header, err := r.FormFile("content")
	if err != nil {
		return nil
	}
	defer file.Close()
	raw, err := io.ReadAll(io.LimitReader(file, maxMediaBytes))
	if err != nil {
		return nil
	}
	return map[string]any{
		"name":    header.Filename,
		"content": base64.StdEncoding.EncodeToString(raw),
	}
}

// clientIP prefers the first forwarded address, falling back to the peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handle runs one dispatch end to end and writes the response.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request, svc Service, ep Endpoint, env Envelope) {
	start := time.Now()
	res := g.dispatch(r.Context(), svc, ep, env)

	g.finalizeSession(r.Context(), w, r, ep, &res)

	mode := metrics.DispatchModeBackend
	if res.Local {
		mode = metrics.DispatchModeLocal
	}
	g.metrics.ObserveRequest(string(svc), string(ep), res.Status, mode, time.Since(start))
	g.logger.InfoContext(r.Context(), "request dispatched",
		slog.String("service", string(svc)),
		slog.String("endpoint", string(ep)),
		slog.Int("status", res.Status),
		slog.String("mode", string(mode)),
		slog.Duration("elapsed", time.Since(start)),
	)

	writeResult(w, res)
}

// dispatch is the per-request pipeline: resolve the relevant cached object,
// apply the wait policy, obtain a result from the backend or the local
// synthesizer, then update the cache from the outcome.
func (g *Gateway) dispatch(ctx context.Context, svc Service, ep Endpoint, env Envelope) Result {
	rel := g.resolveRelevance(ctx, ep, env)

	var res Result
	if shouldWait(ep, env, rel) {
		res = g.invokeBackend(ctx, svc, ep, env)
	} else {
		res = g.synthesize(ctx, ep, env, rel)
		if res.Queue {
			g.queueWrite(svc, ep, env.WithID(res.QueuedID))
		}
	}

	g.updateCache(ctx, ep, env, res)
	return res
}

// invokeBackend holds the caller for the authoritative reply. A deadline
// overrun and any other transport failure both surface as a generic error;
// nothing is retried here.
func (g *Gateway) invokeBackend(ctx context.Context, svc Service, ep Endpoint, env Envelope) Result {
	callCtx, cancel := context.WithTimeout(ctx, g.rpcTimeout)
	defer cancel()

	start := time.Now()
	reply, err := g.transport.Invoke(callCtx, svc, ep, env)
	g.metrics.ObserveRPC(string(svc), metrics.DispatchModeBackend, rpcOutcome(err), time.Since(start))
	if err != nil {
		g.logger.ErrorContext(ctx, "backend call failed",
			slog.String("service", string(svc)),
			slog.String("endpoint", string(ep)),
			slog.Any("error", err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Status: http.StatusInternalServerError, Body: errBody(ErrTookTooLong)}
		}
		return Result{Status: http.StatusInternalServerError, Body: errBody(ErrGeneral)}
	}
	return Result{Status: reply.Status, Body: reply.Response, ContentType: reply.ContentType}
}

// queueWrite fires the durable backend write behind an already-answered
// request. The call detaches from the request context so the response going
// out does not cancel it; failures are logged and dropped.
func (g *Gateway) queueWrite(svc Service, ep Endpoint, env Envelope) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.rpcTimeout)
		defer cancel()
		start := time.Now()
		_, err := g.transport.Invoke(ctx, svc, ep, env)
		g.metrics.ObserveRPC(string(svc), metrics.DispatchModeLocal, rpcOutcome(err), time.Since(start))
		if err != nil {
			g.logger.WarnContext(ctx, "queued write failed",
				slog.String("service", string(svc)),
				slog.String("endpoint", string(ep)),
				slog.Any("error", err),
			)
		}
	}()
}

func rpcOutcome(err error) metrics.RPCOutcome {
	switch {
	case err == nil:
		return metrics.RPCOutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.RPCOutcomeTimeout
	default:
		return metrics.RPCOutcomeError
	}
}

// finalizeSession binds or destroys the login session when the auth endpoints
// succeed. The user document the auth service returns is consumed here and
// stripped from the body the client sees.
func (g *Gateway) finalizeSession(ctx context.Context, w http.ResponseWriter, r *http.Request, ep Endpoint, res *Result) {
	if g.sessions == nil || !res.OK() {
		return
	}
	switch ep {
	case AuthLogin:
		var user User
		if !remarshal(res.Body[userKey], &user) {
			return
		}
		delete(res.Body, userKey)
		if err := g.sessions.Bind(ctx, w, user); err != nil {
			g.logger.ErrorContext(ctx, "session bind failed", slog.Any("error", err))
			res.Status = http.StatusInternalServerError
			res.Body = errBody(ErrGeneral)
		}
	case AuthLogout:
		if err := g.sessions.Destroy(ctx, w, r); err != nil {
			g.logger.WarnContext(ctx, "session destroy failed", slog.Any("error", err))
		}
	}
}

// writeResult serializes the finalized result. Replies carrying an explicit
// content type, media reads in practice, are written as raw bytes decoded
// from the body's content field; everything else is the JSON envelope.
func writeResult(w http.ResponseWriter, res Result) {
	if res.ContentType != "" {
		if content, ok := res.Body["content"].(string); ok {
			if raw, err := base64.StdEncoding.DecodeString(content); err == nil {
				w.Header().Set("Content-Type", res.ContentType)
				w.WriteHeader(res.Status)
				_, _ = w.Write(raw)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	body := res.Body
	if body == nil {
		body = errBody(ErrGeneral)
	}
	_ = json.NewEncoder(w).Encode(body)
}
