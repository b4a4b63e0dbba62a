package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway"
)

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxReplyBytes = 32 << 20

// call is the wire envelope one backend invocation travels in.
type call struct {
	Endpoint gateway.Endpoint `json:"endpoint"`
	gateway.Envelope
}

// HTTPTransport forwards enveloped operations to per-service base URLs over
// HTTP. Routes can be swapped at runtime, so a registry watcher can repoint
// services without a restart.
type HTTPTransport struct {
	client httpDoer
	logger *slog.Logger

	mu     sync.RWMutex
	routes map[string]string
}

// NewHTTPTransport builds a transport over the given service base URLs.
// A nil client falls back to http.DefaultClient; per-call deadlines arrive
// via ctx.
func NewHTTPTransport(routes map[string]string, client *http.Client, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	var doer httpDoer = http.DefaultClient
	if client != nil {
		doer = client
	}
	t := &HTTPTransport{client: doer, logger: logger}
	t.UpdateRoutes(routes)
	return t
}

// UpdateRoutes replaces the service registry wholesale.
func (t *HTTPTransport) UpdateRoutes(routes map[string]string) {
	cloned := make(map[string]string, len(routes))
	for svc, base := range routes {
		cloned[svc] = strings.TrimRight(base, "/")
	}
	t.mu.Lock()
	t.routes = cloned
	t.mu.Unlock()
}

func (t *HTTPTransport) route(svc gateway.Service) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	base, ok := t.routes[string(svc)]
	return base, ok
}

// Invoke posts the envelope to the owning service's /rpc endpoint and decodes
// the correlated reply.
func (t *HTTPTransport) Invoke(ctx context.Context, svc gateway.Service, ep gateway.Endpoint, env gateway.Envelope) (gateway.Reply, error) {
	base, ok := t.route(svc)
	if !ok {
		return gateway.Reply{}, fmt.Errorf("rpc: no route for service %q", svc)
	}

	payload, err := json.Marshal(call{Endpoint: ep, Envelope: env})
	if err != nil {
		return gateway.Reply{}, fmt.Errorf("rpc: encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/rpc", bytes.NewReader(payload))
	if err != nil {
		return gateway.Reply{}, fmt.Errorf("rpc: build request: %w", err)
	}
	correlation := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", correlation)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return gateway.Reply{}, fmt.Errorf("rpc: call %s/%s: %w", svc, ep, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var reply gateway.Reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&reply); err != nil {
		return gateway.Reply{}, fmt.Errorf("rpc: decode reply from %s/%s: %w", svc, ep, err)
	}

	t.logger.DebugContext(ctx, "backend call completed",
		slog.String("service", string(svc)),
		slog.String("endpoint", string(ep)),
		slog.String("correlation_id", correlation),
		slog.Int("status", reply.Status),
		slog.Duration("elapsed", time.Since(start)),
	)
	return reply, nil
}
