package gateway

import (
	"context"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
)

// countView advances a question's view count at most once per principal:
// authenticated viewers count by username, anonymous viewers by IP. When the
// principal is new, the view set, the source document and the cached read
// response are persisted together so no partial update is visible to later
// requests. Returns the question to render, with any increment applied.
func (g *Gateway) countView(ctx context.Context, env Envelope, q *Question) *Question {
	viewsKey := cache.ViewsKey(q.ID)
	views := g.store.views(ctx, viewsKey)
	if views == nil {
		views = &ViewSet{QID: q.ID}
	}

	if views.Seen(env.Username(), env.IP) {
		return q
	}

	views.Add(env.Username(), env.IP)
	q.ViewCount++
	g.store.put(ctx, viewsKey, views)
	g.store.put(ctx, cache.SourceKey(q.ID), q)
	g.store.put(ctx, cache.GetKey(q.ID), questionReply(q))
	return q
}
