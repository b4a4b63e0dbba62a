package gateway

import (
	"context"
	"encoding/json"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
)

// updateCache applies the post-dispatch side effects for one finalized
// result. Only successful outcomes mutate the cache; errors of any kind leave
// it untouched.
func (g *Gateway) updateCache(ctx context.Context, ep Endpoint, env Envelope, res Result) {
	if !res.OK() {
		return
	}

	switch ep {
	case QAAddAnswer:
		// The cached answer list no longer includes the new answer.
		g.store.remove(ctx, cache.QuestionAnswersKey(env.Param("qid")))

	case QADeleteQuestion:
		qid := env.Param("qid")
		g.store.remove(ctx, cache.SourceKey(qid))
		g.store.put(ctx, cache.GetKey(qid), notFoundReply())

	case QAGetQuestion:
		if res.Local {
			return
		}
		qid := env.Param("qid")
		g.store.put(ctx, cache.GetKey(qid), CachedReply{Status: res.Status, Response: res.Body})
		var q Question
		if remarshal(res.Body[questionKey], &q) {
			g.store.put(ctx, cache.SourceKey(qid), &q)
		}

	case QAGetAnswers:
		if res.Local {
			return
		}
		var answers []Answer
		if remarshal(res.Body[answersKey], &answers) {
			g.store.put(ctx, cache.QuestionAnswersKey(env.Param("qid")), answers)
		}
	}
}

// remarshal converts a decoded JSON fragment into a typed document.
func remarshal(src any, dst any) bool {
	if src == nil {
		return false
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
