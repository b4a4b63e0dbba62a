package gateway

import (
	"context"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
)

// relevantObject is whatever cached state an endpoint's dispatch decision
// hinges on. At most one of the fields is populated, depending on the
// endpoint family.
type relevantObject struct {
	Question *Question
	Answer   *Answer
	Answers  []Answer
	// HasAnswers distinguishes a cached empty answer list from a miss.
	HasAnswers bool
	// Reply is a whole cached read response to replay verbatim, such as the
	// not-found entry a delete installs.
	Reply *CachedReply
}

// present reports whether the lookup found anything at all.
func (r *relevantObject) present() bool {
	if r == nil {
		return false
	}
	return r.Question != nil || r.Answer != nil || r.HasAnswers || r.Reply != nil
}

// resolveRelevance loads the cached object an endpoint's wait decision and
// local synthesis depend on. Every hit refreshes the entry's lifetime.
// Endpoints outside the qa service, pure inserts like qa_add_q, and upvotes
// have no relevant object.
func (g *Gateway) resolveRelevance(ctx context.Context, ep Endpoint, env Envelope) *relevantObject {
	rel := &relevantObject{}
	switch ep {
	case QAGetQuestion:
		key := cache.SourceKey(env.Param("qid"))
		if q := g.store.question(ctx, key); q != nil {
			rel.Question = q
			g.store.touch(ctx, key)
			break
		}
		// A read racing a just-deleted question must see the deletion without
		// asking a backend the queued delete may not have reached yet.
		getKey := cache.GetKey(env.Param("qid"))
		if reply := g.store.reply(ctx, getKey); reply != nil {
			rel.Reply = reply
			g.store.touch(ctx, getKey)
		}
	case QADeleteQuestion, QAAddAnswer:
		key := cache.SourceKey(env.Param("qid"))
		if q := g.store.question(ctx, key); q != nil {
			rel.Question = q
			g.store.touch(ctx, key)
		}
	case QAGetAnswers:
		key := cache.QuestionAnswersKey(env.Param("qid"))
		if answers, ok := g.store.answers(ctx, key); ok {
			rel.Answers = answers
			rel.HasAnswers = true
			g.store.touch(ctx, key)
		}
	case QAAcceptAnswer:
		// The accept decision needs both the answer and its question: the
		// answer for the already-accepted check, the question for ownership.
		// A miss on either leaves the whole object absent.
		key := cache.SourceKey(env.Param("aid"))
		a := g.store.answer(ctx, key)
		if a == nil {
			return rel
		}
		g.store.touch(ctx, key)
		qKey := cache.SourceKey(a.QID)
		q := g.store.question(ctx, qKey)
		if q == nil {
			return rel
		}
		g.store.touch(ctx, qKey)
		rel.Answer = a
		rel.Question = q
	}
	return rel
}
