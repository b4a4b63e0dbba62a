package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
)

// synthRule produces a full dispatch result from local state, without
// contacting the backend. The wait policy guarantees whatever cached object
// the rule needs is already resolved into rel.
type synthRule func(g *Gateway, ctx context.Context, env Envelope, rel *relevantObject) Result

var synthPolicy = map[Endpoint]synthRule{
	QAAddQuestion:    (*Gateway).synthesizeAddQuestion,
	QAAddAnswer:      (*Gateway).synthesizeAddAnswer,
	QADeleteQuestion: (*Gateway).synthesizeDeleteQuestion,
	QAAcceptAnswer:   (*Gateway).synthesizeAcceptAnswer,
	QAUpvoteQuestion: (*Gateway).synthesizeUpvoteQuestion,
	QAUpvoteAnswer:   (*Gateway).synthesizeUpvoteAnswer,
	QAGetQuestion:    (*Gateway).synthesizeGetQuestion,
	QAGetAnswers:     (*Gateway).synthesizeGetAnswers,
}

// synthesize runs the local path for one endpoint. Reaching it for an
// endpoint outside the table is a routing bug; answer with a generic error
// rather than panicking in the request path.
func (g *Gateway) synthesize(ctx context.Context, ep Endpoint, env Envelope, rel *relevantObject) Result {
	rule, ok := synthPolicy[ep]
	if !ok {
		return errResult(http.StatusInternalServerError, ErrGeneral)
	}
	return rule(g, ctx, env, rel)
}

// synthesizeAddQuestion acknowledges a plain-text question immediately with a
// generated id; the durable insert is queued behind the response.
func (g *Gateway) synthesizeAddQuestion(_ context.Context, env Envelope, _ *relevantObject) Result {
	if !env.Authenticated() {
		return errResult(http.StatusUnauthorized, ErrMissingParams)
	}
	if env.BodyString("title") == "" || env.BodyString("body") == "" || !env.HasBodyField("tags") {
		return errResult(http.StatusBadRequest, ErrMissingParams)
	}
	id := uuid.NewString()
	res := okResult(map[string]any{idKey: id})
	res.Queue = true
	res.QueuedID = id
	return res
}

func (g *Gateway) synthesizeAddAnswer(_ context.Context, env Envelope, _ *relevantObject) Result {
	if !env.Authenticated() {
		return errResult(http.StatusUnauthorized, ErrMissingParams)
	}
	if env.BodyString("body") == "" {
		return errResult(http.StatusBadRequest, ErrMissingParams)
	}
	id := uuid.NewString()
	res := okResult(map[string]any{idKey: id})
	res.Queue = true
	res.QueuedID = id
	return res
}

// synthesizeDeleteQuestion authorizes the delete against the cached question.
// The cache fallout, dropping the source and installing a not-found read, is
// applied by the post-dispatch updater so local and backend deletes mutate
// the cache in exactly one place.
func (g *Gateway) synthesizeDeleteQuestion(_ context.Context, env Envelope, rel *relevantObject) Result {
	if env.Username() != rel.Question.User.Username {
		return errResult(http.StatusForbidden, ErrDeleteNotOwnQ)
	}
	res := okResult(nil)
	res.Queue = true
	return res
}

// synthesizeAcceptAnswer resolves the accept locally. The already-accepted
// check runs before the ownership check, so a terminal question answers the
// same way no matter who asks.
func (g *Gateway) synthesizeAcceptAnswer(ctx context.Context, env Envelope, rel *relevantObject) Result {
	q, a := rel.Question, rel.Answer
	if a.IsAccepted || q.AcceptedAnswerID != nil {
		return errResult(http.StatusBadRequest, ErrAlreadyAccepted)
	}
	if env.Username() != q.User.Username {
		return errResult(http.StatusForbidden, ErrNotAllowed)
	}

	accepted := a.ID
	q.AcceptedAnswerID = &accepted
	a.IsAccepted = true
	g.store.put(ctx, cache.SourceKey(q.ID), q)
	g.store.put(ctx, cache.GetKey(q.ID), questionReply(q))
	g.store.put(ctx, cache.SourceKey(a.ID), a)
	g.store.put(ctx, cache.GetKey(a.ID), answerReply(a))

	res := okResult(nil)
	res.Queue = true
	return res
}

// synthesizeUpvoteQuestion drops the cached copies so the next read picks up
// the backend-recomputed score.
func (g *Gateway) synthesizeUpvoteQuestion(ctx context.Context, env Envelope, _ *relevantObject) Result {
	if !env.Authenticated() {
		return errResult(http.StatusUnauthorized, ErrMissingParams)
	}
	qid := env.Param("qid")
	if qid == "" {
		return errResult(http.StatusBadRequest, ErrMissingParams)
	}
	g.store.remove(ctx, cache.SourceKey(qid))
	g.store.remove(ctx, cache.GetKey(qid))
	res := okResult(nil)
	res.Queue = true
	return res
}

func (g *Gateway) synthesizeUpvoteAnswer(ctx context.Context, env Envelope, _ *relevantObject) Result {
	if !env.Authenticated() {
		return errResult(http.StatusUnauthorized, ErrMissingParams)
	}
	aid := env.Param("aid")
	if aid == "" {
		return errResult(http.StatusBadRequest, ErrMissingParams)
	}
	g.store.remove(ctx, cache.SourceKey(aid))
	res := okResult(nil)
	res.Queue = true
	return res
}

// synthesizeGetQuestion answers a hot read from the cached question, counting
// the view at most once per principal.
func (g *Gateway) synthesizeGetQuestion(ctx context.Context, env Envelope, rel *relevantObject) Result {
	if rel.Question == nil {
		return Result{Status: rel.Reply.Status, Body: rel.Reply.Response, Local: true}
	}
	q := g.countView(ctx, env, rel.Question)
	return okResult(map[string]any{questionKey: questionView(q)})
}

func (g *Gateway) synthesizeGetAnswers(_ context.Context, _ Envelope, rel *relevantObject) Result {
	return okResult(map[string]any{answersKey: answerViews(rel.Answers)})
}

// questionReply builds the cached read response for a question, the same body
// a qa_get_q dispatch would have returned.
func questionReply(q *Question) CachedReply {
	return CachedReply{
		Status:   http.StatusOK,
		Response: okBody(map[string]any{questionKey: questionView(q)}),
	}
}

func answerReply(a *Answer) CachedReply {
	return CachedReply{
		Status:   http.StatusOK,
		Response: okBody(map[string]any{answerKey: answerView(a)}),
	}
}

// notFoundReply is installed under get:<qid> when a question is deleted, so a
// read racing the queued delete sees the deletion immediately.
func notFoundReply() CachedReply {
	return CachedReply{
		Status:   http.StatusBadRequest,
		Response: errBody(ErrQuestionNotFound),
	}
}
