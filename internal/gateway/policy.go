package gateway

// waitRule decides whether a dispatch must hold the caller until the backend
// replies, given the envelope and whatever relevant object the cache held.
type waitRule func(env Envelope, rel *relevantObject) bool

// waitPolicy maps each qa endpoint to its wait rule. Endpoints absent from
// the table, which is every non-qa endpoint, always wait: their services own
// state the gateway does not cache, so there is nothing to answer from
// locally.
var waitPolicy = map[Endpoint]waitRule{
	// Inserts are acknowledged locally unless media has to be validated,
	// which only the media service can do, and only for a known principal.
	QAAddQuestion: func(env Envelope, _ *relevantObject) bool {
		return env.Authenticated() && len(env.MediaIDs()) > 0
	},
	QAAddAnswer: func(env Envelope, _ *relevantObject) bool {
		return env.Authenticated() && len(env.MediaIDs()) > 0
	},

	// Destructive and privileged operations run locally only when the cache
	// holds enough state to authorize them.
	QADeleteQuestion: func(env Envelope, rel *relevantObject) bool {
		return !rel.present() || !env.Authenticated()
	},
	QAAcceptAnswer: func(env Envelope, rel *relevantObject) bool {
		return !rel.present() || !env.Authenticated()
	},

	// Votes are always absorbed locally; the queued write reconciles the
	// score later.
	QAUpvoteQuestion: func(Envelope, *relevantObject) bool { return false },
	QAUpvoteAnswer:   func(Envelope, *relevantObject) bool { return false },

	// Reads wait only on a cold cache.
	QAGetQuestion: func(_ Envelope, rel *relevantObject) bool {
		return !rel.present()
	},
	QAGetAnswers: func(_ Envelope, rel *relevantObject) bool {
		return !rel.present()
	},
}

// shouldWait applies the wait policy for one dispatch.
func shouldWait(ep Endpoint, env Envelope, rel *relevantObject) bool {
	rule, ok := waitPolicy[ep]
	if !ok {
		return true
	}
	return rule(env, rel)
}
