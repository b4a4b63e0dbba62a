package gateway

// Question is the cached document for one question, matching the shape the
// qa service stores and returns.
type Question struct {
	ID               string   `json:"id"`
	User             User     `json:"user"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Score            int      `json:"score"`
	ViewCount        int      `json:"view_count"`
	AnswerCount      int      `json:"answer_count"`
	Timestamp        float64  `json:"timestamp"`
	Media            []string `json:"media"`
	Tags             []string `json:"tags"`
	AcceptedAnswerID *string  `json:"accepted_answer_id"`
}

// Answer is the cached document for one answer.
type Answer struct {
	ID         string   `json:"id"`
	QID        string   `json:"qid"`
	User       string   `json:"user"`
	Body       string   `json:"body"`
	Score      int      `json:"score"`
	IsAccepted bool     `json:"is_accepted"`
	Timestamp  float64  `json:"timestamp"`
	Media      []string `json:"media"`
}

// ViewSet tracks which principals have already counted a view against a
// question. Authenticated viewers are tracked by username, anonymous viewers
// by IP.
type ViewSet struct {
	QID             string   `json:"qid"`
	Authenticated   []string `json:"authenticated"`
	Unauthenticated []string `json:"unauthenticated"`
}

// Seen reports whether the principal already counted a view.
func (v *ViewSet) Seen(username, ip string) bool {
	if username != "" {
		for _, u := range v.Authenticated {
			if u == username {
				return true
			}
		}
		return false
	}
	for _, addr := range v.Unauthenticated {
		if addr == ip {
			return true
		}
	}
	return false
}

// Add records the principal in the appropriate set.
func (v *ViewSet) Add(username, ip string) {
	if username != "" {
		v.Authenticated = append(v.Authenticated, username)
		return
	}
	v.Unauthenticated = append(v.Unauthenticated, ip)
}

// CachedReply is a whole response body cached under a get:<id> key, replayed
// verbatim for repeat reads.
type CachedReply struct {
	Status   int            `json:"status"`
	Response map[string]any `json:"response"`
}

// nilIfEmpty keeps media lists null in responses when there are none, which
// is what the services emit.
func nilIfEmpty(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// questionView renders the question document the way qa_get_q responds with
// it.
func questionView(q *Question) map[string]any {
	return map[string]any{
		"id": q.ID,
		"user": map[string]any{
			"username":   q.User.Username,
			"reputation": q.User.Reputation,
		},
		"title":              q.Title,
		"body":               q.Body,
		"score":              q.Score,
		"view_count":         q.ViewCount,
		"answer_count":       q.AnswerCount,
		"timestamp":          q.Timestamp,
		"media":              nilIfEmpty(q.Media),
		"tags":               q.Tags,
		"accepted_answer_id": q.AcceptedAnswerID,
	}
}

// answerView renders one answer the way qa_get_a lists them. The qid is an
// internal linkage field and is not exposed.
func answerView(a *Answer) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"user":        a.User,
		"body":        a.Body,
		"score":       a.Score,
		"is_accepted": a.IsAccepted,
		"timestamp":   a.Timestamp,
		"media":       nilIfEmpty(a.Media),
	}
}

func answerViews(answers []Answer) []map[string]any {
	out := make([]map[string]any, 0, len(answers))
	for i := range answers {
		out = append(out, answerView(&answers[i]))
	}
	return out
}
