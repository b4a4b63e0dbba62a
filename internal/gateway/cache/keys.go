package cache

// Composite key schema for the dispatch engine's object families. The cache is
// a single flat namespace; the prefix encodes which family an entry belongs to.

// SourceKey addresses the canonical question or answer document for an id.
func SourceKey(id string) string { return "source:" + id }

// GetKey addresses the previously computed HTTP response for a GET of id.
func GetKey(id string) string { return "get:" + id }

// ViewsKey addresses the per-question view deduplication sets.
func ViewsKey(qid string) string { return "views:" + qid }

// QuestionAnswersKey addresses the cached answer list for a question.
func QuestionAnswersKey(qid string) string { return "question_answers:" + qid }

// SessionKey addresses the authenticated user bound to a session token.
func SessionKey(token string) string { return "session:" + token }
