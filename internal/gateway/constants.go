package gateway

// Service identifies the backend domain an operation belongs to. The value is
// also the routing key the transport uses to find the service.
type Service string

const (
	ServiceAuth     Service = "auth"
	ServiceEmail    Service = "email"
	ServiceMedia    Service = "media"
	ServiceQA       Service = "qa"
	ServiceRegister Service = "reg"
	ServiceSearch   Service = "search"
	ServiceUser     Service = "user"
)

// Endpoint identifies one operation within a service. The (Service, Endpoint)
// pair selects the policy branch in the dispatch engine and never changes
// after routing.
type Endpoint string

const (
	AuthLogin   Endpoint = "auth_login"
	AuthLogout  Endpoint = "auth_logout"
	EmailVerify Endpoint = "verify"
	MediaAdd    Endpoint = "media_add"
	MediaGet    Endpoint = "media_get"

	QAAddQuestion    Endpoint = "qa_add_q"
	QAGetQuestion    Endpoint = "qa_get_q"
	QAAddAnswer      Endpoint = "qa_add_a"
	QAGetAnswers     Endpoint = "qa_get_a"
	QADeleteQuestion Endpoint = "qa_del_q"
	QAUpvoteQuestion Endpoint = "qa_upvote_q"
	QAUpvoteAnswer   Endpoint = "qa_upvote_a"
	QAAcceptAnswer   Endpoint = "qa_accept"

	RegisterUser Endpoint = "register"
	SearchPosts  Endpoint = "search"

	UserGet       Endpoint = "user_get"
	UserQuestions Endpoint = "user_q"
	UserAnswers   Endpoint = "user_a"
)

// Envelope status values carried in every response body.
const (
	StatusOK    = "OK"
	StatusError = "error"
)

// User-facing error messages. Kept as a fixed catalogue so clients can match
// on them.
const (
	ErrMissingParams    = "Required parameters are missing from the request."
	ErrDeleteNotOwnQ    = "You cannot delete a question that someone else asked."
	ErrGeneral          = "An error occurred while handling the request."
	ErrQuestionNotFound = "The specified question does not exist."
	ErrAnswerNotFound   = "The specified answer does not exist."
	ErrNotAllowed       = "The specified operation is not allowed for the current user."
	ErrAlreadyAccepted  = "An answer has already been accepted."
	ErrMediaInvalid     = "One or more media IDs are invalid or are already in use."
	ErrTookTooLong      = "The backend service took too long to respond."
)

// Data field keys merged into response envelopes.
const (
	idKey       = "id"
	questionKey = "question"
	answerKey   = "answer"
	answersKey  = "answers"
	userKey     = "user"
)
