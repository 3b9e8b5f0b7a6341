package uri

// HTTP paths of the hub.
const (
	Hub           = "/hub"
	API           = "/api/v1"
	Subscriptions = API + "/subscriptions"
	Healthcheck   = "/healthcheck"
	Metrics       = "/metrics"
)

// Form and query parameters of the protocol.
const (
	ModeKey         = "hub.mode"
	TopicKey        = "hub.topic"
	CallbackKey     = "hub.callback"
	LeaseSecondsKey = "hub.lease_seconds"
	SecretKey       = "hub.secret"
	ChallengeKey    = "hub.challenge"
	ReasonKey       = "hub.reason"
	URLKey          = "hub.url"
)

// Values of hub.mode.
const (
	SubscribeMode   = "subscribe"
	UnsubscribeMode = "unsubscribe"
	PublishMode     = "publish"
	DeniedMode      = "denied"
)

// Query parameters of the subscriptions API.
const (
	TopicQueryKey = "topic"
	StateQueryKey = "state"
)

// NATS subjects.
const (
	PublishSubject      = "websub.hub.publish"
	EventsSubjectPrefix = "websub.hub.events."
)
