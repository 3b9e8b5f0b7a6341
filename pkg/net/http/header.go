package http

const (
	ContentTypeHeaderKey = "Content-Type"
	LinkHeaderKey        = "Link"
	AcceptHeaderKey      = "Accept"
	UserAgentHeaderKey   = "User-Agent"

	FormContentType = "application/x-www-form-urlencoded"
	JSONContentType = "application/json"
)
