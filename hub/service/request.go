package service

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/plgd-dev/websub-hub/hub/store"
	"github.com/plgd-dev/websub-hub/hub/uri"
)

const maxSecretLength = 200

// SubscriptionRequest is a validated subscribe or unsubscribe request.
type SubscriptionRequest struct {
	Mode     store.Mode
	Topic    string
	Callback string
	// LeaseSeconds is zero when the subscriber did not ask for a lease.
	LeaseSeconds int64
	Secret       string
	// Extra holds parameters unknown to the hub.
	Extra url.Values
}

// PublishRequest is a content change notification from a publisher.
type PublishRequest struct {
	Topics []string
}

var knownParams = map[string]struct{}{
	uri.ModeKey:         {},
	uri.TopicKey:        {},
	uri.CallbackKey:     {},
	uri.LeaseSecondsKey: {},
	uri.SecretKey:       {},
	uri.URLKey:          {},
}

func parseAbsoluteURL(param, value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return &ValidationError{Param: param, Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return &ValidationError{Param: param, Reason: "must be an absolute URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Param: param, Reason: "unsupported scheme " + u.Scheme}
	}
	return nil
}

func parseSubscriptionRequest(mode store.Mode, form url.Values) (SubscriptionRequest, error) {
	req := SubscriptionRequest{
		Mode:     mode,
		Topic:    form.Get(uri.TopicKey),
		Callback: form.Get(uri.CallbackKey),
		Secret:   form.Get(uri.SecretKey),
	}
	if req.Topic == "" {
		return req, missingParam(uri.TopicKey)
	}
	if req.Callback == "" {
		return req, missingParam(uri.CallbackKey)
	}
	if err := parseAbsoluteURL(uri.TopicKey, req.Topic); err != nil {
		return req, err
	}
	if err := parseAbsoluteURL(uri.CallbackKey, req.Callback); err != nil {
		return req, err
	}
	if v := strings.TrimSpace(form.Get(uri.LeaseSecondsKey)); v != "" {
		lease, err := strconv.ParseInt(v, 10, 64)
		if err != nil || lease <= 0 {
			return req, &ValidationError{Param: uri.LeaseSecondsKey, Reason: "must be a positive integer"}
		}
		req.LeaseSeconds = lease
	}
	if len(req.Secret) > maxSecretLength {
		return req, &ValidationError{Param: uri.SecretKey, Reason: "must be shorter than " + strconv.Itoa(maxSecretLength+1) + " bytes"}
	}
	for key, values := range form {
		if _, ok := knownParams[key]; ok {
			continue
		}
		if req.Extra == nil {
			req.Extra = make(url.Values)
		}
		req.Extra[key] = values
	}
	return req, nil
}

func parsePublishRequest(form url.Values) (PublishRequest, error) {
	var req PublishRequest
	seen := make(map[string]struct{})
	for _, key := range []string{uri.URLKey, uri.TopicKey} {
		for _, topic := range form[key] {
			if topic == "" {
				continue
			}
			if err := parseAbsoluteURL(uri.URLKey, topic); err != nil {
				return req, err
			}
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			req.Topics = append(req.Topics, topic)
		}
	}
	if len(req.Topics) == 0 {
		return req, missingParam(uri.URLKey)
	}
	return req, nil
}

// parseHubRequest returns SubscriptionRequest or PublishRequest.
func parseHubRequest(r *http.Request) (interface{}, error) {
	if err := r.ParseForm(); err != nil {
		return nil, &ValidationError{Param: "body", Reason: err.Error()}
	}
	form := r.PostForm
	if len(form) == 0 {
		form = r.Form
	}
	switch mode := form.Get(uri.ModeKey); mode {
	case uri.SubscribeMode:
		return parseSubscriptionRequest(store.ModeSubscribe, form)
	case uri.UnsubscribeMode:
		return parseSubscriptionRequest(store.ModeUnsubscribe, form)
	case uri.PublishMode:
		return parsePublishRequest(form)
	case "":
		return nil, missingParam(uri.ModeKey)
	default:
		return nil, &ValidationError{Param: uri.ModeKey, Reason: "unsupported value " + strconv.Quote(mode)}
	}
}
