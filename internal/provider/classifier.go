package provider

import (
	"net/http"
	"strings"

	"github.com/mottorpay/push-gateway/internal/domain"
)

// fcmMessageRule maps a provider-reported error message substring to a kind.
// Rules are evaluated in order; the first match wins.
type fcmMessageRule struct {
	substring string
	kind      domain.ErrorKind
}

// Substrings observed in FCM v1 error messages. Message rules run before
// status rules because FCM reuses 404 for both dead and malformed tokens.
var fcmMessageRules = []fcmMessageRule{
	{substring: "not registered", kind: domain.KindUnregistered},
	{substring: "unregistered", kind: domain.KindUnregistered},
	{substring: "requested entity was not found", kind: domain.KindUnregistered},
	{substring: "not a valid fcm registration token", kind: domain.KindInvalidToken},
	{substring: "invalid registration", kind: domain.KindInvalidToken},
	{substring: "invalid-registration-token", kind: domain.KindInvalidToken},
	{substring: "invalid value at 'message.token'", kind: domain.KindInvalidToken},
}

// ClassifyFCM maps an FCM v1 failure to an error kind: substring rules over
// the provider message first, then HTTP status, defaulting to unknown.
func ClassifyFCM(statusCode int, message string) domain.ErrorKind {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, rule := range fcmMessageRules {
		if strings.Contains(normalized, rule.substring) {
			return rule.kind
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.KindUnauthorized
	case http.StatusNotFound:
		return domain.KindUnregistered
	case http.StatusBadRequest:
		return domain.KindInvalidToken
	}

	return domain.KindUnknown
}

// ClassifyWebPush maps a Web Push delivery failure by HTTP status alone;
// push services return no usable error body. 404 and 410 mean the
// subscription is gone and the caller should delete it.
func ClassifyWebPush(statusCode int) domain.ErrorKind {
	switch statusCode {
	case http.StatusNotFound, http.StatusGone:
		return domain.KindUnregistered
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.KindUnauthorized
	case http.StatusBadRequest:
		return domain.KindInvalidToken
	}

	return domain.KindUnknown
}
