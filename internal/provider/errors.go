package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindAuth           ErrorKind = "auth"
	KindRateLimit      ErrorKind = "rate_limit"
	KindServer         ErrorKind = "server"
	KindAvatarNotFound ErrorKind = "avatar_not_found"
	KindTimeout        ErrorKind = "timeout"
	KindGeneric        ErrorKind = "generic"
)

// APIError is a non-2xx response, or a 2xx response carrying an error object.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s api error (status %d, code %s): %s", e.Provider, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, msg)
}

var avatarNotFoundCodes = []string{
	"avatar_not_found",
	"talking_photo_not_found",
	"400116",
	"400128",
}

var avatarNotFoundPhrases = []string{
	"avatar_not_found",
	"avatar not found",
	"talking_photo_not_found",
	"talking photo not found",
	"invalid avatar",
	"avatar does not exist",
}

// IsAvatarNotFound reports whether the provider rejected the avatar reference.
func IsAvatarNotFound(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if slices.Contains(avatarNotFoundCodes, strings.ToLower(apiErr.Code)) {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		if apiErr.StatusCode == http.StatusNotFound && (strings.Contains(msg, "character") || strings.Contains(msg, "avatar")) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range avatarNotFoundPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// messageRule yields a user facing message, or "" to defer to the next rule.
type messageRule func(*APIError) string

// messageRules are evaluated in order; the first non-empty message wins.
var messageRules = []messageRule{
	explicitMessage,
	statusBandMessage,
}

func explicitMessage(e *APIError) string {
	if e.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func statusBandMessage(e *APIError) string {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return fmt.Sprintf("%s authentication failed: check the API key", e.Provider)
	case e.StatusCode == http.StatusTooManyRequests:
		return fmt.Sprintf("%s rate limit exceeded: try again later", e.Provider)
	case e.StatusCode >= 500:
		return fmt.Sprintf("%s server error (status %d)", e.Provider, e.StatusCode)
	}
	return ""
}

// Classify maps a dispatch error onto an ErrorKind and a message suitable for error_message.
func Classify(err error) (ErrorKind, string) {
	if err == nil {
		return KindNone, ""
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return KindTimeout, "provider request timed out"
		}
		if IsAvatarNotFound(err) {
			return KindAvatarNotFound, err.Error()
		}
		return KindGeneric, err.Error()
	}

	kind := kindOf(apiErr)
	for _, rule := range messageRules {
		if msg := rule(apiErr); msg != "" {
			return kind, msg
		}
	}
	return kind, err.Error()
}

func kindOf(e *APIError) ErrorKind {
	switch {
	case IsAvatarNotFound(e):
		return KindAvatarNotFound
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return KindAuth
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case e.StatusCode >= 500:
		return KindServer
	}
	return KindGeneric
}
