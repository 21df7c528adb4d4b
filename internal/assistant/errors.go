package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindQuota       Kind = "quota"
	KindPermission  Kind = "permission"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindUnknown     Kind = "unknown"
)

// Error is a provider failure classified for display.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the user for this failure.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindQuota:
		return "Quota exceeded. Please wait before sending another request."
	case KindPermission:
		return "Permission denied. Check the configured API key."
	case KindNotFound:
		return "Requested model or resource was not found."
	case KindUnavailable:
		return "Neural link unavailable. Try again shortly."
	default:
		return "Request failed."
	}
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindQuota
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindPermission
	case code == http.StatusNotFound:
		return KindNotFound
	case code >= 500:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// Classify returns the kind of a provider error.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return KindUnknown
}

// UserMessage returns display text for any error returned by a Provider.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return (&Error{Kind: KindUnavailable}).UserMessage()
	}
	return err.Error()
}
