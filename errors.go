package parsley

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrMissingAPIKey  = errors.New("API key is required")
	ErrMissingModelID = errors.New("model ID is required")
	ErrEmptyDocument  = errors.New("document data is empty")
)

// Kind places a failure in the application error taxonomy. The HTTP layer
// maps kinds to statuses and clients switch on them for display.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindDocument     Kind = "document_processing_error"
	KindAPI          Kind = "api_error"
	KindNetwork      Kind = "network_error"
	KindRateLimit    Kind = "rate_limit_error"
	KindBotDetection Kind = "bot_detection_error"
	KindSecurity     Kind = "security_error"
)

// Error is a taxonomy-tagged failure. Message is user-facing; Err preserves
// the underlying cause for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a taxonomy error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError tags an underlying error with a kind and user-facing message.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf classifies any error into the taxonomy. Tagged errors keep their
// kind; untagged ones are classified from shape and message text the same
// way the API boundary always has: schema/validation wording is a
// validation error, document/PDF/decrypt wording is a document error,
// transport failures are network errors, everything else is an api error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return KindNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validation") || strings.Contains(msg, "schema"):
		return KindValidation
	case strings.Contains(msg, "pdf") || strings.Contains(msg, "decrypt") || strings.Contains(msg, "document"):
		return KindDocument
	default:
		return KindAPI
	}
}
