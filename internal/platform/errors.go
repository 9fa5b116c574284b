package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind string

const (
	KindCredentialsMissing ErrorKind = "credentials_missing"
	KindRemoteRejected     ErrorKind = "remote_rejected"
	KindRemoteUnavailable  ErrorKind = "remote_unavailable"
	KindUnsupportedContent ErrorKind = "unsupported_content"
	KindMissingMedia       ErrorKind = "missing_media"
)

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrCredentialsMissing = &Error{Kind: KindCredentialsMissing}
	ErrRemoteRejected     = &Error{Kind: KindRemoteRejected}
	ErrRemoteUnavailable  = &Error{Kind: KindRemoteUnavailable}
	ErrUnsupportedContent = &Error{Kind: KindUnsupportedContent}
	ErrMissingMedia       = &Error{Kind: KindMissingMedia}
)

// Error is the typed failure of one adapter call.
type Error struct {
	Platform string
	Kind     ErrorKind
	Message  string
	// Ambiguous is set when the remote side may have created the post even
	// though the call is reported as failed.
	Ambiguous bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Platform == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Platform == "" || t.Platform == e.Platform)
}

func newError(platform string, kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Platform: platform, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func credentialsMissing(platform string) *Error {
	return newError(platform, KindCredentialsMissing, "no credentials configured")
}

func missingMedia(platform string) *Error {
	return newError(platform, KindMissingMedia, "at least one media item is required")
}

func unsupported(platform, format string, args ...interface{}) *Error {
	return newError(platform, KindUnsupportedContent, format, args...)
}

// Classify turns any adapter failure into an *Error. Deadlines and network
// failures count as RemoteUnavailable.
func Classify(platform string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Platform == "" {
			cp := *pe
			cp.Platform = platform
			return &cp
		}
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Platform: platform, Kind: KindRemoteUnavailable, Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Platform: platform, Kind: KindRemoteUnavailable, Message: netErr.Error(), Err: err}
	}
	return &Error{Platform: platform, Kind: KindRemoteUnavailable, Message: err.Error(), Err: err}
}
