package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network"
	KindTimeout ErrorKind = "timeout"

	httpStatusPrefix = "http-status:"
)

// HTTPStatusKind returns the kind for a non-2xx response, e.g. "http-status:429".
func HTTPStatusKind(code int) ErrorKind {
	return ErrorKind(fmt.Sprintf("%s%d", httpStatusPrefix, code))
}

// IsHTTPStatus reports whether k is an http-status kind.
func (k ErrorKind) IsHTTPStatus() bool {
	return strings.HasPrefix(string(k), httpStatusPrefix)
}

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 2048

// TransportError is the only error Send returns.
type TransportError struct {
	Kind       ErrorKind
	StatusCode int    // set for http-status kinds
	Body       string // truncated response body for http-status kinds
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Kind.IsHTTPStatus():
		if e.Body != "" {
			return fmt.Sprintf("transport %s: %s", e.Kind, e.Body)
		}
		return fmt.Sprintf("transport %s", e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("transport %s", e.Kind)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError unwraps err into a *TransportError.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func classify(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	return &TransportError{Kind: KindNetwork, Err: err}
}

func statusError(code int, body []byte) *TransportError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return &TransportError{Kind: HTTPStatusKind(code), StatusCode: code, Body: msg}
}
