package signaling

import (
	"errors"
	"fmt"
)

// ErrExchangeInFlight is returned when a second HTTP exchange is started
// while one is still outstanding for the same negotiator.
var ErrExchangeInFlight = errors.New("signaling exchange already in flight")

// SignalingError is an HTTP-level rejection by the WHEP server.
type SignalingError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *SignalingError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// NegotiationError covers failures to build or apply a session description:
// no viable media kinds, malformed SDP, or a peer refusing a description.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	if e.Err == nil {
		return "negotiation: " + e.Op
	}
	return fmt.Sprintf("negotiation: %s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// ResourceError reports a failed release of the server-side session. It is
// logged by callers and never fails the operation that triggered it.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("release %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
