package session

import (
	"errors"
	"fmt"

	"github.com/1ureka/whep-play/internal/signaling"
	"github.com/1ureka/whep-play/internal/transport"
)

var (
	ErrInvalidState = errors.New("operation not valid in current state")
	ErrNotLoaded    = errors.New("no source loaded")
	ErrDestroyed    = errors.New("session destroyed")
)

// TerminalError is surfaced once when the reconnect budget is exhausted.
// Cause is the last failure seen.
type TerminalError struct {
	Cause error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("session failed: %v", e.Cause)
}

func (e *TerminalError) Unwrap() error { return e.Cause }

// CauseKind names the category of a failure for notifications and metrics.
func CauseKind(err error) string {
	var (
		sigErr   *signaling.SignalingError
		negErr   *signaling.NegotiationError
		transErr *transport.TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sigErr):
		return "signaling"
	case errors.As(err, &negErr):
		return "negotiation"
	case errors.As(err, &transErr):
		return "transport"
	default:
		return "unknown"
	}
}
