// Package ice decides when a local description is ready to be sent.
//
// Candidates are not trickled to the server. Instead the description is sent
// once, either when gathering completes or when a bounded wait elapses,
// whichever comes first. The bound caps the startup latency added on
// networks where STUN/TURN resolution is slow.
package ice

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// DefaultTimeout is the default bounded wait for candidate gathering.
const DefaultTimeout = 2 * time.Second

// Reason tells which path completed the wait.
type Reason int

const (
	ReasonPending   Reason = iota
	ReasonGathered         // gathering reached complete
	ReasonTimeout          // wait window elapsed
	ReasonCancelled        // attempt abandoned
)

func (r Reason) String() string {
	switch r {
	case ReasonGathered:
		return "gathered"
	case ReasonTimeout:
		return "timeout"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// GatheringSource is the part of a peer connection the coordinator watches.
type GatheringSource interface {
	ICEGatheringState() webrtc.ICEGatheringState
	OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState))
}

// Coordinator arms one Attempt per negotiation attempt.
type Coordinator struct {
	Timeout time.Duration
}

// New returns a Coordinator with the given bounded wait. A non-positive
// timeout selects DefaultTimeout.
func New(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{Timeout: timeout}
}

// Watch arms an attempt and wires it to src. It must be called right after
// the local description is set; a source that already finished gathering
// completes the attempt immediately.
func (c *Coordinator) Watch(src GatheringSource) *Attempt {
	a := c.Arm()
	src.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		if state == webrtc.ICEGatheringStateComplete {
			a.GatheringComplete()
		}
	})
	if src.ICEGatheringState() == webrtc.ICEGatheringStateComplete {
		a.GatheringComplete()
	}
	return a
}

// Arm starts the wait window and returns the attempt.
func (c *Coordinator) Arm() *Attempt {
	a := &Attempt{ready: make(chan struct{})}

	// Held so a very short timeout cannot fire before timer is assigned.
	a.mu.Lock()
	a.timer = time.AfterFunc(c.Timeout, func() { a.finish(ReasonTimeout) })
	a.mu.Unlock()
	return a
}

// Attempt is a single bounded wait. Exactly one of gathering completion,
// timer expiry or cancellation settles it; the others become no-ops.
type Attempt struct {
	mu     sync.Mutex
	timer  *time.Timer
	reason Reason
	ready  chan struct{}
}

// GatheringComplete settles the attempt via the gathering path and stops the
// timer.
func (a *Attempt) GatheringComplete() {
	a.finish(ReasonGathered)
}

// Cancel abandons the attempt. Ready is closed but Reason reports
// ReasonCancelled, so waiters can tell abandonment from readiness.
func (a *Attempt) Cancel() {
	a.finish(ReasonCancelled)
}

func (a *Attempt) finish(reason Reason) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reason != ReasonPending {
		return
	}
	a.reason = reason
	a.timer.Stop()
	close(a.ready)
}

// Ready is closed once the attempt settles.
func (a *Attempt) Ready() <-chan struct{} {
	return a.ready
}

// Reason returns how the attempt settled, or ReasonPending.
func (a *Attempt) Reason() Reason {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reason
}

// Wait blocks until the attempt settles or ctx is done. Both ctx expiry and
// Cancel return a context error.
func (a *Attempt) Wait(ctx context.Context) (Reason, error) {
	select {
	case <-a.ready:
	case <-ctx.Done():
		a.Cancel()
		return ReasonCancelled, ctx.Err()
	}

	reason := a.Reason()
	if reason == ReasonCancelled {
		return reason, context.Canceled
	}
	return reason, nil
}
