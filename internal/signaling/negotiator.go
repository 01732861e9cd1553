// Package signaling implements the WHEP offer/answer exchange over HTTP.
//
// A Negotiator lives as long as its session. Each negotiation attempt
// attaches a fresh peer, builds a local description in the current role,
// sends it once ICE gathering is settled and classifies the server response
// into an Outcome the session acts on.
package signaling

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/whep-play/internal/transport"
	"github.com/1ureka/whep-play/internal/util"
)

// OutcomeKind classifies the result of one exchange.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRoleSwitch
	OutcomeMediaFallback
	OutcomeFatal
	// OutcomeAbandoned means the attempt context was cancelled. It is never
	// counted against the reconnect budget.
	OutcomeAbandoned
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRoleSwitch:
		return "role_switch"
	case OutcomeMediaFallback:
		return "media_fallback"
	case OutcomeFatal:
		return "fatal"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of an exchange.
type Outcome struct {
	Kind OutcomeKind
	// Media is the kind to drop, set for OutcomeMediaFallback.
	Media webrtc.RTPCodecType
	// Err is set for OutcomeFatal and OutcomeAbandoned.
	Err error
}

func success() Outcome { return Outcome{Kind: OutcomeSuccess} }

func fatal(err error) Outcome { return Outcome{Kind: OutcomeFatal, Err: err} }

// Classify turns an error from a Begin call into an Outcome: cancellation
// of ctx is abandonment, anything else is fatal.
func Classify(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil {
		return Outcome{Kind: OutcomeAbandoned, Err: ctx.Err()}
	}
	return fatal(err)
}

// Negotiator performs the HTTP side of a WHEP session.
type Negotiator struct {
	endpoint Endpoint
	client   *http.Client
	log      util.Logger

	inFlight atomic.Bool

	mu       sync.Mutex
	peer     transport.Peer
	resource string
}

// New creates a Negotiator for endpoint. A nil client selects
// http.DefaultClient.
func New(endpoint Endpoint, client *http.Client, log util.Logger) *Negotiator {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = util.NewLogger("signaling")
	}
	return &Negotiator{endpoint: endpoint, client: client, log: log}
}

// Endpoint returns the endpoint the negotiator talks to.
func (n *Negotiator) Endpoint() Endpoint {
	return n.endpoint
}

// Attach binds the peer of the next negotiation attempt.
func (n *Negotiator) Attach(peer transport.Peer) {
	n.mu.Lock()
	n.peer = peer
	n.mu.Unlock()
}

// Resource returns the current session resource URL, or "" if none.
func (n *Negotiator) Resource() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resource
}

func (n *Negotiator) attached() (transport.Peer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.peer == nil {
		return nil, &NegotiationError{Op: "no peer attached"}
	}
	return n.peer, nil
}

func (n *Negotiator) setResource(location string) error {
	resource, err := n.endpoint.ResolveResource(location)
	if err != nil {
		return err
	}
	if resource == "" {
		n.log.Warnf("server response carries no Location, session cannot be released")
	}

	n.mu.Lock()
	n.resource = resource
	n.mu.Unlock()
	return nil
}

// guarded runs one exchange, refusing to overlap with another.
func (n *Negotiator) guarded(ctx context.Context, method, target, body string) (*response, error) {
	if !n.inFlight.CompareAndSwap(false, true) {
		return nil, ErrExchangeInFlight
	}
	defer n.inFlight.Store(false)

	n.log.Debugf("%s %s (%d bytes)", method, target, len(body))
	return n.exchange(ctx, method, target, body)
}

// ---------------------------------------------------------------------------
// Offerer
// ---------------------------------------------------------------------------

// BeginAsOfferer adds one receive-only transceiver per requested kind (video
// first), creates an offer and applies it locally. ICE gathering starts
// when it returns.
func (n *Negotiator) BeginAsOfferer(ctx context.Context, c MediaConstraints) error {
	peer, err := n.attached()
	if err != nil {
		return err
	}

	kinds := c.Kinds()
	if len(kinds) == 0 {
		return &NegotiationError{Op: "build offer", Err: errNoMedia}
	}
	for _, kind := range kinds {
		if err := peer.AddRecvOnly(kind); err != nil {
			return &NegotiationError{Op: "add " + kind.String() + " transceiver", Err: err}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	offer, err := peer.CreateOffer()
	if err != nil {
		return &NegotiationError{Op: "create offer", Err: err}
	}
	if err := peer.SetLocalDescription(offer); err != nil {
		return &NegotiationError{Op: "set local offer", Err: err}
	}
	return nil
}

// SendLocalDescription posts the gathered offer and classifies the answer.
//
//	2xx  the answer is applied and the session resource recorded
//	400  the server wants to offer itself
//	406  the next media fallback step, or fatal when none is left
//
// Any other status is fatal.
func (n *Negotiator) SendLocalDescription(ctx context.Context, c MediaConstraints) Outcome {
	peer, err := n.attached()
	if err != nil {
		return fatal(err)
	}

	local := peer.LocalDescription()
	if local == nil {
		return fatal(&NegotiationError{Op: "send offer", Err: errEmptySDP})
	}
	offer, err := PatchOpusNACK(local.SDP)
	if err != nil {
		return fatal(err)
	}

	resp, err := n.guarded(ctx, http.MethodPost, n.endpoint.URL.String(), offer)
	if err != nil {
		return Classify(ctx, fmt.Errorf("post offer: %w", err))
	}

	switch {
	case resp.ok():
		if err := n.setResource(resp.location); err != nil {
			return fatal(err)
		}
		if err := n.applyRemote(peer, webrtc.SDPTypeAnswer, resp.body); err != nil {
			return fatal(err)
		}
		return success()

	case resp.status == http.StatusBadRequest:
		n.log.Infof("server rejected offer with 400, switching to answerer")
		return Outcome{Kind: OutcomeRoleSwitch}

	case resp.status == http.StatusNotAcceptable:
		if kind, ok := c.NextFallback(); ok {
			n.log.Infof("server rejected %s with 406, retrying without %s", c, kind)
			return Outcome{Kind: OutcomeMediaFallback, Media: kind}
		}
	}

	return fatal(&SignalingError{
		Method: http.MethodPost,
		URL:    n.endpoint.URL.String(),
		Status: resp.status,
		Body:   resp.body,
	})
}

// ---------------------------------------------------------------------------
// Answerer
// ---------------------------------------------------------------------------

// BeginAsAnswerer asks the server for its offer with an empty POST, applies
// it and creates the local answer.
func (n *Negotiator) BeginAsAnswerer(ctx context.Context) error {
	peer, err := n.attached()
	if err != nil {
		return err
	}

	resp, err := n.guarded(ctx, http.MethodPost, n.endpoint.URL.String(), "")
	if err != nil {
		return fmt.Errorf("request offer: %w", err)
	}
	if !resp.ok() {
		return &SignalingError{
			Method: http.MethodPost,
			URL:    n.endpoint.URL.String(),
			Status: resp.status,
			Body:   resp.body,
		}
	}

	if err := n.setResource(resp.location); err != nil {
		return err
	}
	if err := n.applyRemote(peer, webrtc.SDPTypeOffer, resp.body); err != nil {
		return err
	}

	answer, err := peer.CreateAnswer()
	if err != nil {
		return &NegotiationError{Op: "create answer", Err: err}
	}
	if err := peer.SetLocalDescription(answer); err != nil {
		return &NegotiationError{Op: "set local answer", Err: err}
	}
	return nil
}

// SendLocalDescriptionAsAnswerer patches the gathered answer to the session
// resource. Any non-2xx status is fatal.
func (n *Negotiator) SendLocalDescriptionAsAnswerer(ctx context.Context) Outcome {
	peer, err := n.attached()
	if err != nil {
		return fatal(err)
	}

	local := peer.LocalDescription()
	if local == nil {
		return fatal(&NegotiationError{Op: "send answer", Err: errEmptySDP})
	}

	resource := n.Resource()
	if resource == "" {
		return fatal(&NegotiationError{Op: "send answer: no session resource"})
	}

	resp, err := n.guarded(ctx, http.MethodPatch, resource, local.SDP)
	if err != nil {
		return Classify(ctx, fmt.Errorf("patch answer: %w", err))
	}
	if !resp.ok() {
		return fatal(&SignalingError{
			Method: http.MethodPatch,
			URL:    resource,
			Status: resp.status,
			Body:   resp.body,
		})
	}
	return success()
}

// ---------------------------------------------------------------------------
// Teardown
// ---------------------------------------------------------------------------

// Release deletes the session resource. The resource is forgotten before the
// request goes out, so a second call is a no-op. A failed DELETE is reported
// as a ResourceError.
func (n *Negotiator) Release(ctx context.Context) error {
	n.mu.Lock()
	resource := n.resource
	n.resource = ""
	n.peer = nil
	n.mu.Unlock()

	if resource == "" {
		return nil
	}

	n.log.Debugf("DELETE %s", resource)
	resp, err := n.exchange(ctx, http.MethodDelete, resource, "")
	if err != nil {
		return &ResourceError{Resource: resource, Err: err}
	}
	if !resp.ok() {
		return &ResourceError{Resource: resource, Err: &SignalingError{
			Method: http.MethodDelete,
			URL:    resource,
			Status: resp.status,
			Body:   resp.body,
		}}
	}
	return nil
}

func (n *Negotiator) applyRemote(peer transport.Peer, typ webrtc.SDPType, raw string) error {
	kinds, err := ParseRemote(raw)
	if err != nil {
		return err
	}
	n.log.Debugf("remote %s carries %v", typ, kinds)

	if err := peer.SetRemoteDescription(webrtc.SessionDescription{Type: typ, SDP: raw}); err != nil {
		return &NegotiationError{Op: "set remote " + typ.String(), Err: err}
	}
	return nil
}
