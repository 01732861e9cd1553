// Package transport abstracts the peer connection a WHEP session drives.
//
// The session state machine only talks to the Peer interface, so it can be
// exercised against a fake without a network stack. NewPionPeer provides the
// real implementation on top of pion/webrtc.
package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/whep-play/internal/util"
)

// FeedbackStreamID is the stream identifier some servers use for a
// diagnostic loopback stream. Tracks on it are never rendered.
const FeedbackStreamID = "feedbackvideomslabel"

// RemoteTrack is the subset of a received track the session needs.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

// Peer is the peer-connection capability owned by one negotiation attempt.
type Peer interface {
	// AddRecvOnly attaches a receive-only transceiver for the given kind.
	AddRecvOnly(kind webrtc.RTPCodecType) error

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error

	// LocalDescription returns the current local description including
	// the candidates gathered so far, or nil before one is set.
	LocalDescription() *webrtc.SessionDescription

	ICEGatheringState() webrtc.ICEGatheringState
	OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState))
	// ConnectionState returns the last observed connection state.
	ConnectionState() webrtc.PeerConnectionState
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnTrack(fn func(RemoteTrack))

	// GetStats returns a snapshot of the transport statistics.
	GetStats() webrtc.StatsReport

	Close() error
}

// Options configures a new Peer.
type Options struct {
	ICEServers []webrtc.ICEServer
	Logger     util.Logger
}

// Factory creates the Peer for a negotiation attempt.
type Factory func(opts Options) (Peer, error)

// TransportError reports that the peer connection reached a failed state
// independently of signaling.
type TransportError struct {
	State webrtc.PeerConnectionState
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("peer connection %s", e.State)
}
