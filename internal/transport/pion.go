package transport

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/whep-play/internal/util"
)

// PionPeer wraps a single pion PeerConnection configured for receive-only
// playback.
//
// Its lifecycle is governed by the session that created it: the session
// closes it on teardown and never hands it to anyone else.
type PionPeer struct {
	pc  *webrtc.PeerConnection
	log util.Logger

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
	stateFn func(webrtc.PeerConnectionState)
}

var _ Peer = (*PionPeer)(nil)

// NewPionPeer creates a PeerConnection with the default codecs, the default
// interceptors (NACK, RTCP reports, TWCC) and pion's own logging routed to
// opts.Logger. It satisfies Factory.
func NewPionPeer(opts Options) (Peer, error) {
	log := opts.Logger
	if log == nil {
		log = util.NewLogger("peer")
	}

	pc, err := newPeerConnection(opts.ICEServers, log)
	if err != nil {
		return nil, err
	}

	p := &PionPeer{
		pc:      pc,
		log:     log,
		pcState: webrtc.PeerConnectionStateNew,
	}

	// Record PC state, then forward to the session.
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Debugf("PeerConnection state: %s", state.String())
		p.mu.Lock()
		p.pcState = state
		fn := p.stateFn
		p.mu.Unlock()

		if fn != nil {
			fn(state)
		}
	})

	return p, nil
}

// newPeerConnection builds the pion API with media engine, interceptor
// registry and setting engine, then creates the PeerConnection.
func newPeerConnection(iceServers []webrtc.ICEServer, log util.Logger) (*webrtc.PeerConnection, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	settings := webrtc.SettingEngine{}
	settings.LoggerFactory = NewLoggerFactory(log)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settings),
	)

	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers,
	})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Close shuts down the PeerConnection.
func (p *PionPeer) Close() error {
	return p.pc.Close()
}

// ConnectionState returns the last observed PeerConnection state.
func (p *PionPeer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcState
}

// OnConnectionStateChange registers the session's state callback.
func (p *PionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.stateFn = fn
	p.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// AddRecvOnly attaches a receive-only transceiver.
func (p *PionPeer) AddRecvOnly(kind webrtc.RTPCodecType) error {
	_, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	return err
}

// CreateOffer generates an SDP offer.
func (p *PionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (p *PionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP and starts ICE gathering.
func (p *PionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

// SetRemoteDescription applies the remote SDP.
func (p *PionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

// LocalDescription returns the local SDP with the candidates gathered so far.
func (p *PionPeer) LocalDescription() *webrtc.SessionDescription {
	return p.pc.LocalDescription()
}

// ICEGatheringState returns the current gathering state.
func (p *PionPeer) ICEGatheringState() webrtc.ICEGatheringState {
	return p.pc.ICEGatheringState()
}

// OnICEGatheringStateChange registers a gathering state callback.
func (p *PionPeer) OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState)) {
	p.pc.OnICEGatheringStateChange(fn)
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// OnTrack registers a callback for every remote track. A keyframe is
// requested for video tracks so playback starts without waiting for the
// sender's next GOP.
func (p *PionPeer) OnTrack(fn func(RemoteTrack)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Debugf("remote %s track %s on stream %s (ssrc=%d, codec=%s)",
			track.Kind(), track.ID(), track.StreamID(), track.SSRC(), track.Codec().MimeType)

		if track.Kind() == webrtc.RTPCodecTypeVideo {
			p.requestKeyframe(track)
		}
		fn(track)
	})
}

// requestKeyframe sends a single PLI for the track's SSRC.
func (p *PionPeer) requestKeyframe(track *webrtc.TrackRemote) {
	err := p.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
	})
	if err != nil {
		p.log.Debugf("PLI for ssrc %d failed: %v", track.SSRC(), err)
	}
}

// GetStats returns the PeerConnection statistics report.
func (p *PionPeer) GetStats() webrtc.StatsReport {
	return p.pc.GetStats()
}
