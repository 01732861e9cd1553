// Package transporttest provides an in-memory transport.Peer for tests.
package transporttest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/whep-play/internal/transport"
)

// Compile-time interface check.
var _ transport.Peer = (*FakePeer)(nil)

// SessionSDP renders a minimal but well-formed SDP with one media section per
// kind, in the given order. Audio sections advertise Opus on payload type 111.
func SessionSDP(direction string, kinds ...webrtc.RTPCodecType) string {
	var b strings.Builder
	b.WriteString("v=0\r\n")
	b.WriteString("o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n")
	b.WriteString("s=-\r\n")
	b.WriteString("t=0 0\r\n")

	mids := make([]string, len(kinds))
	for i := range kinds {
		mids[i] = fmt.Sprint(i)
	}
	if len(mids) > 0 {
		b.WriteString("a=group:BUNDLE " + strings.Join(mids, " ") + "\r\n")
	}

	for i, kind := range kinds {
		switch kind {
		case webrtc.RTPCodecTypeVideo:
			b.WriteString("m=video 9 UDP/TLS/RTP/SAVPF 96\r\n")
			b.WriteString("c=IN IP4 0.0.0.0\r\n")
			fmt.Fprintf(&b, "a=mid:%d\r\n", i)
			b.WriteString("a=rtpmap:96 VP8/90000\r\n")
			b.WriteString("a=rtcp-fb:96 nack\r\n")
		case webrtc.RTPCodecTypeAudio:
			b.WriteString("m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n")
			b.WriteString("c=IN IP4 0.0.0.0\r\n")
			fmt.Fprintf(&b, "a=mid:%d\r\n", i)
			b.WriteString("a=rtpmap:111 opus/48000/2\r\n")
			b.WriteString("a=fmtp:111 minptime=10;useinbandfec=1\r\n")
		}
		b.WriteString("a=" + direction + "\r\n")
	}
	return b.String()
}

// FakeTrack is a transport.RemoteTrack.
type FakeTrack struct {
	TrackID   string
	Stream    string
	TrackKind webrtc.RTPCodecType
}

func (t *FakeTrack) ID() string                { return t.TrackID }
func (t *FakeTrack) StreamID() string          { return t.Stream }
func (t *FakeTrack) Kind() webrtc.RTPCodecType { return t.TrackKind }

// FakePeer records every call the session makes and lets the test drive
// gathering, connection state, tracks and statistics.
type FakePeer struct {
	// AutoGather completes ICE gathering as soon as the local description
	// is set.
	AutoGather bool
	// AutoConnect reports PeerConnectionStateConnected once both the local
	// and the remote description are set.
	AutoConnect bool
	// OfferErr, if set, is returned by CreateOffer.
	OfferErr error

	mu           sync.Mutex
	transceivers []webrtc.RTPCodecType
	local        *webrtc.SessionDescription
	remote       *webrtc.SessionDescription
	gathering    webrtc.ICEGatheringState
	state        webrtc.PeerConnectionState
	connecting   bool
	gatherFn     func(webrtc.ICEGatheringState)
	stateFn      func(webrtc.PeerConnectionState)
	trackFn      func(transport.RemoteTrack)
	bytes        uint64
	closed       bool
}

// NewFakePeer returns a FakePeer with AutoGather and AutoConnect enabled.
func NewFakePeer() *FakePeer {
	return &FakePeer{
		AutoGather:  true,
		AutoConnect: true,
		gathering:   webrtc.ICEGatheringStateNew,
		state:       webrtc.PeerConnectionStateNew,
	}
}

func (p *FakePeer) AddRecvOnly(kind webrtc.RTPCodecType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("peer closed")
	}
	p.transceivers = append(p.transceivers, kind)
	return nil
}

func (p *FakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OfferErr != nil {
		return webrtc.SessionDescription{}, p.OfferErr
	}
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  SessionSDP("recvonly", p.transceivers...),
	}, nil
}

func (p *FakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  SessionSDP("recvonly", webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio),
	}, nil
}

func (p *FakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = &desc
	p.gathering = webrtc.ICEGatheringStateGathering
	auto := p.AutoGather
	connect := p.shouldConnect()
	p.mu.Unlock()

	if auto {
		go p.CompleteGathering()
	}
	if connect {
		go p.SetConnectionState(webrtc.PeerConnectionStateConnected)
	}
	return nil
}

func (p *FakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	p.remote = &desc
	connect := p.shouldConnect()
	p.mu.Unlock()

	if connect {
		go p.SetConnectionState(webrtc.PeerConnectionStateConnected)
	}
	return nil
}

// shouldConnect reports, once, that both descriptions are in place.
// Callers hold p.mu.
func (p *FakePeer) shouldConnect() bool {
	if !p.AutoConnect || p.connecting || p.local == nil || p.remote == nil {
		return false
	}
	p.connecting = true
	return true
}

func (p *FakePeer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *FakePeer) LocalDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

func (p *FakePeer) ICEGatheringState() webrtc.ICEGatheringState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gathering
}

func (p *FakePeer) OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState)) {
	p.mu.Lock()
	p.gatherFn = fn
	p.mu.Unlock()
}

func (p *FakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.stateFn = fn
	p.mu.Unlock()
}

func (p *FakePeer) OnTrack(fn func(transport.RemoteTrack)) {
	p.mu.Lock()
	p.trackFn = fn
	p.mu.Unlock()
}

func (p *FakePeer) GetStats() webrtc.StatsReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return webrtc.StatsReport{
		"inbound-rtp-video": webrtc.InboundRTPStreamStats{
			ID:            "inbound-rtp-video",
			Type:          webrtc.StatsTypeInboundRTP,
			BytesReceived: p.bytes,
		},
	}
}

func (p *FakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// ---------------------------------------------------------------------------
// Test controls
// ---------------------------------------------------------------------------

// CompleteGathering moves gathering to complete and fires the callback.
func (p *FakePeer) CompleteGathering() {
	p.mu.Lock()
	p.gathering = webrtc.ICEGatheringStateComplete
	fn := p.gatherFn
	p.mu.Unlock()

	if fn != nil {
		fn(webrtc.ICEGatheringStateComplete)
	}
}

// SetConnectionState records state and fires the connection state callback.
func (p *FakePeer) SetConnectionState(state webrtc.PeerConnectionState) {
	p.mu.Lock()
	p.state = state
	fn := p.stateFn
	p.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// EmitTrack fires the track callback.
func (p *FakePeer) EmitTrack(track transport.RemoteTrack) {
	p.mu.Lock()
	fn := p.trackFn
	p.mu.Unlock()

	if fn != nil {
		fn(track)
	}
}

// SetBytesReceived sets the inbound byte counter reported by GetStats.
func (p *FakePeer) SetBytesReceived(n uint64) {
	p.mu.Lock()
	p.bytes = n
	p.mu.Unlock()
}

// Transceivers returns the kinds added so far, in order.
func (p *FakePeer) Transceivers() []webrtc.RTPCodecType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.RTPCodecType(nil), p.transceivers...)
}

// RemoteDescription returns the last remote description set.
func (p *FakePeer) RemoteDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

// Closed reports whether Close was called.
func (p *FakePeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Factory hands out FakePeers and remembers them in creation order.
type Factory struct {
	// Configure, if set, is applied to every new peer before it is returned.
	Configure func(p *FakePeer)

	mu    sync.Mutex
	peers []*FakePeer
}

// New satisfies transport.Factory.
func (f *Factory) New(transport.Options) (transport.Peer, error) {
	p := NewFakePeer()
	if f.Configure != nil {
		f.Configure(p)
	}

	f.mu.Lock()
	f.peers = append(f.peers, p)
	f.mu.Unlock()
	return p, nil
}

// Peers returns every peer created so far.
func (f *Factory) Peers() []*FakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakePeer(nil), f.peers...)
}

// Last returns the most recently created peer, or nil.
func (f *Factory) Last() *FakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}
