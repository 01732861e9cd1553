package transport

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/whep-play/internal/util"
)

// TestPionPeerOfferOrdersVideoFirst verifies that transceivers appear in the
// offer in the order they were added.
func TestPionPeerOfferOrdersVideoFirst(t *testing.T) {
	p, err := NewPionPeer(Options{Logger: util.Discard()})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.AddRecvOnly(webrtc.RTPCodecTypeVideo))
	require.NoError(t, p.AddRecvOnly(webrtc.RTPCodecTypeAudio))

	offer, err := p.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)

	video := strings.Index(offer.SDP, "m=video")
	audio := strings.Index(offer.SDP, "m=audio")
	require.NotEqual(t, -1, video)
	require.NotEqual(t, -1, audio)
	assert.Less(t, video, audio)
	assert.Contains(t, offer.SDP, "a=recvonly")
	assert.Contains(t, offer.SDP, "opus/48000/2")
}

func TestPionPeerInitialState(t *testing.T) {
	p, err := NewPionPeer(Options{Logger: util.Discard()})
	require.NoError(t, err)
	defer p.Close()

	pp := p.(*PionPeer)
	assert.Equal(t, webrtc.PeerConnectionStateNew, pp.ConnectionState())
	assert.Equal(t, webrtc.ICEGatheringStateNew, p.ICEGatheringState())
	assert.Nil(t, p.LocalDescription())
}

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{State: webrtc.PeerConnectionStateFailed}
	assert.Equal(t, "peer connection failed", err.Error())
}

func TestLoggerFactoryScopes(t *testing.T) {
	f := NewLoggerFactory(util.Discard())
	l := f.NewLogger("ice")
	require.NotNil(t, l)

	// Must not panic on any level.
	l.Trace("t")
	l.Debugf("%d", 1)
	l.Info("i")
	l.Warnf("%s", "w")
	l.Error("e")
}
