package signaling

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/whep-play/internal/transport/transporttest"
)

func TestPatchOpusNACKInsertsAfterRtpmap(t *testing.T) {
	raw := transporttest.SessionSDP("recvonly", webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio)

	patched, err := PatchOpusNACK(raw)
	require.NoError(t, err)

	assert.Contains(t, patched, "a=rtpmap:111 opus/48000/2\r\na=rtcp-fb:111 nack\r\na=fmtp:111")
	assert.Equal(t, 1, strings.Count(patched, "a=rtcp-fb:111 nack"))
	assert.Equal(t, 1, strings.Count(patched, "a=rtcp-fb:96 nack"), "video feedback untouched")
}

func TestPatchOpusNACKIsIdempotent(t *testing.T) {
	raw := transporttest.SessionSDP("recvonly", webrtc.RTPCodecTypeAudio)

	once, err := PatchOpusNACK(raw)
	require.NoError(t, err)
	twice, err := PatchOpusNACK(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestPatchOpusNACKWithoutAudio(t *testing.T) {
	raw := transporttest.SessionSDP("recvonly", webrtc.RTPCodecTypeVideo)

	patched, err := PatchOpusNACK(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, patched)
}

func TestPatchOpusNACKMalformed(t *testing.T) {
	_, err := PatchOpusNACK("not an sdp")
	var negErr *NegotiationError
	assert.ErrorAs(t, err, &negErr)
}

func TestParseRemote(t *testing.T) {
	kinds, err := ParseRemote(transporttest.SessionSDP("sendonly", webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio))
	require.NoError(t, err)
	assert.Equal(t, []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio}, kinds)

	for _, raw := range []string{"", "   ", "garbage", transporttest.SessionSDP("sendonly")} {
		_, err := ParseRemote(raw)
		var negErr *NegotiationError
		assert.ErrorAs(t, err, &negErr, "input %q", raw)
	}
}
