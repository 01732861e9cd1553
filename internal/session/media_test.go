package session

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/whep-play/internal/signaling"
	"github.com/1ureka/whep-play/internal/transport"
	"github.com/1ureka/whep-play/internal/transport/transporttest"
)

func TestConstraintsForSourceTypes(t *testing.T) {
	tests := []struct {
		typ       string
		audioOnly bool
		videoOnly bool
	}{
		{"", false, false},
		{TypeWHEP, false, false},
		{TypeVideoWHEP, false, false},
		{TypeAudioWHEP, true, false},
		{"application/x-whep; tracks=video", false, true},
		{"Application/X-WHEP; tracks=audio", true, false},
		{"audio/x-whep; tracks=audio", true, false},
	}
	for _, tt := range tests {
		c, err := constraintsFor(Source{Src: "https://example.com/whep", Type: tt.typ})
		require.NoError(t, err, tt.typ)
		assert.Equal(t, tt.audioOnly, c.AudioOnly, tt.typ)
		assert.Equal(t, tt.videoOnly, c.VideoOnly, tt.typ)
		assert.Equal(t, !tt.videoOnly, c.Audio, tt.typ)
		assert.Equal(t, !tt.audioOnly, c.Video, tt.typ)
	}
}

func TestCanPlay(t *testing.T) {
	assert.True(t, CanPlay(Source{Type: TypeWHEP}))
	assert.True(t, CanPlay(Source{Type: TypeAudioWHEP}))
	assert.False(t, CanPlay(Source{Type: "video/mp4"}))
	assert.False(t, CanPlay(Source{Type: "application/x-whep; tracks=subtitles"}))
	assert.False(t, CanPlay(Source{Type: "audio/x-whep; tracks=video"}))
	assert.False(t, CanPlay(Source{Type: ";;"}))
}

func TestParsePreload(t *testing.T) {
	for in, want := range map[string]Preload{"": PreloadAuto, "none": PreloadNone, " Metadata ": PreloadMetadata, "auto": PreloadAuto} {
		got, err := ParsePreload(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePreload("eager")
	assert.Error(t, err)
}

func TestMediaStreamReplaysTracks(t *testing.T) {
	m := NewMediaStream()
	assert.NotEmpty(t, m.ID())

	v := &transporttest.FakeTrack{TrackID: "v", TrackKind: webrtc.RTPCodecTypeVideo}
	a := &transporttest.FakeTrack{TrackID: "a", TrackKind: webrtc.RTPCodecTypeAudio}
	m.AddTrack(v)

	var seen []string
	m.OnAddTrack(func(tr transport.RemoteTrack) { seen = append(seen, tr.ID()) })
	m.AddTrack(a)

	assert.Equal(t, []string{"v", "a"}, seen)
	assert.Len(t, m.Tracks(), 2)
}

func TestCauseKind(t *testing.T) {
	assert.Equal(t, "", CauseKind(nil))
	assert.Equal(t, "signaling", CauseKind(&TerminalError{Cause: &signaling.SignalingError{Status: 500}}))
	assert.Equal(t, "negotiation", CauseKind(&signaling.NegotiationError{Op: "x"}))
	assert.Equal(t, "transport", CauseKind(&transport.TransportError{State: webrtc.PeerConnectionStateFailed}))
	assert.Equal(t, "unknown", CauseKind(errors.New("boom")))
}
