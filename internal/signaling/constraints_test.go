package signaling

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestFallbackNeverDisablesBothKinds(t *testing.T) {
	c := NewMediaConstraints(false, false)
	assert.Equal(t, "video+audio", c.String())

	for {
		kind, ok := c.NextFallback()
		if !ok {
			break
		}
		assert.True(t, c.Drop(kind))
		assert.True(t, c.Audio || c.Video, "after dropping %s", kind)
	}

	assert.Equal(t, "audio", c.String())
}

func TestFallbackStepsAreTakenOnce(t *testing.T) {
	c := NewMediaConstraints(false, false)

	assert.True(t, c.Drop(webrtc.RTPCodecTypeAudio))
	assert.False(t, c.Drop(webrtc.RTPCodecTypeAudio), "audio already dropped")
	assert.Equal(t, []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo}, c.Kinds())

	assert.True(t, c.Drop(webrtc.RTPCodecTypeVideo))
	assert.False(t, c.Drop(webrtc.RTPCodecTypeVideo), "video already dropped")
	assert.False(t, c.Drop(webrtc.RTPCodecTypeAudio), "audio cannot be dropped once video is gone")
	assert.Equal(t, []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio}, c.Kinds())

	_, ok := c.NextFallback()
	assert.False(t, ok)
}

func TestFixedConstraintsHaveNoFallback(t *testing.T) {
	for _, c := range []MediaConstraints{NewMediaConstraints(true, false), NewMediaConstraints(false, true)} {
		before := c
		_, ok := c.NextFallback()
		assert.False(t, ok)
		assert.False(t, c.Drop(webrtc.RTPCodecTypeAudio))
		assert.False(t, c.Drop(webrtc.RTPCodecTypeVideo))
		assert.Equal(t, before, c)
		assert.Len(t, c.Kinds(), 1)
	}
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "offerer", RoleOfferer.String())
	assert.Equal(t, "answerer", RoleAnswerer.String())
}
