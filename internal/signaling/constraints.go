package signaling

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// Role is the side of the offer/answer exchange the client plays.
type Role int

const (
	// RoleOfferer posts a client offer and receives the answer.
	RoleOfferer Role = iota
	// RoleAnswerer requests a server offer and patches back an answer.
	RoleAnswerer
)

func (r Role) String() string {
	if r == RoleAnswerer {
		return "answerer"
	}
	return "offerer"
}

// MediaConstraints tracks which media kinds a negotiation requests.
//
// AudioOnly and VideoOnly are declared by the source and never change.
// Audio and Video are the kinds currently requested; only the 406 fallback
// policy changes them, one step per kind at most.
type MediaConstraints struct {
	AudioOnly bool
	VideoOnly bool

	Audio bool
	Video bool

	audioDropped bool
	videoDropped bool
}

// NewMediaConstraints derives the requested kinds from the declared ones.
func NewMediaConstraints(audioOnly, videoOnly bool) MediaConstraints {
	return MediaConstraints{
		AudioOnly: audioOnly,
		VideoOnly: videoOnly,
		Audio:     !videoOnly,
		Video:     !audioOnly,
	}
}

// Fixed reports whether the source pinned a single kind, which disables
// fallback.
func (c MediaConstraints) Fixed() bool {
	return c.AudioOnly || c.VideoOnly
}

// Kinds returns the requested kinds, video first so the SDP media sections
// are always ordered the same way.
func (c MediaConstraints) Kinds() []webrtc.RTPCodecType {
	kinds := make([]webrtc.RTPCodecType, 0, 2)
	if c.Video {
		kinds = append(kinds, webrtc.RTPCodecTypeVideo)
	}
	if c.Audio {
		kinds = append(kinds, webrtc.RTPCodecTypeAudio)
	}
	return kinds
}

// NextFallback returns the kind to drop after a 406, or false when no step
// is left. Audio is tried first, then video (with audio restored).
func (c MediaConstraints) NextFallback() (webrtc.RTPCodecType, bool) {
	if c.Fixed() {
		return 0, false
	}
	if c.Audio && c.Video && !c.audioDropped {
		return webrtc.RTPCodecTypeAudio, true
	}
	if c.Video && !c.videoDropped {
		return webrtc.RTPCodecTypeVideo, true
	}
	return 0, false
}

// Drop applies a fallback step. It reports false, leaving c untouched, when
// the step was already taken or would leave no kind enabled.
func (c *MediaConstraints) Drop(kind webrtc.RTPCodecType) bool {
	if c.Fixed() {
		return false
	}
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		if c.audioDropped || c.videoDropped {
			return false
		}
		c.Audio, c.Video = false, true
		c.audioDropped = true
	case webrtc.RTPCodecTypeVideo:
		if c.videoDropped {
			return false
		}
		c.Audio, c.Video = true, false
		c.videoDropped = true
	default:
		return false
	}
	return true
}

func (c MediaConstraints) String() string {
	var parts []string
	for _, k := range c.Kinds() {
		parts = append(parts, k.String())
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}
