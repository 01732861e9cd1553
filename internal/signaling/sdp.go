package signaling

import (
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

const opusCodec = "opus/48000/2"

// PatchOpusNACK inserts "a=rtcp-fb:<pt> nack" right after the Opus rtpmap
// line of every audio section that lacks it. Some WHEP servers only
// retransmit audio when the offer asks for NACK explicitly, and browsers
// and pion both leave it out for Opus.
func PatchOpusNACK(raw string) (string, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return "", &NegotiationError{Op: "parse local offer", Err: err}
	}

	changed := false
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}

		attrs := make([]sdp.Attribute, 0, len(md.Attributes)+1)
		for _, attr := range md.Attributes {
			attrs = append(attrs, attr)

			if attr.Key != "rtpmap" {
				continue
			}
			pt, codec, ok := strings.Cut(attr.Value, " ")
			if !ok || !strings.EqualFold(codec, opusCodec) {
				continue
			}
			nack := pt + " nack"
			if hasAttribute(md, "rtcp-fb", nack) {
				continue
			}
			attrs = append(attrs, sdp.NewAttribute("rtcp-fb", nack))
			changed = true
		}
		md.Attributes = attrs
	}

	if !changed {
		return raw, nil
	}

	out, err := desc.Marshal()
	if err != nil {
		return "", &NegotiationError{Op: "marshal local offer", Err: err}
	}
	return string(out), nil
}

func hasAttribute(md *sdp.MediaDescription, key, value string) bool {
	for _, attr := range md.Attributes {
		if attr.Key == key && attr.Value == value {
			return true
		}
	}
	return false
}

// ParseRemote validates a description received from the server and returns
// the media kinds it carries, in section order.
func ParseRemote(raw string) ([]webrtc.RTPCodecType, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &NegotiationError{Op: "parse remote description", Err: errEmptySDP}
	}

	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return nil, &NegotiationError{Op: "parse remote description", Err: err}
	}

	var kinds []webrtc.RTPCodecType
	for _, md := range desc.MediaDescriptions {
		switch md.MediaName.Media {
		case "audio":
			kinds = append(kinds, webrtc.RTPCodecTypeAudio)
		case "video":
			kinds = append(kinds, webrtc.RTPCodecTypeVideo)
		}
	}
	if len(kinds) == 0 {
		return nil, &NegotiationError{Op: "parse remote description", Err: errNoMedia}
	}
	return kinds, nil
}
