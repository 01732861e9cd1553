package session

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/1ureka/whep-play/internal/signaling"
	"github.com/1ureka/whep-play/internal/transport"
)

// StreamTypeLowLatencyLive is the stream type of every WHEP source.
const StreamTypeLowLatencyLive = "ll-live"

// Recognised source types.
const (
	TypeWHEP      = "application/x-whep"
	TypeVideoWHEP = "video/x-whep"
	TypeAudioWHEP = "audio/x-whep"
)

var ErrUnsupportedSource = errors.New("unsupported source type")

// Source describes what to play.
//
// Type may carry a "tracks" parameter ("audio" or "video") declaring that
// the stream only has that kind, e.g. "application/x-whep; tracks=video".
type Source struct {
	Src  string
	Type string
}

// Preload controls when negotiation starts after Load.
type Preload string

const (
	// PreloadNone defers negotiation until Play.
	PreloadNone     Preload = "none"
	PreloadMetadata Preload = "metadata"
	PreloadAuto     Preload = "auto"
)

// ParsePreload validates a preload value. The empty string selects
// PreloadAuto.
func ParsePreload(s string) (Preload, error) {
	switch p := Preload(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PreloadAuto, nil
	case PreloadNone, PreloadMetadata, PreloadAuto:
		return p, nil
	default:
		return "", fmt.Errorf("invalid preload %q", s)
	}
}

// CanPlay reports whether src is a WHEP source this package can play.
func CanPlay(src Source) bool {
	_, err := constraintsFor(src)
	return err == nil
}

// constraintsFor derives the media constraints declared by the source type.
func constraintsFor(src Source) (signaling.MediaConstraints, error) {
	typ := strings.TrimSpace(src.Type)
	if typ == "" {
		typ = TypeWHEP
	}

	mediaType, params, err := mime.ParseMediaType(typ)
	if err != nil {
		return signaling.MediaConstraints{}, fmt.Errorf("%w: %q: %v", ErrUnsupportedSource, src.Type, err)
	}

	switch mediaType {
	case TypeWHEP, TypeVideoWHEP, TypeAudioWHEP:
	default:
		return signaling.MediaConstraints{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, mediaType)
	}

	audioOnly := strings.HasPrefix(mediaType, "audio/")
	videoOnly := false

	switch params["tracks"] {
	case "":
	case "audio":
		audioOnly = true
	case "video":
		if audioOnly {
			return signaling.MediaConstraints{}, fmt.Errorf("%w: %q declares video tracks", ErrUnsupportedSource, mediaType)
		}
		videoOnly = true
	default:
		return signaling.MediaConstraints{}, fmt.Errorf("%w: tracks=%q", ErrUnsupportedSource, params["tracks"])
	}

	return signaling.NewMediaConstraints(audioOnly, videoOnly), nil
}

// MediaElement renders a session's media. It is called with the session
// lock held and must not call back into the session.
type MediaElement interface {
	// SetSrcObject attaches a stream, or detaches with nil.
	SetSrcObject(stream *MediaStream)
	SetMuted(muted bool)
}

// MediaStream is the rendering sink the session fills with remote tracks.
// Tracks are only ever added.
type MediaStream struct {
	id string

	mu        sync.Mutex
	tracks    []transport.RemoteTrack
	listeners []func(transport.RemoteTrack)
}

// NewMediaStream returns an empty stream.
func NewMediaStream() *MediaStream {
	return &MediaStream{id: uuid.NewString()}
}

func (m *MediaStream) ID() string { return m.id }

// AddTrack appends a track and notifies listeners.
func (m *MediaStream) AddTrack(track transport.RemoteTrack) {
	m.mu.Lock()
	m.tracks = append(m.tracks, track)
	listeners := append([]func(transport.RemoteTrack){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(track)
	}
}

// Tracks returns the tracks added so far.
func (m *MediaStream) Tracks() []transport.RemoteTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.RemoteTrack(nil), m.tracks...)
}

// OnAddTrack registers fn for every track added from now on and replays
// the tracks already present.
func (m *MediaStream) OnAddTrack(fn func(transport.RemoteTrack)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	existing := append([]transport.RemoteTrack(nil), m.tracks...)
	m.mu.Unlock()

	for _, t := range existing {
		fn(t)
	}
}
