package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"

	"github.com/1ureka/whep-play/internal/session"
	"github.com/1ureka/whep-play/internal/transport"
	"github.com/1ureka/whep-play/internal/util"
)

// rtpReader is implemented by *webrtc.TrackRemote.
type rtpReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// headlessElement is a session.MediaElement without a renderer: it reads
// every attached track to completion and counts what arrives.
type headlessElement struct {
	ctx   context.Context
	stats *util.Stats
	log   util.Logger

	mu      sync.Mutex
	muted   bool
	current *session.MediaStream
}

func newHeadlessElement(ctx context.Context, stats *util.Stats, log util.Logger) *headlessElement {
	return &headlessElement{ctx: ctx, stats: stats, log: log}
}

func (e *headlessElement) SetSrcObject(stream *session.MediaStream) {
	e.mu.Lock()
	e.current = stream
	e.mu.Unlock()

	if stream == nil {
		e.log.Debugf("media element detached")
		return
	}

	e.log.Debugf("media element attached to stream %s", stream.ID())
	stream.OnAddTrack(func(track transport.RemoteTrack) {
		e.stats.AddTrack()
		go e.drain(track)
	})
}

func (e *headlessElement) SetMuted(muted bool) {
	e.mu.Lock()
	e.muted = muted
	e.mu.Unlock()
}

// drain reads RTP from track until the peer closes it.
func (e *headlessElement) drain(track transport.RemoteTrack) {
	reader, ok := track.(rtpReader)
	if !ok {
		e.log.Debugf("track %s cannot be read", track.ID())
		return
	}

	first := true
	for {
		pkt, _, err := reader.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.log.Debugf("%s track %s ended: %v", track.Kind(), track.ID(), err)
			}
			return
		}
		if e.ctx.Err() != nil {
			return
		}

		if first {
			e.log.Debugf("first %s packet on %s: pt=%d ssrc=%d seq=%d",
				track.Kind(), track.ID(), pkt.PayloadType, pkt.SSRC, pkt.SequenceNumber)
			first = false
		}
		e.stats.AddRecv(len(pkt.Payload))
	}
}
