package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/whep-play/internal/config"
	"github.com/1ureka/whep-play/internal/events"
	"github.com/1ureka/whep-play/internal/session"
	"github.com/1ureka/whep-play/internal/util"
)

// scriptedTrack replays a fixed list of packets, then reports EOF.
type scriptedTrack struct {
	packets []*rtp.Packet
	next    atomic.Int32
}

func (t *scriptedTrack) ID() string                { return "v0" }
func (t *scriptedTrack) StreamID() string          { return "live" }
func (t *scriptedTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }

func (t *scriptedTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	i := int(t.next.Add(1)) - 1
	if i >= len(t.packets) {
		return nil, nil, io.EOF
	}
	return t.packets[i], nil, nil
}

func TestHeadlessElementDrainsTracks(t *testing.T) {
	stats := &util.Stats{}
	el := newHeadlessElement(context.Background(), stats, util.Discard())

	track := &scriptedTrack{packets: []*rtp.Packet{
		{Header: rtp.Header{PayloadType: 96, SequenceNumber: 1, SSRC: 7}, Payload: make([]byte, 100)},
		{Header: rtp.Header{PayloadType: 96, SequenceNumber: 2, SSRC: 7}, Payload: make([]byte, 50)},
	}}

	stream := session.NewMediaStream()
	el.SetSrcObject(stream)
	stream.AddTrack(track)

	require.Eventually(t, func() bool { return stats.PacketsRecv.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(150), stats.BytesRecv.Load())
	assert.Equal(t, int64(1), stats.Tracks.Load())

	el.SetMuted(true)
	el.SetSrcObject(nil)
	assert.Nil(t, el.current)
	assert.True(t, el.muted)
}

func TestRunPlayerSurfacesTerminalFailure(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		http.Error(w, "stream not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.URL = srv.URL + "/whep/missing"
	cfg.ICEServers = nil
	cfg.ReconnectAttempts = 0
	cfg.ICEGatherTimeout = 100 * time.Millisecond
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := RunPlayer(ctx, cfg)

	var terr *session.TerminalError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Error(), "status 404")
	assert.Equal(t, int32(1), posts.Load())
}

func TestRunPlayerRejectsUnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.URL = "http://127.0.0.1:1/whep"
	cfg.SourceType = "application/vnd.apple.mpegurl"

	err := RunPlayer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPrintEventsDrainsUntilClosed(t *testing.T) {
	util.EnableDebug()

	updates := make(chan events.Event, 3)
	updates <- events.Event{Type: events.TypeConnected, Role: "offerer", Media: "video+audio"}
	updates <- events.Event{Type: events.TypeStats, Bitrate: 8000, BytesReceived: 4096}
	updates <- events.Event{Type: events.TypeFailed, Cause: "session failed"}
	close(updates)

	done := make(chan struct{})
	go func() {
		printEvents(updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("printEvents did not return after the feed closed")
	}
	assert.Empty(t, updates)
}
