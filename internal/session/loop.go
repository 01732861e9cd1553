package session

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/whep-play/internal/events"
	"github.com/1ureka/whep-play/internal/monitor"
	"github.com/1ureka/whep-play/internal/signaling"
	"github.com/1ureka/whep-play/internal/transport"
)

// run drives negotiation attempts until ctx is cancelled or the session
// fails terminally.
func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.abandon(ctx)

	for {
		out := s.attempt(ctx)

		switch out.Kind {
		case signaling.OutcomeAbandoned:
			s.log.Debugf("attempt abandoned: %v", out.Err)
			return

		case signaling.OutcomeRoleSwitch:
			s.mu.Lock()
			s.role = signaling.RoleAnswerer
			s.mu.Unlock()
			s.teardown(ctx, false)
			if s.fire(evRetry) != nil {
				return
			}
			continue

		case signaling.OutcomeMediaFallback:
			s.mu.Lock()
			ok := s.constraints.Drop(out.Media)
			c := s.constraints
			s.mu.Unlock()
			if !ok {
				// NextFallback only offers steps Drop accepts.
				out = signaling.Outcome{Kind: signaling.OutcomeFatal, Err: &signaling.NegotiationError{Op: "fallback refused"}}
				break
			}
			s.log.Infof("retrying with %s", c)
			s.teardown(ctx, false)
			if s.fire(evRetry) != nil {
				return
			}
			continue

		case signaling.OutcomeSuccess:
			if s.fire(evNegotiated) != nil {
				return
			}
			err := s.watchPeer(ctx)
			if err == nil {
				return
			}
			out = signaling.Outcome{Kind: signaling.OutcomeFatal, Err: err}
		}

		if ctx.Err() != nil {
			return
		}
		if !s.recover(ctx, out.Err) {
			return
		}
	}
}

// attempt performs one negotiation in the current role on a fresh peer.
func (s *Session) attempt(ctx context.Context) signaling.Outcome {
	s.mu.Lock()
	role, c, n := s.role, s.constraints, s.negotiator
	s.mu.Unlock()

	peer, err := s.newPeer()
	if err != nil {
		return signaling.Classify(ctx, err)
	}
	n.Attach(peer)

	if role == signaling.RoleOfferer {
		if err := s.fire(evOffer); err != nil {
			return signaling.Classify(ctx, err)
		}
		err = n.BeginAsOfferer(ctx, c)
	} else {
		if err := s.fire(evRequestOffer); err != nil {
			return signaling.Classify(ctx, err)
		}
		err = n.BeginAsAnswerer(ctx)
	}
	if err != nil {
		out := signaling.Classify(ctx, err)
		s.opts.Metrics.ObserveNegotiation(role.String(), out.Kind.String())
		return out
	}

	reason, err := s.ice.Watch(peer).Wait(ctx)
	if err != nil {
		return signaling.Classify(ctx, err)
	}
	s.log.Debugf("local description ready (%s)", reason)

	var out signaling.Outcome
	if role == signaling.RoleOfferer {
		out = n.SendLocalDescription(ctx, c)
	} else {
		out = n.SendLocalDescriptionAsAnswerer(ctx)
	}
	s.opts.Metrics.ObserveNegotiation(role.String(), out.Kind.String())
	return out
}

// newPeer creates the peer of the next attempt and wires its callbacks to
// the current generation.
func (s *Session) newPeer() (transport.Peer, error) {
	peer, err := s.opts.NewPeer(transport.Options{
		ICEServers: s.opts.ICEServers,
		Logger:     s.log.With("peer"),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.peer = peer
	s.mu.Unlock()

	peer.OnTrack(func(track transport.RemoteTrack) { s.onTrack(gen, track) })
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected, webrtc.PeerConnectionStateFailed:
		default:
			return
		}
		if !s.current(gen) {
			return
		}
		select {
		case s.peerStates <- peerState{gen: gen, state: state}:
		default:
			s.log.Debugf("dropped peer state %s", state)
		}
	})
	return peer, nil
}

// watchPeer follows the negotiated peer until it fails or ctx is done. The
// session only counts as connected once the peer reports so. It returns nil
// on cancellation.
func (s *Session) watchPeer(ctx context.Context) error {
	s.mu.Lock()
	gen, peer := s.gen, s.peer
	s.mu.Unlock()

	up := false
	if peer != nil && peer.ConnectionState() == webrtc.PeerConnectionStateConnected {
		if !s.connected(ctx, gen) {
			return nil
		}
		up = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-s.peerStates:
			if st.gen != gen {
				continue
			}
			switch st.state {
			case webrtc.PeerConnectionStateConnected:
				if up {
					continue
				}
				if !s.connected(ctx, gen) {
					return nil
				}
				up = true
			case webrtc.PeerConnectionStateFailed:
				return &transport.TransportError{State: webrtc.PeerConnectionStateFailed}
			}
		}
	}
}

// connected marks the peer of gen as up: the budget is reset and the stall
// monitor started.
func (s *Session) connected(ctx context.Context, gen uint64) bool {
	if s.fire(evConnect) != nil {
		return false
	}

	s.mu.Lock()
	s.budget = s.opts.ReconnectAttempts
	peer := s.peer
	role, c := s.role, s.constraints
	mon := monitor.New(peer, monitor.Options{
		Interval:  s.opts.StatsInterval,
		Threshold: s.opts.StallThreshold,
		OnSample:  func(sample monitor.Sample) { s.onSample(gen, sample) },
	}, func(state monitor.State) { s.onStall(gen, state) })
	s.mon = mon
	s.mu.Unlock()

	mon.Start(ctx)

	s.log.Infof("connected as %s (%s), resource %s", role, c, s.Resource())
	s.emit(events.Event{Type: events.TypeConnected, Role: role.String(), Media: c.String()})
	return true
}

// abandon tears the session down when its run context was cancelled while
// the machine is still open.
func (s *Session) abandon(ctx context.Context) {
	if ctx.Err() == nil || s.State() == StateClosed {
		return
	}
	s.teardown(ctx, true)
	_ = s.fire(evClose)
}

// recover applies the reconnect policy to a failure. It reports whether
// the loop should continue with a fresh attempt.
func (s *Session) recover(ctx context.Context, cause error) bool {
	s.mu.Lock()
	if s.budget <= 0 {
		terr := &TerminalError{Cause: cause}
		s.err = terr
		s.mu.Unlock()

		s.log.Errorf("giving up: %v", cause)
		s.teardown(ctx, true)
		_ = s.fire(evClose)
		s.emit(events.Event{Type: events.TypeFailed, Cause: terr.Error(), CauseKind: CauseKind(cause)})
		return false
	}
	s.budget--
	remaining := s.budget
	s.mu.Unlock()

	s.log.Warnf("reconnecting after failure (%d left): %v", remaining, cause)
	s.teardown(ctx, false)
	if s.fire(evFail) != nil {
		return false
	}
	s.emit(events.Event{
		Type:      events.TypeReconnecting,
		Remaining: remaining,
		Cause:     cause.Error(),
		CauseKind: CauseKind(cause),
	})
	return s.fire(evReconnect) == nil
}

// teardown stops the monitor, releases the server resource and closes the
// current peer. Callbacks of the old peer are ignored from here on. With
// detach the media element is cleared even if no stream was attached.
func (s *Session) teardown(ctx context.Context, detach bool) {
	s.mu.Lock()
	s.gen++
	peer, mon, n := s.peer, s.mon, s.negotiator
	s.peer, s.mon = nil, nil
	if (s.stream != nil || detach) && s.opts.Element != nil {
		s.opts.Element.SetSrcObject(nil)
	}
	s.stream = nil
	s.mu.Unlock()

	if mon != nil {
		mon.Stop()
	}

	if n != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		if err := n.Release(rctx); err != nil {
			s.log.Warnf("%v", err)
		}
		cancel()
	}

	if peer != nil {
		if err := peer.Close(); err != nil {
			s.log.Debugf("close peer: %v", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Peer callbacks
// ---------------------------------------------------------------------------

// onTrack attaches a remote track to the rendering sink, creating the sink
// on the first real track. Feedback loopback tracks are never rendered.
func (s *Session) onTrack(gen uint64, track transport.RemoteTrack) {
	if track.StreamID() == transport.FeedbackStreamID {
		s.log.Debugf("ignoring feedback track %s", track.ID())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	if s.stream == nil {
		s.stream = NewMediaStream()
		if s.opts.Element != nil {
			s.opts.Element.SetSrcObject(s.stream)
		}
	}
	s.stream.AddTrack(track)
	s.log.Debugf("attached %s track %s", track.Kind(), track.ID())
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *Session) onStall(gen uint64, state monitor.State) {
	if !s.current(gen) {
		return
	}
	if state == monitor.Stalled {
		s.log.Warnf("no media received for %s", s.opts.StallThreshold)
		s.emit(events.Event{Type: events.TypeStalled})
		return
	}
	s.log.Infof("media flowing again")
	s.emit(events.Event{Type: events.TypeRecovered})
}

func (s *Session) onSample(gen uint64, sample monitor.Sample) {
	if !s.current(gen) {
		return
	}
	s.emit(events.Event{
		Type:          events.TypeStats,
		Time:          sample.At,
		BytesReceived: sample.BytesReceived,
		Bitrate:       sample.Bitrate,
	})
}
