// Package session drives one WHEP playback session.
//
// A Session owns the peer connection of every negotiation attempt. It runs
// the attempts on a single loop goroutine, applies the role switch and media
// fallback the server asks for, reconnects on failure within a bounded
// budget, and releases the server-side resource on teardown.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/whep-play/internal/config"
	"github.com/1ureka/whep-play/internal/events"
	"github.com/1ureka/whep-play/internal/ice"
	"github.com/1ureka/whep-play/internal/metrics"
	"github.com/1ureka/whep-play/internal/monitor"
	"github.com/1ureka/whep-play/internal/signaling"
	"github.com/1ureka/whep-play/internal/transport"
	"github.com/1ureka/whep-play/internal/util"
)

// releaseTimeout bounds the best-effort DELETE on teardown.
const releaseTimeout = 5 * time.Second

// Options configures a Session.
type Options struct {
	Token      string
	ICEServers []webrtc.ICEServer

	// ReconnectAttempts is the reconnect budget. Zero means the first
	// failure is terminal.
	ReconnectAttempts int
	ICEGatherTimeout  time.Duration
	StatsInterval     time.Duration
	StallThreshold    time.Duration

	// NewPeer creates the peer of each attempt. Defaults to
	// transport.NewPionPeer.
	NewPeer    transport.Factory
	HTTPClient *http.Client

	Element  MediaElement
	Notifier events.Notifier
	Metrics  *metrics.Collector
	Logger   util.Logger
}

// OptionsFromConfig maps the CLI configuration onto session options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Token:             cfg.Token,
		ICEServers:        cfg.WebRTCICEServers(),
		ReconnectAttempts: cfg.ReconnectAttempts,
		ICEGatherTimeout:  cfg.ICEGatherTimeout,
		StatsInterval:     cfg.StatsInterval,
		StallThreshold:    cfg.StallThreshold,
	}
}

// Session is a single WHEP playback session. All methods are safe for
// concurrent use.
type Session struct {
	id       string
	opts     Options
	log      util.Logger
	notifier events.Notifier
	ice      *ice.Coordinator
	machine  *fsm.FSM

	// opMu serializes Load, Play, Unload and Destroy. The loop goroutine is
	// the only other caller of machine transitions, and Unload waits for it
	// to exit before closing.
	opMu sync.Mutex

	mu          sync.Mutex
	source      Source
	preload     Preload
	pending     bool
	role        signaling.Role
	constraints signaling.MediaConstraints
	budget      int
	negotiator  *signaling.Negotiator
	peer        transport.Peer
	gen         uint64
	stream      *MediaStream
	mon         *monitor.Monitor
	muted       bool
	err         error
	destroyed   bool
	runCtx      context.Context
	cancel      context.CancelFunc
	done        chan struct{}

	peerStates chan peerState
}

// peerState is a connection state reported by the peer of generation gen.
type peerState struct {
	gen   uint64
	state webrtc.PeerConnectionState
}

// New creates an idle Session.
func New(opts Options) *Session {
	if opts.NewPeer == nil {
		opts.NewPeer = transport.NewPionPeer
	}
	if opts.ReconnectAttempts < 0 {
		opts.ReconnectAttempts = 0
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = monitor.DefaultInterval
	}
	if opts.StallThreshold <= 0 {
		opts.StallThreshold = monitor.DefaultThreshold
	}

	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = util.NewLogger("session")
	}
	log = log.With(id[:8])

	notifiers := []events.Notifier{opts.Notifier}
	if opts.Metrics != nil {
		notifiers = append(notifiers, opts.Metrics)
	}

	done := make(chan struct{})
	close(done)

	s := &Session{
		id:       id,
		opts:     opts,
		log:      log,
		notifier: events.Multi(notifiers...),
		ice:      ice.New(opts.ICEGatherTimeout),
		budget:   opts.ReconnectAttempts,
		done:       done,
		peerStates: make(chan peerState, 8),
	}
	s.machine = newMachine(s.onEnter)
	return s
}

// ID returns the session identifier carried by every notification.
func (s *Session) ID() string { return s.id }

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (s *Session) State() State {
	return State(s.machine.Current())
}

func (s *Session) Role() signaling.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) Constraints() signaling.MediaConstraints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.constraints
}

// Budget returns the reconnects left before a failure becomes terminal.
func (s *Session) Budget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// Resource returns the server-side session resource, or "".
func (s *Session) Resource() string {
	s.mu.Lock()
	n := s.negotiator
	s.mu.Unlock()
	if n == nil {
		return ""
	}
	return n.Resource()
}

// Err returns the TerminalError of the last load, if it failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the current run loop exits, after a terminal failure,
// Unload or cancellation of the Load context.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Load starts playing src. It is valid from idle or closed. The session keeps
// negotiating and reconnecting until ctx is cancelled, Unload is called or
// the reconnect budget runs out. Cancelling ctx tears the session down the
// same way Unload does. With PreloadNone nothing happens until Play.
func (s *Session) Load(ctx context.Context, src Source, preload Preload) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return ErrDestroyed
	}

	switch s.State() {
	case StateIdle, StateClosed:
	default:
		return ErrInvalidState
	}

	constraints, err := constraintsFor(src)
	if err != nil {
		return err
	}
	endpoint, err := signaling.ParseEndpoint(src.Src, s.opts.Token, s.opts.ICEServers)
	if err != nil {
		return err
	}
	if preload == "" {
		preload = PreloadAuto
	}

	// A terminal failure closes the machine before the loop has fully
	// returned.
	s.stopLoop()

	s.mu.Lock()
	s.source = src
	s.preload = preload
	s.constraints = constraints
	s.budget = s.opts.ReconnectAttempts
	s.err = nil
	s.negotiator = signaling.New(endpoint, s.opts.HTTPClient, s.log.With("signaling"))
	s.pending = preload == PreloadNone
	s.runCtx = ctx
	s.mu.Unlock()

	s.log.Infof("loading %s (%s, %s, preload=%s)", endpoint.URL, src.Type, constraints, preload)
	s.emit(events.Event{Type: events.TypeStreamTypeChange, StreamType: StreamTypeLowLatencyLive})

	if preload == PreloadNone {
		return nil
	}
	return s.start()
}

// Play starts negotiation deferred by PreloadNone. It is a no-op when the
// session is already running.
func (s *Session) Play() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	pending := s.pending
	loaded := s.negotiator != nil
	s.mu.Unlock()

	if !loaded {
		return ErrNotLoaded
	}
	if !pending {
		return nil
	}
	return s.start()
}

// start moves to connecting and launches the loop. opMu must be held.
func (s *Session) start() error {
	if err := s.fire(evLoad); err != nil {
		return ErrInvalidState
	}

	s.mu.Lock()
	ctx, cancel := context.WithCancel(s.runCtx)
	done := make(chan struct{})
	s.pending = false
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(ctx, done)
	return nil
}

// stopLoop cancels the run loop and waits for it to exit.
func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Unload cancels any in-flight exchange or ICE wait, stops the monitor,
// releases the server resource, closes the peer and detaches the media
// element. It is valid in any state and idempotent.
func (s *Session) Unload(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.unload(ctx)
}

func (s *Session) unload(ctx context.Context) error {
	s.stopLoop()

	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()

	if s.State() == StateClosed {
		return nil
	}

	s.teardown(ctx, true)
	return s.fire(evClose)
}

// Destroy unloads the session and closes the notifier if it can be closed.
// Later calls to Load fail with ErrDestroyed.
func (s *Session) Destroy(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.mu.Unlock()

	err := s.unload(ctx)

	if c, ok := s.opts.Notifier.(interface{ Close() }); ok {
		c.Close()
	}
	return err
}

// Mute silences the media element.
func (s *Session) Mute() { s.setMuted(true) }

// Unmute restores audio on the media element.
func (s *Session) Unmute() { s.setMuted(false) }

func (s *Session) setMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	if s.opts.Element != nil {
		s.opts.Element.SetMuted(muted)
	}
}

// Muted reports the last Mute/Unmute call.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func (s *Session) emit(e events.Event) {
	e.Session = s.id
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.notifier.Notify(e)
}

func (s *Session) onEnter(from, to State) {
	s.log.Debugf("state %s -> %s", from, to)
	s.emit(events.Event{Type: events.TypeStateChange, State: string(to), From: string(from)})
}
