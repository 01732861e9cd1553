// Package monitor detects silent media stalls on a connected peer.
//
// A peer connection can report "connected" while no media arrives. The
// monitor samples the inbound RTP byte counters on a fixed interval and
// reports Stalled once the total has not grown for Threshold, and Healthy
// again on the first sample that shows growth.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// Defaults.
const (
	DefaultInterval  = 5 * time.Second
	DefaultThreshold = 30 * time.Second
)

// State is the media health derived from the byte counters.
type State int

const (
	Healthy State = iota
	Stalled
)

func (s State) String() string {
	if s == Stalled {
		return "stalled"
	}
	return "healthy"
}

// StatsSource provides transport statistics. transport.Peer satisfies it.
type StatsSource interface {
	GetStats() webrtc.StatsReport
}

// Sample is one statistics reading.
type Sample struct {
	At            time.Time
	BytesReceived uint64
	Bitrate       float64 // bits per second since the previous sample
	StalledFor    time.Duration
}

// Options configures a Monitor.
type Options struct {
	Interval  time.Duration
	Threshold time.Duration

	// OnSample, if set, receives every accepted sample.
	OnSample func(Sample)
}

// Monitor samples one StatsSource. Create a new Monitor per connected peer.
type Monitor struct {
	src    StatsSource
	opts   Options
	notify func(State)

	mu         sync.Mutex
	state      State
	prevBytes  uint64
	stalledFor time.Duration
	lastAt     time.Time
	running    bool
	stopped    bool
	cancel     context.CancelFunc
}

// New creates a Monitor. notify is called once per Healthy/Stalled
// transition, never repeatedly for the same state.
func New(src StatsSource, opts Options, notify func(State)) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if notify == nil {
		notify = func(State) {}
	}
	return &Monitor{src: src, opts: opts, notify: notify}
}

// Start launches the sampling goroutine. It stops when ctx is cancelled or
// Stop is called. Start on a running or stopped Monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running || m.stopped {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.lastAt = time.Now()
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case at := <-ticker.C:
				total := InboundBytes(m.src.GetStats())
				// GetStats may have raced with Stop; observe drops it then.
				if ctx.Err() != nil {
					return
				}
				m.observe(at, total)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts sampling immediately. Samples still in flight are discarded.
// Stop is idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
}

// State returns the current media health.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// observe folds one sample into the stall accounting.
func (m *Monitor) observe(at time.Time, total uint64) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}

	elapsed := m.opts.Interval
	if !m.lastAt.IsZero() && at.After(m.lastAt) {
		elapsed = at.Sub(m.lastAt)
	}
	m.lastAt = at

	sample := Sample{At: at, BytesReceived: total}
	changed := false

	if total <= m.prevBytes {
		m.stalledFor += elapsed
		if m.state == Healthy && m.stalledFor >= m.opts.Threshold {
			m.state = Stalled
			changed = true
		}
	} else {
		sample.Bitrate = float64(total-m.prevBytes) * 8 / elapsed.Seconds()
		m.prevBytes = total
		m.stalledFor = 0
		if m.state == Stalled {
			m.state = Healthy
			changed = true
		}
	}
	sample.StalledFor = m.stalledFor
	state := m.state
	m.mu.Unlock()

	if m.opts.OnSample != nil {
		m.opts.OnSample(sample)
	}
	if changed {
		m.notify(state)
	}
}

// InboundBytes sums BytesReceived over every inbound RTP stream in report.
func InboundBytes(report webrtc.StatsReport) uint64 {
	var total uint64
	for _, s := range report {
		if in, ok := s.(webrtc.InboundRTPStreamStats); ok {
			total += in.BytesReceived
		}
	}
	return total
}
