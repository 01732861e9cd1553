// Package metrics exports session health as Prometheus metrics.
package metrics

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/whep-play/internal/events"
)

const namespace = "whep"

// States lists every session state so the state gauge always exposes the
// full set, with exactly one series at 1.
var States = []string{
	"idle",
	"connecting",
	"offering",
	"awaiting_remote_offer",
	"negotiated",
	"connected",
	"reconnecting",
	"closed",
}

// Collector owns a private registry with the player metrics. It also
// implements events.Notifier, so it can be attached next to the event hub.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	negotiations  *prometheus.CounterVec
	reconnects    prometheus.Counter
	failures      *prometheus.CounterVec
	stalls        prometheus.Counter
	recoveries    prometheus.Counter
	state         *prometheus.GaugeVec
	bitrate       prometheus.Gauge
	bytesReceived prometheus.Gauge

	listener net.Listener
}

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		negotiations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiations_total",
			Help:      "Completed signaling exchanges by role and outcome.",
		}, []string{"role", "outcome"}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnects that consumed reconnect budget.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Terminal session failures by cause kind.",
		}, []string{"kind"}),
		stalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stalls_total",
			Help:      "Media stalls detected on a connected peer.",
		}),
		recoveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Media stalls that recovered without reconnecting.",
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		bitrate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbound_bitrate_bits",
			Help:      "Inbound RTP bitrate at the last stats sample, in bits per second.",
		}),
		bytesReceived: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbound_bytes",
			Help:      "Inbound RTP bytes on the current peer at the last stats sample.",
		}),
	}
	c.setState("idle")
	return c
}

// ObserveNegotiation counts one classified exchange.
func (c *Collector) ObserveNegotiation(role, outcome string) {
	if c == nil {
		return
	}
	c.negotiations.WithLabelValues(role, outcome).Inc()
}

// Notify updates the metrics from a session event.
func (c *Collector) Notify(e events.Event) {
	if c == nil {
		return
	}
	switch e.Type {
	case events.TypeStateChange:
		c.setState(e.State)
	case events.TypeReconnecting:
		c.reconnects.Inc()
	case events.TypeFailed:
		kind := e.CauseKind
		if kind == "" {
			kind = "unknown"
		}
		c.failures.WithLabelValues(kind).Inc()
	case events.TypeStalled:
		c.stalls.Inc()
	case events.TypeRecovered:
		c.recoveries.Inc()
	case events.TypeStats:
		c.bitrate.Set(e.Bitrate)
		c.bytesReceived.Set(float64(e.BytesReceived))
	}
}

func (c *Collector) setState(current string) {
	for _, s := range States {
		v := 0.0
		if s == current {
			v = 1
		}
		c.state.WithLabelValues(s).Set(v)
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Start serves /metrics on addr in the background and returns the bound
// address.
func (c *Collector) Start(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	c.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	go func() {
		_ = http.Serve(listener, mux)
	}()

	return listener.Addr(), nil
}

// Close stops the metrics listener.
func (c *Collector) Close() {
	if c != nil && c.listener != nil {
		c.listener.Close()
	}
}
