// Package config holds the player configuration and its CLI binding.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"
)

// Defaults for the session timings.
const (
	DefaultReconnectAttempts = 2
	DefaultICEGatherTimeout  = 2 * time.Second
	DefaultStatsInterval     = 5 * time.Second
	DefaultStallThreshold    = 30 * time.Second
	DefaultSourceType        = "application/x-whep"
)

// DefaultICEServers is used when no --ice flag is given.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

// Config stores all parameters gathered from the command line.
type Config struct {
	URL        string   // WHEP endpoint
	Token      string   // Bearer token, optional
	ICEServers []string // STUN/TURN URLs
	ICEUser    string   // TURN username, applied to every turn: URL
	ICEPass    string   // TURN credential
	SourceType string   // MIME type of the source
	Preload    string   // none | metadata | auto

	ReconnectAttempts int
	ICEGatherTimeout  time.Duration
	StatsInterval     time.Duration
	StallThreshold    time.Duration

	EventsAddr  string // WebSocket event feed listen address, empty disables
	MetricsAddr string // Prometheus listen address, empty disables
	Debug       bool
}

// Default returns a Config with every optional field set to its default.
func Default() Config {
	return Config{
		ICEServers:        append([]string(nil), DefaultICEServers...),
		SourceType:        DefaultSourceType,
		Preload:           "auto",
		ReconnectAttempts: DefaultReconnectAttempts,
		ICEGatherTimeout:  DefaultICEGatherTimeout,
		StatsInterval:     DefaultStatsInterval,
		StallThreshold:    DefaultStallThreshold,
	}
}

// BindFlags registers the configuration flags on fs, using the values
// already in c as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.URL, "url", "u", c.URL, "WHEP endpoint URL")
	fs.StringVarP(&c.Token, "token", "t", c.Token, "Bearer token sent with every signaling request")
	fs.StringSliceVar(&c.ICEServers, "ice", c.ICEServers, "STUN/TURN server URLs")
	fs.StringVar(&c.ICEUser, "ice-user", c.ICEUser, "TURN username")
	fs.StringVar(&c.ICEPass, "ice-pass", c.ICEPass, "TURN credential")
	fs.StringVar(&c.SourceType, "type", c.SourceType, "Source MIME type (application/x-whep, video/x-whep, audio/x-whep)")
	fs.StringVar(&c.Preload, "preload", c.Preload, "Preload hint: none, metadata or auto")
	fs.IntVar(&c.ReconnectAttempts, "reconnect-attempts", c.ReconnectAttempts, "Reconnects allowed after a failure before giving up")
	fs.DurationVar(&c.ICEGatherTimeout, "ice-timeout", c.ICEGatherTimeout, "Maximum wait for ICE gathering before sending the description")
	fs.DurationVar(&c.StatsInterval, "stats-interval", c.StatsInterval, "Transport statistics sampling interval")
	fs.DurationVar(&c.StallThreshold, "stall-threshold", c.StallThreshold, "Time without new media bytes before reporting a stall")
	fs.StringVar(&c.EventsAddr, "events-addr", c.EventsAddr, "Listen address of the WebSocket event feed (empty disables)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Listen address of the Prometheus endpoint (empty disables)")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
}

// Validate checks the configuration and normalises the endpoint URL.
func (c *Config) Validate() error {
	u, err := NormalizeEndpoint(c.URL)
	if err != nil {
		return err
	}
	c.URL = u.String()

	switch c.Preload {
	case "none", "metadata", "auto":
	case "":
		c.Preload = "auto"
	default:
		return fmt.Errorf("invalid preload %q: must be none, metadata or auto", c.Preload)
	}

	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("invalid reconnect attempts %d: must not be negative", c.ReconnectAttempts)
	}
	if c.ICEGatherTimeout <= 0 {
		return fmt.Errorf("invalid ice timeout %s: must be positive", c.ICEGatherTimeout)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("invalid stats interval %s: must be positive", c.StatsInterval)
	}
	if c.StallThreshold < c.StatsInterval {
		return fmt.Errorf("stall threshold %s is shorter than the stats interval %s", c.StallThreshold, c.StatsInterval)
	}

	for _, s := range c.ICEServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "turn:") && !strings.HasPrefix(s, "turns:") {
			return fmt.Errorf("invalid ICE server %q: must start with stun:, turn: or turns:", s)
		}
	}

	return nil
}

// WebRTCICEServers converts the configured URLs into pion ICE servers.
// TURN URLs carry the configured credentials.
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		server := webrtc.ICEServer{URLs: []string{s}}
		if strings.HasPrefix(s, "turn") && c.ICEUser != "" {
			server.Username = c.ICEUser
			server.Credential = c.ICEPass
		}
		servers = append(servers, server)
	}
	return servers
}

// NormalizeEndpoint validates a raw endpoint string. A missing scheme
// defaults to https.
func NormalizeEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("missing endpoint URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint URL: %s", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint URL scheme %q: must be http or https", u.Scheme)
	}
	return u, nil
}
