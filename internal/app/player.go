// Package app wires the player together for the command line.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/1ureka/whep-play/internal/config"
	"github.com/1ureka/whep-play/internal/events"
	"github.com/1ureka/whep-play/internal/metrics"
	"github.com/1ureka/whep-play/internal/session"
	"github.com/1ureka/whep-play/internal/util"
)

const shutdownTimeout = 5 * time.Second

// RunPlayer orchestrates one headless playback:
//  1. Start the event feed and metrics endpoint if configured
//  2. Load the WHEP source and negotiate
//  3. Drain received media and report statistics
//  4. Tear down on Ctrl+C or terminal failure
func RunPlayer(ctx context.Context, cfg config.Config) error {
	preload, err := session.ParsePreload(cfg.Preload)
	if err != nil {
		return err
	}

	// ── 1. Observers ──────────────────────────────────────────────────
	hub := events.NewHub(0, util.NewLogger("events"))

	if cfg.EventsAddr != "" {
		feed := events.NewServer(hub, util.NewLogger("events"))
		addr, err := feed.Start(cfg.EventsAddr)
		if err != nil {
			return err
		}
		defer feed.Close()
		util.LogInfo("event feed listening on ws://%s/events", addr)
	}

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.New()
		addr, err := collector.Start(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer collector.Close()
		util.LogInfo("metrics listening on http://%s/metrics", addr)
	}

	updates, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	go printEvents(updates)

	// ── 2. Session ────────────────────────────────────────────────────
	stats := &util.Stats{}

	opts := session.OptionsFromConfig(cfg)
	opts.Element = newHeadlessElement(ctx, stats, util.NewLogger("element"))
	opts.Notifier = hub
	opts.Metrics = collector
	opts.Logger = util.NewLogger("session")

	s := session.New(opts)
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Destroy(dctx); err != nil {
			util.LogWarning("teardown: %v", err)
		}
	}()

	src := session.Source{Src: cfg.URL, Type: cfg.SourceType}
	if !session.CanPlay(src) {
		return fmt.Errorf("cannot play %q sources", cfg.SourceType)
	}
	if err := s.Load(ctx, src, preload); err != nil {
		return fmt.Errorf("load %s: %w", cfg.URL, err)
	}
	// A command line has no user gesture to wait for.
	if err := s.Play(); err != nil {
		return err
	}

	// ── 3. Statistics ─────────────────────────────────────────────────
	util.StartStatsReporter(ctx, stats, cfg.StatsInterval)

	// ── 4. Block until shutdown ───────────────────────────────────────
	select {
	case <-ctx.Done():
	case <-s.Done():
	}
	return s.Err()
}

// printEvents reports session notifications on the console.
func printEvents(updates <-chan events.Event) {
	for e := range updates {
		switch e.Type {
		case events.TypeConnected:
			util.LogSuccess("playing as %s (%s)", e.Role, e.Media)
		case events.TypeStalled:
			util.LogWarning("stream stalled, waiting for media")
		case events.TypeRecovered:
			util.LogInfo("stream recovered")
		case events.TypeReconnecting:
			util.LogWarning("reconnecting (%d left): %s", e.Remaining, e.Cause)
		case events.TypeFailed:
			util.LogError("playback failed: %s", e.Cause)
		case events.TypeStats:
			util.LogDebug("inbound %s/s, %d bytes total", util.FormatBytes(e.Bitrate/8), e.BytesReceived)
		}
	}
}
