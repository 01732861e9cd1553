package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Playback counters
// ──────────────────────────────────────────────────────────────────────────────

// Stats counts media drained by a headless player.
type Stats struct {
	Tracks      atomic.Int64 // tracks attached since start
	PacketsRecv atomic.Int64 // RTP packets read from remote tracks
	BytesRecv   atomic.Int64 // RTP payload bytes read from remote tracks
}

func (s *Stats) AddTrack()     { s.Tracks.Add(1) }
func (s *Stats) AddRecv(n int) { s.PacketsRecv.Add(1); s.BytesRecv.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs playback statistics
// every interval. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, stats *Stats, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prevBytes, prevPackets int64
		for {
			select {
			case <-ticker.C:
				bytes := stats.BytesRecv.Load()
				packets := stats.PacketsRecv.Load()

				rate := float64(bytes-prevBytes) / interval.Seconds()
				pps := float64(packets-prevPackets) / interval.Seconds()

				if bytes > prevBytes {
					pterm.DefaultLogger.Info(formatStats(rate, pps, stats.Tracks.Load()))
				}

				prevBytes = bytes
				prevPackets = packets

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func FormatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(rate, pps float64, tracks int64) string {
	return fmt.Sprintf("In: %s/s | %6.1f pkt/s | Tracks: %d",
		FormatBytes(rate),
		pps,
		tracks,
	)
}
