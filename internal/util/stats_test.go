package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}
	for _, tt := range tests {
		got := FormatBytes(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Len(t, got, 8)
	}
}

func TestStatsCounters(t *testing.T) {
	var s Stats
	s.AddTrack()
	s.AddRecv(100)
	s.AddRecv(20)

	assert.Equal(t, int64(1), s.Tracks.Load())
	assert.Equal(t, int64(2), s.PacketsRecv.Load())
	assert.Equal(t, int64(120), s.BytesRecv.Load())
	assert.Equal(t, "In:  1.0 KiB/s |   10.0 pkt/s | Tracks: 1", formatStats(1024, 10, 1))
}
