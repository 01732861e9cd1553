package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsOverridesDefaults(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	err := fs.Parse([]string{
		"--url", "example.com/whep/live",
		"--token", "secret",
		"--ice", "stun:a.example:3478,turn:b.example:3478",
		"--ice-user", "u", "--ice-pass", "p",
		"--reconnect-attempts", "5",
		"--ice-timeout", "500ms",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.com/whep/live", cfg.URL)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, 5, cfg.ReconnectAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.ICEGatherTimeout)
	assert.Equal(t, DefaultStatsInterval, cfg.StatsInterval)

	servers := cfg.WebRTCICEServers()
	require.Len(t, servers, 2)
	assert.Empty(t, servers[0].Username)
	assert.Equal(t, "u", servers[1].Username)
	assert.Equal(t, "p", servers[1].Credential)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults with url", mutate: func(c *Config) {}},
		{name: "missing url", mutate: func(c *Config) { c.URL = "" }, wantErr: true},
		{name: "bad scheme", mutate: func(c *Config) { c.URL = "ftp://example.com/whep" }, wantErr: true},
		{name: "bad preload", mutate: func(c *Config) { c.Preload = "eager" }, wantErr: true},
		{name: "negative attempts", mutate: func(c *Config) { c.ReconnectAttempts = -1 }, wantErr: true},
		{name: "zero ice timeout", mutate: func(c *Config) { c.ICEGatherTimeout = 0 }, wantErr: true},
		{name: "threshold below interval", mutate: func(c *Config) { c.StallThreshold = time.Second }, wantErr: true},
		{name: "bad ice server", mutate: func(c *Config) { c.ICEServers = []string{"example.com"} }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.URL = "http://127.0.0.1:8080/whep"
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
