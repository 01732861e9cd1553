package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/whep-play/internal/events"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCollectorTracksEvents(t *testing.T) {
	c := New()

	c.ObserveNegotiation("offerer", "role_switch")
	c.ObserveNegotiation("answerer", "success")
	c.Notify(events.Event{Type: events.TypeStateChange, State: "connected"})
	c.Notify(events.Event{Type: events.TypeReconnecting})
	c.Notify(events.Event{Type: events.TypeReconnecting})
	c.Notify(events.Event{Type: events.TypeStalled})
	c.Notify(events.Event{Type: events.TypeRecovered})
	c.Notify(events.Event{Type: events.TypeFailed, CauseKind: "signaling"})
	c.Notify(events.Event{Type: events.TypeStats, Bitrate: 1500, BytesReceived: 2048})

	body := scrape(t, c.Handler())

	assert.Contains(t, body, `whep_negotiations_total{outcome="role_switch",role="offerer"} 1`)
	assert.Contains(t, body, `whep_negotiations_total{outcome="success",role="answerer"} 1`)
	assert.Contains(t, body, "whep_reconnects_total 2")
	assert.Contains(t, body, "whep_stalls_total 1")
	assert.Contains(t, body, "whep_recoveries_total 1")
	assert.Contains(t, body, `whep_failures_total{kind="signaling"} 1`)
	assert.Contains(t, body, "whep_inbound_bitrate_bits 1500")
	assert.Contains(t, body, "whep_inbound_bytes 2048")
	assert.Contains(t, body, `whep_session_state{state="connected"} 1`)
	assert.Contains(t, body, `whep_session_state{state="idle"} 0`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveNegotiation("offerer", "fatal")
		c.Notify(events.Event{Type: events.TypeStalled})
		c.Close()
	})
}

func TestCollectorServesMetrics(t *testing.T) {
	c := New()
	addr, err := c.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer c.Close()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `whep_session_state{state="idle"} 1`)
}
