package ice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGatherer struct {
	mu    sync.Mutex
	state webrtc.ICEGatheringState
	fn    func(webrtc.ICEGatheringState)
}

func (g *fakeGatherer) ICEGatheringState() webrtc.ICEGatheringState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *fakeGatherer) OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState)) {
	g.mu.Lock()
	g.fn = fn
	g.mu.Unlock()
}

func (g *fakeGatherer) set(state webrtc.ICEGatheringState) {
	g.mu.Lock()
	g.state = state
	fn := g.fn
	g.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func TestGatheringCompleteBeatsTimer(t *testing.T) {
	g := &fakeGatherer{state: webrtc.ICEGatheringStateGathering}
	a := New(time.Hour).Watch(g)

	g.set(webrtc.ICEGatheringStateComplete)

	reason, err := a.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonGathered, reason)

	// The timer must be stopped: a late timeout cannot change the outcome.
	assert.False(t, a.timer.Stop(), "timer should already be stopped")
}

func TestTimeoutBeatsGathering(t *testing.T) {
	g := &fakeGatherer{state: webrtc.ICEGatheringStateGathering}
	a := New(20 * time.Millisecond).Watch(g)

	reason, err := a.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonTimeout, reason)

	// Gathering finishing later is ignored.
	g.set(webrtc.ICEGatheringStateComplete)
	assert.Equal(t, ReasonTimeout, a.Reason())
}

func TestAlreadyCompleteSettlesImmediately(t *testing.T) {
	g := &fakeGatherer{state: webrtc.ICEGatheringStateComplete}
	a := New(time.Hour).Watch(g)

	select {
	case <-a.Ready():
	case <-time.After(time.Second):
		t.Fatal("attempt did not settle")
	}
	assert.Equal(t, ReasonGathered, a.Reason())
}

func TestReadyFiresExactlyOnce(t *testing.T) {
	a := New(5 * time.Millisecond).Arm()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.GatheringComplete()
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	// A second close would have panicked; the reason is fixed by the first.
	assert.Equal(t, ReasonGathered, a.Reason())
}

func TestWaitContextCancelled(t *testing.T) {
	a := New(time.Hour).Arm()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := a.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCancelled, reason)
	assert.Equal(t, ReasonCancelled, a.Reason())
}

func TestNewDefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New(0).Timeout)
	assert.Equal(t, "timeout", ReasonTimeout.String())
}
