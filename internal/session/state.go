package session

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// State is a session lifecycle state.
type State string

const (
	StateIdle                State = "idle"
	StateConnecting          State = "connecting"
	StateOffering            State = "offering"
	StateAwaitingRemoteOffer State = "awaiting_remote_offer"
	StateNegotiated          State = "negotiated"
	StateConnected           State = "connected"
	StateReconnecting        State = "reconnecting"
	StateClosed              State = "closed"
)

const (
	evLoad         = "load"
	evOffer        = "offer"
	evRequestOffer = "request_offer"
	evNegotiated   = "negotiated"
	evConnect      = "connect"
	evRetry        = "retry"
	evFail         = "fail"
	evReconnect    = "reconnect"
	evClose        = "close"
)

func states(s ...State) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}

// newMachine builds the session state machine. onEnter is called after
// every transition with the previous and new state.
func newMachine(onEnter func(from, to State)) *fsm.FSM {
	attempting := states(StateOffering, StateAwaitingRemoteOffer)

	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evLoad, Src: states(StateIdle, StateClosed), Dst: string(StateConnecting)},
			{Name: evOffer, Src: states(StateConnecting), Dst: string(StateOffering)},
			{Name: evRequestOffer, Src: states(StateConnecting), Dst: string(StateAwaitingRemoteOffer)},
			{Name: evNegotiated, Src: attempting, Dst: string(StateNegotiated)},
			{Name: evConnect, Src: states(StateNegotiated), Dst: string(StateConnected)},
			{Name: evRetry, Src: attempting, Dst: string(StateConnecting)},
			{
				Name: evFail,
				Src: states(StateConnecting, StateOffering, StateAwaitingRemoteOffer,
					StateNegotiated, StateConnected),
				Dst: string(StateReconnecting),
			},
			{Name: evReconnect, Src: states(StateReconnecting), Dst: string(StateConnecting)},
			{
				Name: evClose,
				Src: states(StateIdle, StateConnecting, StateOffering, StateAwaitingRemoteOffer,
					StateNegotiated, StateConnected, StateReconnecting),
				Dst: string(StateClosed),
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(State(e.Src), State(e.Dst))
			},
		},
	)
}

// fire runs one transition. A transition to the current state is not an
// error.
func (s *Session) fire(event string) error {
	err := s.machine.Event(context.Background(), event)

	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	if err != nil {
		s.log.Debugf("transition %q from %s refused: %v", event, s.machine.Current(), err)
	}
	return err
}
