// Package events carries session notifications to observers.
//
// A session emits Events through a Notifier. The Hub fans them out to any
// number of subscribers, and Server streams them as JSON over WebSocket.
package events

import (
	"time"
)

// Type names a notification.
type Type string

const (
	TypeStreamTypeChange Type = "stream-type-change"
	TypeStateChange      Type = "state-change"
	TypeConnected        Type = "connected"
	TypeStalled          Type = "stalled"
	TypeRecovered        Type = "recovered"
	TypeReconnecting     Type = "reconnecting"
	TypeFailed           Type = "failed"
	TypeStats            Type = "stats"
)

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	Type    Type      `json:"type"`
	Session string    `json:"session"`
	Time    time.Time `json:"time"`

	StreamType string `json:"streamType,omitempty"`
	State      string `json:"state,omitempty"`
	From       string `json:"from,omitempty"`
	Role       string `json:"role,omitempty"`
	Media      string `json:"media,omitempty"`

	// Remaining is the reconnect budget left after a reconnect starts.
	Remaining int `json:"remaining,omitempty"`

	Cause     string `json:"cause,omitempty"`
	CauseKind string `json:"causeKind,omitempty"`

	BytesReceived uint64  `json:"bytesReceived,omitempty"`
	Bitrate       float64 `json:"bitrate,omitempty"`
}

// Notifier receives session notifications. Notify must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Multi returns a Notifier forwarding to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	list := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			list = append(list, n)
		}
	}
	return NotifierFunc(func(e Event) {
		for _, n := range list {
			n.Notify(e)
		}
	})
}

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(Event) {})
