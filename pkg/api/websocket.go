package api

type (
	// EventType identifies the kind of message sent to WebSocket clients
	EventType string

	// RunEvent carries a run snapshot to WebSocket clients
	RunEvent struct {
		Type      EventType `json:"type"`
		RunID     RunID     `json:"run_id"`
		Data      *RunState `json:"data"`
		Timestamp int64     `json:"timestamp"`
	}

	// SubscribeRequest is sent by clients to subscribe to run updates
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription configures which runs a WebSocket client receives.
	// An empty RunID subscribes to every run
	ClientSubscription struct {
		RunID RunID `json:"run_id,omitempty"`
	}
)

const (
	EventTypeSubscribed EventType = "subscribed"
	EventTypeRunUpdated EventType = "run_updated"
)
