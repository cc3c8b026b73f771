package types

// Realtime change-stream topics published by the platform.
const (
	TopicAuthStateChanged = "auth.state_changed"
	TopicRewardUpdated    = "rewards.updated"
	TopicNotification     = "notifications.created"
)

type RealtimeEvent struct {
	Topic   string                 `json:"topic"`
	Payload map[string]interface{} `json:"payload"`
}

type RealtimeHandler func(event *RealtimeEvent)

// RealtimeManager maintains the websocket subscription to the platform
// change stream and fans events out to registered handlers.
type RealtimeManager interface {
	LifecycleManager
	Subscribe(topic string, handler RealtimeHandler) error
	Unsubscribe(topic string)
}
