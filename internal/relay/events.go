package relay

// Inbound event discriminants sent by clients.
const (
	EventQuestion = "question"
	EventTyping   = "typing"
)

// Outbound event discriminants pushed to subscribers.
const (
	EventMessages     = "messages"
	EventJoining      = "joining"
	EventNotification = "notification"
)

// InboundEvent is what clients send over an open connection.
type InboundEvent struct {
	Type string      `json:"type"`
	Data InboundData `json:"data"`
}

type InboundData struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// OutboundEvent is what the relay pushes to subscribers.
type OutboundEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}
