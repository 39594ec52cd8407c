package models

// ✅ Connection Statuses
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// ✅ Message Types (text, image, file)
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// ✅ Server → client event names pushed over the socket
const (
	EventConnectionRequest  = "connectionRequest"
	EventConnectionResponse = "connectionResponse"
	EventConnectionAccepted = "connectionAccepted"
	EventConnectionRemoved  = "connectionRemoved"
	EventMessageReceived    = "message received"
	EventMessageDeleted     = "message deleted"
	EventTyping             = "typing"
	EventStopTyping         = "stop typing"
)

// ✅ Perspective values attached to connection list responses
const (
	PerspectiveSent     = "sent"
	PerspectiveReceived = "received"
)
