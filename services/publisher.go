package services

// EventPublisher pushes a named event to every live socket of each
// target user. Implemented by socket.EventRouter; delivery is
// best-effort and offline targets are skipped, so services never treat
// a publish as a precondition for success.
type EventPublisher interface {
	Publish(event string, targetUserIDs []string, payload interface{}) error
}
