package models

import "encoding/json"

// ✅ Notification record types mirrored in the client-side cache
const (
	NotificationConnectionRequest  = "connectionRequest"
	NotificationConnectionResponse = "connectionResponse"
	NotificationConnectionRemoved  = "connectionRemoved"
	NotificationMessage            = "message"
)

// NotificationRecord is the client-side cache entry for one pushed or
// fetched event. ID mirrors the triggering Connection or Message id and
// is the deduplication key. Read means "seen at all"; Cleared means
// "dismissed by user action" — the two flags are independent.
type NotificationRecord struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
	Read      bool            `json:"read"`
	Cleared   bool            `json:"cleared"`
}
