package socket

import (
	"encoding/json"
	"fmt"
	"log"
)

// EventRouter fans a domain event out to every live connection of each
// target user. Delivery is fire-and-forget, at-most-once: offline
// targets are skipped and clients reconcile over REST.
type EventRouter struct {
	Registry *SessionRegistry
}

// Publish pushes {event, payload} to each target's live handles. A
// missing target is expected, not an error; the only failure mode is a
// payload that cannot be serialized, which is a programming fault.
func (er *EventRouter) Publish(event string, targetUserIDs []string, payload interface{}) error {
	if _, err := json.Marshal(payload); err != nil {
		log.Printf("❌ Unserializable payload for event %q: %v", event, err)
		return fmt.Errorf("failed to serialize payload for event %q: %w", event, err)
	}

	for _, userID := range targetUserIDs {
		handles := er.Registry.LiveHandlesFor(userID)
		if len(handles) == 0 {
			continue
		}
		for _, handle := range handles {
			handle.Emit(event, payload)
		}
		log.Printf("📡 Event %q pushed to %d session(s) of %s", event, len(handles), userID)
	}
	return nil
}
