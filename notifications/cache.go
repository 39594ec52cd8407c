package notifications

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"skillxchange_server/models"
)

// Cache is the per-session client-side notification store. It absorbs
// pushed socket events and REST snapshots into one list deduplicated by
// record id, so a fact reported over both paths yields one
// notification. Read ("seen at all") and Cleared ("dismissed by the
// user") are independent flags; Cleared is never set automatically.
type Cache struct {
	mu      sync.Mutex
	records map[string]*models.NotificationRecord
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[string]*models.NotificationRecord)}
}

// ApplyEvent upserts a pushed event by id. A record that already exists
// keeps its local read/cleared flags; only the payload and timestamp
// refresh.
func (c *Cache) ApplyEvent(record models.NotificationRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(record)
}

// MergeSnapshot folds a REST-fetched snapshot into the cache, merging
// by id rather than replacing wholesale. Records only present locally
// survive; read/cleared flags already set locally are preserved.
func (c *Cache) MergeSnapshot(records []models.NotificationRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range records {
		c.upsertLocked(record)
	}
}

// Refresh re-validates the cache against an authoritative fetch. A
// failed fetch leaves the existing records untouched: stale but
// available beats empty.
func (c *Cache) Refresh(fetch func() ([]models.NotificationRecord, error)) error {
	records, err := fetch()
	if err != nil {
		log.Printf("⚠️ Notification refresh failed, keeping stale cache: %v", err)
		return err
	}
	c.MergeSnapshot(records)
	return nil
}

// Poll re-validates the cache every interval until ctx is cancelled,
// so a session that missed push events converges anyway. Individual
// fetch failures are tolerated; the next tick retries.
func (c *Cache) Poll(ctx context.Context, interval time.Duration, fetch func() ([]models.NotificationRecord, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(fetch)
		}
	}
}

// MarkAllRead transitions every unread record to read in one batch,
// the "notification panel opened" action. Returns how many flipped.
func (c *Cache) MarkAllRead() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	flipped := 0
	for _, record := range c.records {
		if !record.Read {
			record.Read = true
			flipped++
		}
	}
	return flipped
}

// Clear dismisses a single record by explicit user command.
func (c *Cache) Clear(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.records[id]
	if !ok {
		return false
	}
	record.Cleared = true
	return true
}

// ClearRead dismisses every already-read record, the "clear all"
// user command. Unread records stay.
func (c *Cache) ClearRead() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := 0
	for _, record := range c.records {
		if record.Read && !record.Cleared {
			record.Cleared = true
			cleared++
		}
	}
	return cleared
}

// UnreadCount counts records not yet read (cleared or not).
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, record := range c.records {
		if !record.Read {
			count++
		}
	}
	return count
}

// Records returns the visible (non-cleared) notifications, newest
// first.
func (c *Cache) Records() []models.NotificationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.NotificationRecord, 0, len(c.records))
	for _, record := range c.records {
		if record.Cleared {
			continue
		}
		out = append(out, *record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// Len reports the number of records held, cleared included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *Cache) upsertLocked(record models.NotificationRecord) {
	if existing, ok := c.records[record.ID]; ok {
		existing.Payload = record.Payload
		if record.Timestamp != "" {
			existing.Timestamp = record.Timestamp
		}
		// read/cleared are local state; an incoming duplicate never
		// resurrects an already-seen notification.
		existing.Read = existing.Read || record.Read
		existing.Cleared = existing.Cleared || record.Cleared
		return
	}
	copied := record
	c.records[record.ID] = &copied
}
