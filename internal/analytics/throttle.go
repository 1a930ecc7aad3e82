package analytics

import (
	"maps"
	"time"
)

// NotifyInterval is the minimum gap between two notifications for one key
const NotifyInterval = 7 * 24 * time.Hour

// NotificationThrottle remembers when each key was last notified. Due is a
// pure query, MarkNotified is the only mutation.
type NotificationThrottle struct {
	last map[string]time.Time
}

// NewNotificationThrottle returns a throttle with no history
func NewNotificationThrottle() *NotificationThrottle {
	return &NotificationThrottle{last: make(map[string]time.Time)}
}

// Due reports whether key may be notified at now
func (t *NotificationThrottle) Due(key string, now time.Time) bool {
	last, ok := t.last[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= NotifyInterval
}

// MarkNotified records now as the last notification time for key
func (t *NotificationThrottle) MarkNotified(key string, now time.Time) {
	t.last[key] = now
}

// LastNotified returns the last notification time for key, if any
func (t *NotificationThrottle) LastNotified(key string) (time.Time, bool) {
	last, ok := t.last[key]
	return last, ok
}

// Snapshot copies the notification times out for persistence
func (t *NotificationThrottle) Snapshot() map[string]time.Time {
	return maps.Clone(t.last)
}

// Restore merges persisted notification times, keeping the later time when a
// key is already known.
func (t *NotificationThrottle) Restore(last map[string]time.Time) {
	for key, at := range last {
		if cur, ok := t.last[key]; ok && cur.After(at) {
			continue
		}
		t.last[key] = at
	}
}
