package store

import (
	"sync"
	"time"

	"forgeboard/models"
)

// Notifier holds at most one ephemeral notification. Showing a new one replaces the
// current one and cancels its pending dismissal.
type Notifier struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	current *models.Notification
	timer   *time.Timer
	seq     uint64
}

func NewNotifier(ttl time.Duration, now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{ttl: ttl, now: now}
}

// Show replaces the active notification and schedules its dismissal.
func (n *Notifier) Show(kind models.NotificationKind, messageID string, data map[string]string) models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.seq++
	seq := n.seq
	note := models.Notification{Kind: kind, MessageID: messageID, Data: data, Created: n.now()}
	n.current = &note

	// A timer that already fired but is waiting on the lock must not clear its successor.
	n.timer = time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.seq == seq {
			n.current = nil
			n.timer = nil
		}
	})
	return note
}

// Current returns the active notification, if any.
func (n *Notifier) Current() (models.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return models.Notification{}, false
	}
	return *n.current, true
}

// Dismiss clears the active notification immediately.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.seq++
	n.current = nil
}

// Close stops any pending timer. The notifier stays usable.
func (n *Notifier) Close() {
	n.Dismiss()
}
