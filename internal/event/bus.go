// Package event fans progress changes out to in-process subscribers.
package event

import (
	"sync"
	"time"
)

type Type string

const (
	// ProgressChanged follows any write that changes completion, badge or streak data.
	ProgressChanged   Type = "progress_changed"
	StreakChanged     Type = "streak_changed"
	MilestoneAchieved Type = "milestone_achieved"
	TasksChanged      Type = "tasks_changed"
)

type Event struct {
	Type   Type
	UserID uint
	Date   string
	At     time.Time

	// set for StreakChanged
	Streak int
	// set for MilestoneAchieved
	MilestoneDays  int
	MilestoneName  string
	MilestoneEmoji string
}

// Bus delivers every published event to all subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Publish never blocks; a subscriber that is behind misses the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	b.mu.RUnlock()
}

// Subscribe returns a buffered channel that receives all new events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
