package app

import (
	"sync"
	"time"

	"quiz-mastery-service/internal/domain"
)

const (
	EventLedger         = "ledger"
	EventThemeCompleted = "themeCompleted"
)

// Event is pushed to a user's subscribers after a committed write.
type Event struct {
	Type        string                  `json:"type"`
	UserID      string                  `json:"userId"`
	QuizID      string                  `json:"quizId,omitempty"`
	StarBalance int                     `json:"starBalance"`
	Ledger      *domain.Ledger          `json:"ledger,omitempty"`
	Theme       *domain.ThemeCompletion `json:"theme,omitempty"`
	At          time.Time               `json:"at"`
}

// Feed fans out events per user to in-process subscribers.
type Feed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan Event]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel of events for userID.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[userID]
	if !ok {
		subs = make(map[chan Event]struct{})
		f.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[userID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of ev.UserID without blocking.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[ev.UserID] {
		select {
		case ch <- ev:
		default:
			// slow consumer: drop the oldest event to make room
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports how many channels are open for userID.
func (f *Feed) Subscribers(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[userID])
}
