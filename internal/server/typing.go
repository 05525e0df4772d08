package server

import (
	"sync"
	"time"
)

// typingTimers holds one outstanding debounce timer per conversation for a
// single connection. Re-arming replaces the previous timer. Cancellation is
// generation-checked: a callback that lost the race with Cancel or a re-arm
// finds a stale generation and never fires.
type typingTimers struct {
	mu       sync.Mutex
	debounce time.Duration
	gen      uint64
	timers   map[string]*typingTimer
}

type typingTimer struct {
	timer *time.Timer
	gen   uint64
}

func newTypingTimers(debounce time.Duration) *typingTimers {
	return &typingTimers{
		debounce: debounce,
		timers:   make(map[string]*typingTimer),
	}
}

// Touch arms the conversation's debounce timer, replacing any outstanding
// one. fire runs once the window elapses with no further Touch.
func (tt *typingTimers) Touch(conversationId string, fire func()) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if cur, ok := tt.timers[conversationId]; ok {
		cur.timer.Stop()
	}

	tt.gen++
	gen := tt.gen
	t := &typingTimer{gen: gen}
	t.timer = time.AfterFunc(tt.debounce, func() {
		if tt.claim(conversationId, gen) {
			fire()
		}
	})
	tt.timers[conversationId] = t
}

// claim removes the conversation's timer entry iff it still belongs to
// generation gen.
func (tt *typingTimers) claim(conversationId string, gen uint64) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	cur, ok := tt.timers[conversationId]
	if !ok || cur.gen != gen {
		return false
	}

	delete(tt.timers, conversationId)
	return true
}

// Cancel stops the conversation's outstanding timer. It reports whether a
// timer was pending; cancelling an already-fired timer is a harmless no-op.
func (tt *typingTimers) Cancel(conversationId string) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	cur, ok := tt.timers[conversationId]
	if !ok {
		return false
	}

	cur.timer.Stop()
	delete(tt.timers, conversationId)
	return true
}

func (tt *typingTimers) CancelAll() {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	for id, cur := range tt.timers {
		cur.timer.Stop()
		delete(tt.timers, id)
	}
}
