// README: In-process fan-out for single-instance deployments and tests.
package notify

import (
	"context"
	"sync"

	"hmarket/internal/types"
)

const subscriberBuffer = 16

// MemoryNotifier fans notifications out to in-process subscribers. Slow
// consumers are skipped rather than blocking the sender.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs map[types.ID][]chan Notification
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[types.ID][]chan Notification)}
}

// Subscribe returns a channel of notifications for userID and a cancel func.
func (m *MemoryNotifier) Subscribe(userID types.ID) (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)
	m.mu.Lock()
	m.subs[userID] = append(m.subs[userID], ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		chans := m.subs[userID]
		for i, c := range chans {
			if c == ch {
				m.subs[userID] = append(chans[:i], chans[i+1:]...)
				close(c)
				return
			}
		}
	}
	return ch, cancel
}

func (m *MemoryNotifier) Send(_ context.Context, userID types.ID, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Sends stay under the lock: cancel closes channels under the same lock,
	// so a send can never hit a closed channel. The sends are non-blocking,
	// so the lock is never held waiting on a consumer.
	for _, ch := range m.subs[userID] {
		select {
		case ch <- n:
		default:
			// subscriber queue full, drop
		}
	}
	return nil
}
