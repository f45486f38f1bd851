package router

import (
	"sync"

	"orc/pkg/protocol"
)

// mailbox is one worker's FIFO queue of pending messages plus the
// unread-reminder flag for the current backlog episode. Each mailbox has
// its own lock so that unrelated workers' deliveries never serialize on
// each other.
type mailbox struct {
	mu           sync.Mutex
	queue        []protocol.Message
	reminderSent bool
}

// append adds a message and resets the reminder flag: a new arrival starts
// a fresh backlog episode.
func (m *mailbox) append(msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, msg)
	m.reminderSent = false
}

// markDelivered flips Delivered on the queued message with the given id.
// A message already drained by the recipient is simply gone — nothing to
// mark, and nothing to remind about either.
func (m *mailbox) markDelivered(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.queue {
		if m.queue[i].ID == messageID {
			m.queue[i].Delivered = true
			return
		}
	}
}

// drain atomically returns and clears all pending messages and resets the
// reminder flag.
func (m *mailbox) drain() []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	m.reminderSent = false
	return out
}

// claimReminder reports whether a reminder should fire now: the queue holds
// at least one message whose initial push never succeeded and no reminder
// has been sent for this episode. When it returns true the flag is set in
// the same critical section, guaranteeing at most one reminder per
// idle-episode-with-backlog no matter how many polls observe IDLE.
func (m *mailbox) claimReminder() (pending int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reminderSent {
		return 0, false
	}
	for _, msg := range m.queue {
		if !msg.Delivered {
			pending++
		}
	}
	if pending == 0 {
		return 0, false
	}
	m.reminderSent = true
	return pending, true
}

// size returns the number of queued messages.
func (m *mailbox) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// MailboxStore is an arena of per-worker mailboxes keyed by folded worker
// id. The store mutex guards only map membership; entry mutation happens
// under each mailbox's own lock.
type MailboxStore struct {
	mu    sync.RWMutex
	boxes map[string]*mailbox
}

// NewMailboxStore creates an empty MailboxStore.
func NewMailboxStore() *MailboxStore {
	return &MailboxStore{boxes: make(map[string]*mailbox)}
}

// box returns the mailbox for id, creating it on first use.
func (s *MailboxStore) box(id string) *mailbox {
	key := fold(id)

	s.mu.RLock()
	b, ok := s.boxes[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.boxes[key]; ok {
		return b
	}
	b = &mailbox{}
	s.boxes[key] = b
	return b
}

// remove drops a worker's mailbox entirely.
func (s *MailboxStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boxes, fold(id))
}

// Pending returns the number of messages queued for the worker.
func (s *MailboxStore) Pending(id string) int {
	return s.box(id).size()
}
