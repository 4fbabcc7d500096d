// Package timeline holds the ordered conversation timeline.
package timeline

import (
	"fmt"
	"sync"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// Store is the append-only-with-replacement message timeline. Messages
// keep their position once appended; only their mutable fields are
// rewritten through ReplaceByID. Safe for concurrent access.
type Store struct {
	mu    sync.RWMutex
	msgs  []domain.Message
	index map[domain.MessageID]int
	last  domain.MessageID
	log   *logger.Logger
}

// NewStore creates an empty timeline.
func NewStore(log *logger.Logger) *Store {
	return &Store{
		index: make(map[domain.MessageID]int),
		log:   log,
	}
}

// NextID returns a fresh ID, greater than any ID handed out or appended
// so far.
func (s *Store) NextID() domain.MessageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Append adds a message to the end of the timeline. It fails only on
// malformed input: a zero or duplicate ID, an unknown author, or empty
// text.
func (s *Store) Append(msg domain.Message) error {
	if msg.ID <= 0 || !msg.Author.Valid() || msg.Text == "" {
		return fmt.Errorf("timeline: append id=%d author=%s: %w", msg.ID, msg.Author, domain.ErrInvalidMessage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.index[msg.ID]; dup {
		return fmt.Errorf("timeline: duplicate id %d: %w", msg.ID, domain.ErrInvalidMessage)
	}
	s.index[msg.ID] = len(s.msgs)
	s.msgs = append(s.msgs, msg)
	if msg.ID > s.last {
		s.last = msg.ID
	}

	s.log.Debug("appended message %d (author=%s, status=%s)", msg.ID, msg.Author, msg.Status)
	return nil
}

// ReplaceByID applies update to the mutable fields of the message with
// the given id. The ID and author are restored after update runs, so
// the message keeps its identity and position. Returns false, and does
// nothing, if no such message exists.
func (s *Store) ReplaceByID(id domain.MessageID, update func(*domain.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		s.log.Debug("replace: message %d not found", id)
		return false
	}

	m := s.msgs[i]
	update(&m)
	m.ID = s.msgs[i].ID
	m.Author = s.msgs[i].Author
	s.msgs[i] = m
	return true
}

// Resolve rewrites a pending message with its outcome. It succeeds only
// once per message: resolving a missing or already-resolved message
// returns false and leaves the timeline untouched.
func (s *Store) Resolve(id domain.MessageID, text string, status domain.Status) bool {
	if status == domain.StatusPending {
		return false
	}

	resolved := false
	found := s.ReplaceByID(id, func(m *domain.Message) {
		if m.Status != domain.StatusPending {
			return
		}
		m.Text = text
		m.Status = status
		resolved = true
	})
	if found && !resolved {
		s.log.Warn("resolve: message %d is not pending", id)
	}
	return resolved
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id domain.MessageID) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Message{}, domain.ErrNotFound
	}
	return s.msgs[i], nil
}

// Snapshot returns a copy of the timeline in conversation order.
func (s *Store) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len returns the number of messages in the timeline.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}
