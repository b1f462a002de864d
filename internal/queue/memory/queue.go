// Package memory provides the in-process task queue shared by harvest workers.
package memory

import (
	"sync"

	"github.com/JakeFAU/hn-harvester/internal/hn"
)

// Stack is a one-shot, last-in-first-out queue of identifiers. It is loaded
// once at construction and only drained afterwards.
type Stack struct {
	mu  sync.Mutex
	ids []hn.ID
}

// NewStack loads ids in listing order so the last listed id is popped first.
func NewStack(ids []hn.ID) *Stack {
	return &Stack{ids: append([]hn.ID(nil), ids...)}
}

// Pop removes and returns the top identifier. It reports false once the
// stack is empty and never waits for new items.
func (s *Stack) Pop() (hn.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.ids)
	if n == 0 {
		return 0, false
	}
	id := s.ids[n-1]
	s.ids = s.ids[:n-1]
	return id, true
}

// Len reports how many identifiers remain.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
