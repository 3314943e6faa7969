// Package chat derives per-counterparty conversation views from the flat
// message collection fed by the REST history fetch and the live connection,
// and implements optimistic sending.
package chat

import (
	"sync"

	"github.com/pashusagar/pashusagar-cli/pkg/logger"
	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

// Store holds the flat message collection. All mutation goes through Ingest,
// Replace, and SetSendState; merges are idempotent and deduplicate by id, so
// duplicate delivery over the REST and live paths collapses to one record.
type Store struct {
	mu    sync.Mutex
	order []types.ID
	byID  map[types.ID]types.Message
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{byID: make(map[types.ID]types.Message)}
}

// Ingest merges a batch of messages. A message whose id already exists
// replaces the stored record in place (keeping its insertion slot); faulty
// records without an id are skipped with a warning, never aborting the batch.
func (s *Store) Ingest(msgs ...types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range msgs {
		if msg.ID == "" {
			logger.Warnf("chat: skipping message record without id (content %q)", preview(msg.Content))
			continue
		}
		if _, exists := s.byID[msg.ID]; !exists {
			s.order = append(s.order, msg.ID)
		}
		s.byID[msg.ID] = msg
	}
}

// Replace swaps the record stored under oldID for msg, which may carry a
// different id. This is the temp-id reconciliation path: the optimistic local
// echo is replaced by the server-confirmed record. When the confirmed record
// already arrived over the live connection, the temporary one is simply
// dropped.
func (s *Store) Replace(oldID types.ID, msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		logger.Warnf("chat: refusing to replace %s with a record without id", oldID)
		return
	}

	slot := -1
	for i, id := range s.order {
		if id == oldID {
			slot = i
			break
		}
	}
	if slot < 0 {
		// Nothing to reconcile; treat as a plain ingest.
		if _, exists := s.byID[msg.ID]; !exists {
			s.order = append(s.order, msg.ID)
		}
		s.byID[msg.ID] = msg
		return
	}

	delete(s.byID, oldID)
	if _, exists := s.byID[msg.ID]; exists && msg.ID != oldID {
		// Server echo already present: drop the temporary slot.
		s.order = append(s.order[:slot], s.order[slot+1:]...)
	} else {
		s.order[slot] = msg.ID
	}
	s.byID[msg.ID] = msg
}

// SetSendState updates the transient delivery tag of a stored message.
func (s *Store) SetSendState(id types.ID, state types.SendState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return false
	}
	msg.SendState = state
	s.byID[id] = msg
	return true
}

// Snapshot returns all messages in insertion order.
func (s *Store) Snapshot() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func preview(content string) string {
	const max = 24
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}
