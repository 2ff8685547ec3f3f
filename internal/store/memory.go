// Package store provides storage backends for ConsultFlow.
//
// This file implements an in-memory store for tests and development.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/modubiz/ConsultFlow/internal/models"
)

// InMemoryStore keeps all records in process memory. It is safe for
// concurrent use and loses everything on restart.
type InMemoryStore struct {
	mu        sync.RWMutex
	messages  map[string][]models.Message // keyed by conversation ID
	projects  []models.Project
	documents []models.ProjectDocument
	phq9      map[string]models.PHQ9Result // keyed by user ID
	nextID    int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages: make(map[string][]models.Message),
		phq9:     make(map[string]models.PHQ9Result),
		nextID:   1,
	}
}

// AddMessage persists one conversation turn.
func (s *InMemoryStore) AddMessage(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	slog.Debug("InMemoryStore.AddMessage: message stored", "conversationID", msg.ConversationID, "role", msg.Role)
	return nil
}

// GetRecentMessages returns up to limit messages for a conversation, oldest first.
func (s *InMemoryStore) GetRecentMessages(conversationID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// PruneMessagesBefore deletes messages created before cutoff.
func (s *InMemoryStore) PruneMessagesBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for convID, msgs := range s.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(s.messages, convID)
		} else {
			s.messages[convID] = kept
		}
	}
	return removed, nil
}

// CreateProjectWithDocument inserts a project and its document atomically.
func (s *InMemoryStore) CreateProjectWithDocument(p models.Project, doc models.ProjectDocument) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects {
		if existing.ConversationID == p.ConversationID && existing.Category == p.Category {
			slog.Debug("InMemoryStore.CreateProjectWithDocument: duplicate project rejected", "conversationID", p.ConversationID, "category", p.Category)
			return 0, ErrProjectExists
		}
	}
	p.ID = s.nextID
	s.nextID++
	doc.ID = s.nextID
	s.nextID++
	doc.ProjectID = p.ID
	s.projects = append(s.projects, p)
	s.documents = append(s.documents, doc)
	slog.Debug("InMemoryStore.CreateProjectWithDocument: project stored", "projectID", p.ID, "category", p.Category)
	return p.ID, nil
}

// GetProjectsByUser returns all projects saved for a user, newest first.
func (s *InMemoryStore) GetProjectsByUser(userID string) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SavePHQ9Result stores a completed screening for a user.
func (s *InMemoryStore) SavePHQ9Result(r models.PHQ9Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phq9[r.UserID] = r
	slog.Debug("InMemoryStore.SavePHQ9Result: result stored", "userID", r.UserID, "score", r.TotalScore)
	return nil
}

// GetLatestPHQ9Result returns the most recent screening for a user.
func (s *InMemoryStore) GetLatestPHQ9Result(userID string) (*models.PHQ9Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.phq9[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
