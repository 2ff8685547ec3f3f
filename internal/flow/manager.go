package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/modubiz/ConsultFlow/internal/models"
)

// Default context manager configuration.
const (
	// DefaultContextTTL is how long an idle conversation is kept in memory.
	DefaultContextTTL = 2 * time.Hour
	// DefaultEvictionInterval is how often stale contexts are swept.
	DefaultEvictionInterval = 10 * time.Minute
)

// ContextManager owns all in-memory conversation contexts. Idle contexts are
// evicted after the TTL; crisis-protected conversations are never evicted.
type ContextManager struct {
	mu       sync.RWMutex
	contexts map[string]*ConversationContext
	ttl      time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewContextManager creates a manager and starts its background eviction
// loop. Call Stop to terminate the loop.
func NewContextManager(ttl time.Duration) *ContextManager {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	m := &ContextManager{
		contexts: make(map[string]*ConversationContext),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go m.evictionLoop(DefaultEvictionInterval)
	return m
}

// GetOrCreate returns the context for a conversation, creating it when absent.
func (m *ContextManager) GetOrCreate(userID, conversationID string, agent models.AgentType) *ConversationContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contexts[conversationID]; ok {
		return c
	}
	c := NewConversationContext(userID, conversationID, agent)
	m.contexts[conversationID] = c
	slog.Debug("ContextManager.GetOrCreate: context created", "conversationID", conversationID, "agent", agent)
	return c
}

// Get returns the context for a conversation when it exists.
func (m *ContextManager) Get(conversationID string) (*ConversationContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[conversationID]
	return c, ok
}

// Delete removes a conversation context.
func (m *ContextManager) Delete(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, conversationID)
	slog.Debug("ContextManager.Delete: context removed", "conversationID", conversationID)
}

// Range calls f for each live context. f must not call back into the manager.
func (m *ContextManager) Range(f func(*ConversationContext)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.contexts {
		f(c)
	}
}

// Len returns the number of live contexts.
func (m *ContextManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}

// Stop terminates the eviction loop.
func (m *ContextManager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *ContextManager) evictionLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

// evictStale drops contexts idle beyond the TTL. Conversations flagged for
// immediate intervention are kept regardless of age.
func (m *ContextManager) evictStale() {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.contexts {
		c.Lock()
		stale := c.LastActive.Before(cutoff) && !c.ImmediateIntervention
		c.Unlock()
		if stale {
			delete(m.contexts, id)
			slog.Debug("ContextManager.evictStale: context evicted", "conversationID", id)
		}
	}
}
