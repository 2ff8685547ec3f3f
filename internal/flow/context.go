// Package flow implements the conversation engines for ConsultFlow.
//
// It holds per-conversation state, stage tracking, slot extraction, PHQ-9
// screening, crisis evaluation and the marketing and mental health engines
// that tie them together.
package flow

import (
	"sync"
	"time"

	"github.com/modubiz/ConsultFlow/internal/models"
)

// HistoryLimit caps the in-memory conversation history per conversation.
const HistoryLimit = 20

// Engagement levels derived from recent user behavior.
const (
	EngagementHigh = "high"
	EngagementMid  = "medium"
	EngagementLow  = "low"
)

// PHQ9State tracks an in-progress PHQ-9 screening within a conversation.
type PHQ9State struct {
	Active    bool      `json:"active"`
	Offered   bool      `json:"offered"`
	Completed bool      `json:"completed"`
	Index     int       `json:"index"` // next question to ask, 0-based
	Responses []int     `json:"responses"`
	StartedAt time.Time `json:"started_at"`
}

// ConversationContext is the mutable state of one conversation. Callers must
// hold the embedded mutex for the duration of a turn.
type ConversationContext struct {
	sync.Mutex

	UserID         string
	ConversationID string
	AgentType      models.AgentType
	Stage          models.Stage
	Slots          map[string]models.InfoSlot
	History        []models.ConversationMessage

	// Engagement tracking. ConsecutiveQuestions counts assistant turns in a
	// row that asked the user something; NegativeSignals counts dismissive
	// user replies.
	ConsecutiveQuestions int
	NegativeSignals      int
	Engagement           string

	AutoSaved bool

	// ContentPending holds a deliverable request deferred until
	// business_type and product are collected.
	ContentPending ContentType

	// Mental health state.
	Survey                PHQ9State
	PreSurveyStage        models.Stage
	CrisisLevel           models.CrisisLevel
	SuicideRisk           bool
	SelfHarmRisk          bool
	ImmediateIntervention bool

	CreatedAt  time.Time
	LastActive time.Time
}

// NewConversationContext creates a fresh context at the initial stage.
func NewConversationContext(userID, conversationID string, agent models.AgentType) *ConversationContext {
	now := time.Now()
	return &ConversationContext{
		UserID:         userID,
		ConversationID: conversationID,
		AgentType:      agent,
		Stage:          models.StageInitial,
		Slots:          make(map[string]models.InfoSlot),
		Engagement:     EngagementMid,
		CrisisLevel:    models.CrisisLevelNone,
		CreatedAt:      now,
		LastActive:     now,
	}
}

// UpsertSlot records a slot value, last write wins. Null-like values are
// rejected so they never erase collected information. Returns true when the
// value was stored.
func (c *ConversationContext) UpsertSlot(field, value string, source models.SlotSource, confidence float64) bool {
	if models.IsNullLike(value) {
		return false
	}
	c.Slots[field] = models.InfoSlot{
		Field:      field,
		Category:   models.CategoryForField(field),
		Value:      value,
		Source:     source,
		Confidence: confidence,
		UpdatedAt:  time.Now(),
	}
	return true
}

// SlotValue returns the stored value for a field, or "" when absent.
func (c *ConversationContext) SlotValue(field string) string {
	if slot, ok := c.Slots[field]; ok {
		return slot.Value
	}
	return ""
}

// CollectedInfo returns a field-to-value snapshot of all slots.
func (c *ConversationContext) CollectedInfo() map[string]string {
	out := make(map[string]string, len(c.Slots))
	for field, slot := range c.Slots {
		out[field] = slot.Value
	}
	return out
}

// AppendHistory records one turn and trims the history to HistoryLimit.
func (c *ConversationContext) AppendHistory(role, content string) {
	c.History = append(c.History, models.ConversationMessage{
		Role:      role,
		Content:   content,
		Stage:     c.Stage,
		Timestamp: time.Now(),
	})
	if len(c.History) > HistoryLimit {
		c.History = c.History[len(c.History)-HistoryLimit:]
	}
	c.LastActive = time.Now()
}

// UserTurnCount returns the number of user messages in the retained history.
func (c *ConversationContext) UserTurnCount() int {
	n := 0
	for _, m := range c.History {
		if m.Role == "user" {
			n++
		}
	}
	return n
}
