// Package models defines the core data structures for ConsultFlow.
//
// It includes conversation, slot, survey and project types shared across the
// flow engines, the store backends and the HTTP API.
package models

import (
	"errors"
	"strings"
	"time"
)

// AgentType identifies which consulting agent owns a conversation.
type AgentType string

const (
	// AgentMarketing is the marketing consultation agent.
	AgentMarketing AgentType = "marketing"
	// AgentMentalHealth is the mental health counseling agent.
	AgentMentalHealth AgentType = "mental_health"
	// AgentBusinessPlanning is the business planning agent.
	AgentBusinessPlanning AgentType = "business_planning"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a user message
	MaxMessageLength = 4096
	// MaxUserIDLength defines the maximum allowed length for user identifiers
	MaxUserIDLength = 64
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID          = errors.New("user_id cannot be empty")
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrMessageTooLong       = errors.New("message exceeds maximum length")
	ErrUserIDTooLong        = errors.New("user_id exceeds maximum length")
	ErrEmptyConversationID  = errors.New("conversation_id cannot be empty")
	ErrInvalidSurveyAnswer  = errors.New("survey answer must be 0, 1, 2 or 3")
	ErrSurveyNotActive      = errors.New("no survey is currently active")
	ErrSurveyAlreadyActive  = errors.New("a survey is already in progress")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationLocked   = errors.New("conversation is crisis-protected and cannot be reset")
)

// Message represents one persisted turn of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // "user" or "assistant"
	AgentType      AgentType `json:"agent_type"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationMessage is one entry of the in-memory conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Stage     Stage     `json:"stage,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryRequest is the payload for the agent query endpoints.
type QueryRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// Validate performs validation on a QueryRequest.
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if len(r.UserID) > MaxUserIDLength {
		return ErrUserIDTooLong
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ResetRequest is the payload for the conversation reset endpoints.
type ResetRequest struct {
	ConversationID string `json:"conversation_id"`
}

// Validate performs validation on a ResetRequest.
func (r *ResetRequest) Validate() error {
	if strings.TrimSpace(r.ConversationID) == "" {
		return ErrEmptyConversationID
	}
	return nil
}

// SurveyStartRequest is the payload for starting a PHQ-9 survey.
type SurveyStartRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// Validate performs validation on a SurveyStartRequest.
func (r *SurveyStartRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.ConversationID) == "" {
		return ErrEmptyConversationID
	}
	return nil
}

// SurveyAnswerRequest is the payload for submitting one PHQ-9 answer.
type SurveyAnswerRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Value          int    `json:"value"`
}

// Validate performs validation on a SurveyAnswerRequest.
func (r *SurveyAnswerRequest) Validate() error {
	if strings.TrimSpace(r.ConversationID) == "" {
		return ErrEmptyConversationID
	}
	if r.Value < 0 || r.Value > 3 {
		return ErrInvalidSurveyAnswer
	}
	return nil
}

// QueryResult is the conversational payload returned by the flow engines to
// the HTTP layer for a single turn.
type QueryResult struct {
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	Answer         string            `json:"answer"`
	Stage          Stage             `json:"stage"`
	CompletionRate float64           `json:"completion_rate"`
	CollectedInfo  map[string]string `json:"collected_info,omitempty"`
	MissingInfo    []string          `json:"missing_info,omitempty"`
	CanProceed     bool              `json:"can_proceed"`
	Engagement     string            `json:"user_engagement,omitempty"`
	AutoSaved      bool              `json:"auto_saved,omitempty"`

	// Mental health specific fields
	RiskLevel          string `json:"risk_level,omitempty"`
	Persona            string `json:"recommended_persona,omitempty"`
	SuicideRisk        bool   `json:"suicide_risk,omitempty"`
	CrisisIntervention bool   `json:"immediate_intervention_needed,omitempty"`
	SurveyActive       bool   `json:"phq9_active,omitempty"`
	SurveyCompleted    bool   `json:"phq9_completed,omitempty"`
	SurveyScore        *int   `json:"phq9_score,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
