package models

// SurveyStatus reports PHQ-9 progress within a conversation.
type SurveyStatus struct {
	Active        bool `json:"active"`
	Offered       bool `json:"offered"`
	Completed     bool `json:"completed"`
	QuestionIndex int  `json:"question_index"`
	QuestionTotal int  `json:"question_total"`
	Answered      int  `json:"answered"`

	// Question and Options are set while a survey is active.
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// ConversationStatus is the snapshot returned by the status endpoints.
type ConversationStatus struct {
	ConversationID    string            `json:"conversation_id"`
	UserID            string            `json:"user_id"`
	AgentType         AgentType         `json:"agent_type"`
	Stage             Stage             `json:"stage"`
	CompletionRate    float64           `json:"completion_rate"`
	OverallCompletion float64           `json:"overall_completion"`
	CollectedInfo     map[string]string `json:"collected_info,omitempty"`
	MissingInfo       []string          `json:"missing_info,omitempty"`
	Engagement        string            `json:"user_engagement,omitempty"`
	AutoSaved         bool              `json:"auto_saved"`

	// Mental health fields.
	CrisisLevel           string        `json:"crisis_level,omitempty"`
	SuicideRisk           bool          `json:"suicide_risk,omitempty"`
	ImmediateIntervention bool          `json:"immediate_intervention_needed,omitempty"`
	Survey                *SurveyStatus `json:"phq9,omitempty"`
}

// EngineStats summarizes an engine's live conversations for the aggregate
// status endpoint.
type EngineStats struct {
	ActiveConversations int `json:"active_conversations"`
	CrisisConversations int `json:"crisis_conversations,omitempty"`
	ActiveSurveys       int `json:"active_surveys,omitempty"`
}
