package models

import "time"

// ProjectCategory classifies an auto-saved project.
type ProjectCategory string

const (
	// CategoryMarketingStrategy is the category for saved marketing strategies.
	CategoryMarketingStrategy ProjectCategory = "marketing_strategy"
	// CategoryBusinessPlan is the category for saved business plans.
	CategoryBusinessPlan ProjectCategory = "business_plan"
)

// Project is one auto-saved consultation outcome. At most one project is
// saved per conversation and category.
type Project struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	Category       ProjectCategory `json:"category"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ProjectDocument is the markdown document attached to a project.
type ProjectDocument struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	FileName  string    `json:"file_name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectSaveResult reports the outcome of an auto-save attempt.
type ProjectSaveResult struct {
	Saved     bool   `json:"saved"`
	ProjectID int64  `json:"project_id,omitempty"`
	Title     string `json:"title,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Notice    string `json:"notice,omitempty"`
}
