package models

// IntentClassification is the structured outcome of classifying one user
// message. Every field is always populated; parse failures fall back to a
// safe default rather than an empty struct.
type IntentClassification struct {
	Intent     string `json:"intent"`
	NextAction string `json:"next_action"`
	Sentiment  string `json:"sentiment"`
}

// DefaultIntentClassification is returned whenever classification fails or
// produces unusable output.
func DefaultIntentClassification() IntentClassification {
	return IntentClassification{
		Intent:     "marketing_fundamentals",
		NextAction: "continue_conversation",
		Sentiment:  "neutral",
	}
}

// CrisisLevel grades the severity of a crisis assessment.
type CrisisLevel string

const (
	CrisisLevelNone     CrisisLevel = "none"
	CrisisLevelLow      CrisisLevel = "low"
	CrisisLevelModerate CrisisLevel = "moderate"
	CrisisLevelHigh     CrisisLevel = "high"
	CrisisLevelSevere   CrisisLevel = "severe"
)

// CrisisAssessment is the outcome of screening one user message for risk
// signals. SuicideRisk or SelfHarmRisk being set, or a severe level, forces
// ImmediateIntervention regardless of the model's own judgment.
type CrisisAssessment struct {
	Level                 CrisisLevel `json:"crisis_level"`
	SuicideRisk           bool        `json:"suicide_risk"`
	SelfHarmRisk          bool        `json:"self_harm_risk"`
	ImmediateIntervention bool        `json:"immediate_intervention_needed"`
	Signals               []string    `json:"signals,omitempty"`
}
