package models

import "time"

// PHQ9QuestionCount is the fixed number of PHQ-9 items.
const PHQ9QuestionCount = 9

// PHQ9MaxScore is the maximum possible PHQ-9 total score.
const PHQ9MaxScore = 27

// PHQ9Result is a completed PHQ-9 screening outcome.
type PHQ9Result struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Responses      []int     `json:"responses"`
	TotalScore     int       `json:"total_score"`
	SeverityLevel  int       `json:"severity_level"`
	SeverityLabel  string    `json:"severity_label"`
	SuicideRisk    bool      `json:"suicide_risk"`
	Interpretation string    `json:"interpretation,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// PHQ9Severity maps a total score to its severity level, 1 through 5.
func PHQ9Severity(score int) int {
	switch {
	case score <= 4:
		return 1
	case score <= 9:
		return 2
	case score <= 14:
		return 3
	case score <= 19:
		return 4
	default:
		return 5
	}
}

// phq9SeverityLabels holds the Korean label for each severity level.
var phq9SeverityLabels = map[int]string{
	1: "정상",
	2: "경미한 우울",
	3: "중등도 우울",
	4: "중등도 심각 우울",
	5: "심각한 우울",
}

// PHQ9SeverityLabel returns the Korean label for a severity level.
func PHQ9SeverityLabel(level int) string {
	if label, ok := phq9SeverityLabels[level]; ok {
		return label
	}
	return phq9SeverityLabels[1]
}

// PHQ9Score sums the item responses into the total score. Responses are
// assumed to be validated to the 0..3 range before this point.
func PHQ9Score(responses []int) int {
	total := 0
	for _, v := range responses {
		total += v
	}
	return total
}
