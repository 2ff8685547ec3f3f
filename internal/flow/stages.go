package flow

import (
	"log/slog"

	"github.com/modubiz/ConsultFlow/internal/models"
)

// AdvanceThreshold is the per-stage completion rate required before the
// conversation moves to the next stage.
const AdvanceThreshold = 0.8

// FinalizeThreshold is the weighted overall completion rate at which a
// marketing conversation is considered ready for the final strategy.
const FinalizeThreshold = 0.95

// StagePolicy declares the stage order and, per stage, the required slot
// fields and the weight each stage carries in the overall completion rate.
type StagePolicy struct {
	Order    []models.Stage
	Required map[models.Stage][]string
	Weights  map[models.Stage]float64
}

// MarketingPolicy returns the stage policy for marketing consultations.
func MarketingPolicy() StagePolicy {
	return StagePolicy{
		Order: models.MarketingStageOrder,
		Required: map[models.Stage][]string{
			models.StageInitial:         {"business_type", "product"},
			models.StageGoalSetting:     {"main_goal"},
			models.StageTargetAnalysis:  {"target_audience"},
			models.StageStrategy:        {"budget", "channels"},
			models.StageContentCreation: {"business_type", "product"},
		},
		Weights: map[models.Stage]float64{
			models.StageInitial:         2.0,
			models.StageGoalSetting:     1.5,
			models.StageTargetAnalysis:  1.5,
			models.StageStrategy:        1.0,
			models.StageContentCreation: 0.5,
		},
	}
}

// MentalHealthPolicy returns the stage policy for counseling conversations.
// Counseling stages advance on triggers rather than collected slots, so no
// required fields or weights are declared.
func MentalHealthPolicy() StagePolicy {
	return StagePolicy{Order: models.MentalHealthStageOrder}
}

// StageTracker evaluates stage progress against a policy.
type StageTracker struct {
	policy StagePolicy
}

// NewStageTracker creates a tracker for the given policy.
func NewStageTracker(policy StagePolicy) *StageTracker {
	return &StageTracker{policy: policy}
}

// CompletionRate returns the fraction of the stage's required fields that
// hold a value. Stages with no required fields are complete by definition.
func (t *StageTracker) CompletionRate(stage models.Stage, slots map[string]models.InfoSlot) float64 {
	required := t.policy.Required[stage]
	if len(required) == 0 {
		return 1.0
	}
	filled := 0
	for _, field := range required {
		if _, ok := slots[field]; ok {
			filled++
		}
	}
	return float64(filled) / float64(len(required))
}

// MissingRequired returns the stage's required fields with no value yet,
// in declaration order.
func (t *StageTracker) MissingRequired(stage models.Stage, slots map[string]models.InfoSlot) []string {
	var missing []string
	for _, field := range t.policy.Required[stage] {
		if _, ok := slots[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// OverallCompletionRate returns the weighted completion rate across all
// weighted stages.
func (t *StageTracker) OverallCompletionRate(slots map[string]models.InfoSlot) float64 {
	if len(t.policy.Weights) == 0 {
		return 0
	}
	var sum, total float64
	for stage, weight := range t.policy.Weights {
		sum += weight * t.CompletionRate(stage, slots)
		total += weight
	}
	return sum / total
}

// NextStage returns the stage after the given one in the policy order.
func (t *StageTracker) NextStage(stage models.Stage) (models.Stage, bool) {
	idx := models.StageIndex(t.policy.Order, stage)
	if idx < 0 || idx+1 >= len(t.policy.Order) {
		return stage, false
	}
	return t.policy.Order[idx+1], true
}

// AdvanceIfReady moves the context forward one stage when the current
// stage's completion rate meets the threshold. Stages only move forward
// here; a survey cancel is the sole backwards transition and is handled by
// the survey itself.
func (t *StageTracker) AdvanceIfReady(c *ConversationContext) bool {
	if t.CompletionRate(c.Stage, c.Slots) < AdvanceThreshold {
		return false
	}
	next, ok := t.NextStage(c.Stage)
	if !ok {
		return false
	}
	slog.Debug("StageTracker.AdvanceIfReady: stage advanced", "conversationID", c.ConversationID, "from", c.Stage, "to", next)
	c.Stage = next
	return true
}

// SortedMissing returns missing fields for the current stage plus, when the
// stage is satisfied, the first unmet fields of later stages. At most limit
// fields are returned.
func (t *StageTracker) SortedMissing(c *ConversationContext, limit int) []string {
	missing := t.MissingRequired(c.Stage, c.Slots)
	if len(missing) < limit {
		idx := models.StageIndex(t.policy.Order, c.Stage)
		for i := idx + 1; i < len(t.policy.Order) && len(missing) < limit; i++ {
			for _, field := range t.MissingRequired(t.policy.Order[i], c.Slots) {
				missing = append(missing, field)
				if len(missing) >= limit {
					break
				}
			}
		}
	}
	if len(missing) > limit {
		missing = missing[:limit]
	}
	// Declaration order keeps clarifying questions deterministic; drop the
	// duplicates CONTENT_CREATION shares with INITIAL.
	seen := make(map[string]struct{}, len(missing))
	out := missing[:0]
	for _, f := range missing {
		if _, dup := seen[f]; !dup {
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
