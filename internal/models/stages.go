package models

// Stage is one phase of a consultation conversation. Stages advance in a
// fixed per-agent order; a survey cancel is the only backwards transition.
type Stage string

// Marketing consultation stages.
const (
	StageInitial         Stage = "INITIAL"
	StageGoalSetting     Stage = "GOAL_SETTING"
	StageTargetAnalysis  Stage = "TARGET_ANALYSIS"
	StageStrategy        Stage = "STRATEGY"
	StageContentCreation Stage = "CONTENT_CREATION"
	StageCompleted       Stage = "COMPLETED"
)

// Mental health counseling stages.
const (
	StageRapportBuilding   Stage = "RAPPORT_BUILDING"
	StageAssessment        Stage = "ASSESSMENT"
	StagePHQ9Survey        Stage = "PHQ9_SURVEY"
	StageCrisisEvaluation  Stage = "CRISIS_EVALUATION"
	StageCounseling        Stage = "COUNSELING"
	StageSafetyPlanning    Stage = "SAFETY_PLANNING"
	StageResourceProvision Stage = "RESOURCE_PROVISION"
	StageFollowUp          Stage = "FOLLOW_UP"
)

// MarketingStageOrder is the canonical forward order of marketing stages.
var MarketingStageOrder = []Stage{
	StageInitial,
	StageGoalSetting,
	StageTargetAnalysis,
	StageStrategy,
	StageContentCreation,
	StageCompleted,
}

// MentalHealthStageOrder is the canonical forward order of counseling stages.
var MentalHealthStageOrder = []Stage{
	StageInitial,
	StageRapportBuilding,
	StageAssessment,
	StagePHQ9Survey,
	StageCrisisEvaluation,
	StageCounseling,
	StageSafetyPlanning,
	StageResourceProvision,
	StageFollowUp,
	StageCompleted,
}

// StageIndex returns the position of stage within order, or -1 when the
// stage is not part of the order.
func StageIndex(order []Stage, stage Stage) int {
	for i, s := range order {
		if s == stage {
			return i
		}
	}
	return -1
}
