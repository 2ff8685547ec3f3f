package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/modubiz/ConsultFlow/internal/genai"
	"github.com/modubiz/ConsultFlow/internal/models"
)

const crisisSystemPrompt = `당신은 정신건강 위기 신호를 평가하는 전문가입니다.
사용자 메시지를 보고 JSON으로만 응답하세요:
{"crisis_level": "none|low|moderate|high|severe", "suicide_risk": false, "self_harm_risk": false, "immediate_intervention_needed": false}
JSON 외의 텍스트는 출력하지 마세요.`

// Crisis hotlines included in every intervention response.
const crisisHotlines = `지금 바로 도움을 받을 수 있는 곳이 있어요:
🚨 긴급 상황: 119
📞 자살예방 상담전화: 1393 (생명의전화, 24시간)
📞 정신건강 위기상담: 1577-0199 (24시간)`

// crisisResponseText is the fixed reply when immediate intervention is needed.
const crisisResponseText = `많이 힘드셨을 것 같아요. 혼자 감당하기 어려운 마음을 이야기해 주셔서 고마워요.
지금 느끼는 고통은 영원하지 않으며, 도움을 받을 수 있습니다.

` + crisisHotlines + `

괜찮으시다면 지금 어떤 상황인지 조금 더 이야기해 주시겠어요? 제가 곁에서 함께 하겠습니다.`

// suicideKeywords and selfHarmKeywords trigger the rule-based screen. The
// rule screen runs on every message and cannot be disabled by model failures.
var suicideKeywords = []string{
	"죽고 싶", "죽고싶", "자살", "죽어버리", "사라지고 싶", "사라지고싶",
	"살기 싫", "살기싫", "죽는 게 낫", "끝내고 싶", "끝내고싶",
}

var selfHarmKeywords = []string{
	"자해", "손목", "베고 싶", "베고싶", "상처를 내", "때리고 싶",
}

// CrisisGate screens every incoming message for risk signals. Rule matches
// and severe assessments force immediate intervention; the model can only
// escalate the rule result, never soften it.
type CrisisGate struct {
	client genai.ClientInterface
}

// NewCrisisGate creates a gate. A nil client means rules only.
func NewCrisisGate(client genai.ClientInterface) *CrisisGate {
	return &CrisisGate{client: client}
}

// Evaluate screens one message. It never returns an error; on model failure
// the rule-based result stands.
func (g *CrisisGate) Evaluate(ctx context.Context, message string) models.CrisisAssessment {
	assessment := screenByRules(message)

	if g.client != nil {
		if llm, ok := g.assessLLM(ctx, message); ok {
			assessment = mergeAssessments(assessment, llm)
		}
	}

	// Forced escalation: any of these flags mandates intervention.
	if assessment.SuicideRisk || assessment.SelfHarmRisk || assessment.Level == models.CrisisLevelSevere {
		assessment.ImmediateIntervention = true
	}
	if assessment.ImmediateIntervention {
		slog.Warn("CrisisGate.Evaluate: immediate intervention required",
			"level", assessment.Level, "suicideRisk", assessment.SuicideRisk, "selfHarmRisk", assessment.SelfHarmRisk)
	}
	return assessment
}

// CrisisResponse returns the fixed intervention reply with hotlines.
func (g *CrisisGate) CrisisResponse() string {
	return crisisResponseText
}

func screenByRules(message string) models.CrisisAssessment {
	var a models.CrisisAssessment
	a.Level = models.CrisisLevelNone
	for _, kw := range suicideKeywords {
		if strings.Contains(message, kw) {
			a.SuicideRisk = true
			a.Level = models.CrisisLevelSevere
			a.Signals = append(a.Signals, kw)
			break
		}
	}
	for _, kw := range selfHarmKeywords {
		if strings.Contains(message, kw) {
			a.SelfHarmRisk = true
			if a.Level == models.CrisisLevelNone {
				a.Level = models.CrisisLevelHigh
			}
			a.Signals = append(a.Signals, kw)
			break
		}
	}
	return a
}

func (g *CrisisGate) assessLLM(ctx context.Context, message string) (models.CrisisAssessment, bool) {
	raw, err := g.client.Generate(ctx, crisisSystemPrompt, message)
	if err != nil {
		slog.Debug("CrisisGate.assessLLM: generation failed, rule result stands", "error", err)
		return models.CrisisAssessment{}, false
	}
	var parsed models.CrisisAssessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		slog.Debug("CrisisGate.assessLLM: strict parse failed, rule result stands", "error", err)
		return models.CrisisAssessment{}, false
	}
	return parsed, true
}

// crisisLevelRank orders levels for the escalate-only merge.
var crisisLevelRank = map[models.CrisisLevel]int{
	models.CrisisLevelNone:     0,
	models.CrisisLevelLow:      1,
	models.CrisisLevelModerate: 2,
	models.CrisisLevelHigh:     3,
	models.CrisisLevelSevere:   4,
}

// mergeAssessments combines the rule screen with a model assessment. Flags
// only ever turn on and the level only ever rises.
func mergeAssessments(rule, llm models.CrisisAssessment) models.CrisisAssessment {
	out := rule
	if crisisLevelRank[llm.Level] > crisisLevelRank[out.Level] {
		out.Level = llm.Level
	}
	out.SuicideRisk = out.SuicideRisk || llm.SuicideRisk
	out.SelfHarmRisk = out.SelfHarmRisk || llm.SelfHarmRisk
	out.ImmediateIntervention = out.ImmediateIntervention || llm.ImmediateIntervention
	out.Signals = append(out.Signals, llm.Signals...)
	return out
}
