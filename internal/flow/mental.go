package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/modubiz/ConsultFlow/internal/genai"
	"github.com/modubiz/ConsultFlow/internal/models"
	"github.com/modubiz/ConsultFlow/internal/store"
)

const counselingSystemPrompt = `당신은 따뜻하고 공감적인 정신건강 상담사입니다.
사용자의 감정을 먼저 인정하고, 판단하지 않으며, 한국어로 부드럽게 응답하세요.
의학적 진단을 내리지 말고, 필요하면 전문 기관 방문을 권하세요. 답변은 3~4문장으로 유지하세요.`

// counselingFallbacks are the fixed replies per stage when no model is
// available.
var counselingFallbacks = map[models.Stage]string{
	models.StageInitial:           "안녕하세요, 찾아와 주셔서 감사해요. 오늘은 어떤 마음으로 오셨나요? 편하게 이야기해 주세요.",
	models.StageRapportBuilding:   "그런 마음이 드셨군요. 이야기해 주셔서 감사해요. 요즘 어떤 일들이 가장 마음을 무겁게 하나요?",
	models.StageAssessment:        "말씀을 들으니 요즘 많이 지치셨을 것 같아요. 이런 기분이 얼마나 지속되고 있는지 여쭤봐도 될까요?",
	models.StageCounseling:        "충분히 힘드실 수 있는 상황이에요. 혼자 버티기보다 이렇게 이야기하는 것만으로도 큰 걸음이에요. 오늘 하루 중 조금이라도 편안했던 순간이 있었나요?",
	models.StageSafetyPlanning:    "지금 안전이 가장 중요해요. 힘든 순간에 연락할 수 있는 사람이나 장소를 함께 정해두면 도움이 됩니다. 떠오르는 사람이 있나요?",
	models.StageResourceProvision: "가까운 정신건강복지센터나 상담 기관을 이용해보시는 것을 권해드려요. 정신건강 위기상담(1577-0199)은 24시간 이용할 수 있어요.",
	models.StageFollowUp:          "지난번보다 조금이라도 나아지셨는지 궁금해요. 요즘은 어떻게 지내고 계세요?",
}

const surveyDeclineReply = "알겠어요, 설문은 하지 않아도 괜찮아요. 원하실 때 언제든 말씀해주세요. 지금 마음은 어떠세요?"

const invalidAnswerReply = "0부터 3까지의 숫자로 답해주세요.\n\n"

// MentalHealthEngine drives counseling conversations: crisis screening on
// every message, the PHQ-9 survey and staged supportive replies.
type MentalHealthEngine struct {
	contexts *ContextManager
	gate     *CrisisGate
	survey   *PHQ9Survey
	client   genai.ClientInterface
	store    store.Store
}

// NewMentalHealthEngine wires a counseling engine. Both store and client
// may be nil; the engine then runs on rules and fixed fallbacks.
func NewMentalHealthEngine(st store.Store, client genai.ClientInterface) *MentalHealthEngine {
	return &MentalHealthEngine{
		contexts: NewContextManager(DefaultContextTTL),
		gate:     NewCrisisGate(client),
		survey:   NewPHQ9Survey(st, client),
		client:   client,
		store:    st,
	}
}

// Close stops the background context eviction.
func (e *MentalHealthEngine) Close() {
	e.contexts.Stop()
}

// Stats reports live conversation counts for the status endpoint.
func (e *MentalHealthEngine) Stats() models.EngineStats {
	stats := models.EngineStats{ActiveConversations: e.contexts.Len()}
	e.contexts.Range(func(c *ConversationContext) {
		c.Lock()
		if c.ImmediateIntervention {
			stats.CrisisConversations++
		}
		if c.Survey.Active {
			stats.ActiveSurveys++
		}
		c.Unlock()
	})
	return stats
}

// HandleMessage processes one counseling turn. Crisis screening runs before
// anything else, including survey answers.
func (e *MentalHealthEngine) HandleMessage(ctx context.Context, userID, conversationID, message string) (*models.QueryResult, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	c := e.contexts.GetOrCreate(userID, conversationID, models.AgentMentalHealth)
	c.Lock()
	defer c.Unlock()

	e.persistMessage(c, "user", message)
	c.AppendHistory("user", message)

	assessment := e.gate.Evaluate(ctx, message)
	if assessment.ImmediateIntervention {
		reply := e.handleCrisis(c, assessment)
		c.AppendHistory("assistant", reply)
		e.persistMessage(c, "assistant", reply)
		return e.buildResult(c, reply, nil), nil
	}

	var reply string
	var result *models.PHQ9Result
	switch {
	case c.Survey.Active:
		reply, result = e.handleSurveyTurn(ctx, c, message)
	case WantsSurvey(message):
		reply = e.survey.Offer(c)
	case c.Survey.Offered && !c.Survey.Completed && IsAffirmative(message):
		started, err := e.survey.Start(c)
		if err != nil {
			reply = e.counsel(ctx, c)
		} else {
			reply = started
		}
	case c.Survey.Offered && !c.Survey.Completed && IsDecline(message):
		c.Survey.Offered = false
		reply = surveyDeclineReply
	default:
		e.advanceCounselingStage(c)
		if c.Stage == models.StageAssessment && !c.Survey.Offered && !c.Survey.Completed {
			// Assessment leads into the screening before further counseling.
			reply = e.survey.Offer(c)
		} else {
			reply = e.counsel(ctx, c)
		}
	}

	c.AppendHistory("assistant", reply)
	e.persistMessage(c, "assistant", reply)
	return e.buildResult(c, reply, result), nil
}

// StartSurvey begins a PHQ-9 screening via the dedicated endpoint.
func (e *MentalHealthEngine) StartSurvey(userID, conversationID string) (string, error) {
	c := e.contexts.GetOrCreate(userID, conversationID, models.AgentMentalHealth)
	c.Lock()
	defer c.Unlock()
	return e.survey.Start(c)
}

// AnswerSurvey records one answer via the dedicated endpoint.
func (e *MentalHealthEngine) AnswerSurvey(ctx context.Context, conversationID string, value int) (string, *models.PHQ9Result, error) {
	c, ok := e.contexts.Get(conversationID)
	if !ok {
		return "", nil, models.ErrConversationNotFound
	}
	c.Lock()
	defer c.Unlock()
	return e.survey.Answer(ctx, c, value)
}

// SurveyStatus reports PHQ-9 progress for a conversation.
func (e *MentalHealthEngine) SurveyStatus(conversationID string) (*models.SurveyStatus, error) {
	c, ok := e.contexts.Get(conversationID)
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	c.Lock()
	defer c.Unlock()
	status := e.survey.Status(c)
	return &status, nil
}

// GetStatus returns a snapshot of the conversation.
func (e *MentalHealthEngine) GetStatus(conversationID string) (*models.ConversationStatus, error) {
	c, ok := e.contexts.Get(conversationID)
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	c.Lock()
	defer c.Unlock()
	status := e.survey.Status(c)
	return &models.ConversationStatus{
		ConversationID:        c.ConversationID,
		UserID:                c.UserID,
		AgentType:             c.AgentType,
		Stage:                 c.Stage,
		CrisisLevel:           string(c.CrisisLevel),
		SuicideRisk:           c.SuicideRisk,
		ImmediateIntervention: c.ImmediateIntervention,
		Survey:                &status,
	}, nil
}

// Reset discards the conversation state. Crisis-protected conversations
// refuse the reset so the intervention context is never lost.
func (e *MentalHealthEngine) Reset(conversationID string) error {
	c, ok := e.contexts.Get(conversationID)
	if !ok {
		return models.ErrConversationNotFound
	}
	c.Lock()
	protected := c.ImmediateIntervention
	c.Unlock()
	if protected {
		slog.Warn("MentalHealthEngine.Reset: refused for crisis-protected conversation", "conversationID", conversationID)
		return models.ErrConversationLocked
	}
	e.contexts.Delete(conversationID)
	return nil
}

// handleCrisis applies a forced intervention: flags are set, the stage moves
// to crisis evaluation and any active survey is cancelled.
func (e *MentalHealthEngine) handleCrisis(c *ConversationContext, a models.CrisisAssessment) string {
	c.CrisisLevel = a.Level
	c.SuicideRisk = c.SuicideRisk || a.SuicideRisk
	c.SelfHarmRisk = c.SelfHarmRisk || a.SelfHarmRisk
	c.ImmediateIntervention = true
	if c.Survey.Active {
		c.Survey = PHQ9State{Offered: true}
	}
	if models.StageIndex(models.MentalHealthStageOrder, c.Stage) < models.StageIndex(models.MentalHealthStageOrder, models.StageCrisisEvaluation) {
		c.Stage = models.StageCrisisEvaluation
	}
	slog.Warn("MentalHealthEngine.handleCrisis: intervention response issued", "conversationID", c.ConversationID, "level", a.Level)
	return e.gate.CrisisResponse()
}

func (e *MentalHealthEngine) handleSurveyTurn(ctx context.Context, c *ConversationContext, message string) (string, *models.PHQ9Result) {
	if IsStopPhrase(message) {
		reply, err := e.survey.Cancel(c)
		if err != nil {
			return e.counsel(ctx, c), nil
		}
		return reply, nil
	}
	value, ok := ParseAnswerValue(message)
	if !ok {
		return invalidAnswerReply + e.survey.questionText(c.Survey.Index), nil
	}
	reply, result, err := e.survey.Answer(ctx, c, value)
	if err != nil {
		return invalidAnswerReply + e.survey.questionText(c.Survey.Index), nil
	}
	return reply, result
}

// advanceCounselingStage moves the conversation through the supportive
// stages on simple turn-count and flag triggers. Stages only move forward.
// COUNSELING has no automatic exit and COMPLETED is never entered by the
// chat flow; ongoing support stays open until the conversation is reset or
// evicted.
func (e *MentalHealthEngine) advanceCounselingStage(c *ConversationContext) {
	switch c.Stage {
	case models.StageInitial:
		c.Stage = models.StageRapportBuilding
	case models.StageRapportBuilding:
		if c.UserTurnCount() >= 3 {
			c.Stage = models.StageAssessment
		}
	case models.StageCrisisEvaluation:
		// The user responded after the intervention reply.
		c.Stage = models.StageSafetyPlanning
	case models.StageSafetyPlanning:
		c.Stage = models.StageResourceProvision
	case models.StageResourceProvision:
		// Resources were delivered last turn; check in on the user.
		c.Stage = models.StageFollowUp
	}
}

func (e *MentalHealthEngine) counsel(ctx context.Context, c *ConversationContext) string {
	fallback, ok := counselingFallbacks[c.Stage]
	if !ok {
		fallback = counselingFallbacks[models.StageCounseling]
	}
	if e.client == nil {
		return fallback
	}
	msgs := []genai.ChatMessage{{Role: "system", Content: counselingSystemPrompt + "\n현재 상담 단계: " + string(c.Stage)}}
	for _, h := range c.History {
		role := "user"
		if h.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, genai.ChatMessage{Role: role, Content: h.Content})
	}
	reply, err := e.client.GenerateWithMessages(ctx, msgs)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Debug("MentalHealthEngine.counsel: generation failed, using fallback", "error", err)
		return fallback
	}
	return reply
}

// recommendedPersona selects the counseling persona for the response based
// on the conversation's risk state.
func recommendedPersona(c *ConversationContext) string {
	switch {
	case c.ImmediateIntervention:
		return "crisis_counselor"
	case c.SuicideRisk || c.SelfHarmRisk || c.Survey.Active:
		return "counselor"
	default:
		return "common"
	}
}

func (e *MentalHealthEngine) buildResult(c *ConversationContext, reply string, result *models.PHQ9Result) *models.QueryResult {
	out := &models.QueryResult{
		ConversationID:     c.ConversationID,
		UserID:             c.UserID,
		Answer:             reply,
		Stage:              c.Stage,
		RiskLevel:          string(c.CrisisLevel),
		Persona:            recommendedPersona(c),
		SuicideRisk:        c.SuicideRisk,
		CrisisIntervention: c.ImmediateIntervention,
		SurveyActive:       c.Survey.Active,
		SurveyCompleted:    c.Survey.Completed,
	}
	if result != nil {
		score := result.TotalScore
		out.SurveyScore = &score
	}
	return out
}

// persistMessage stores a turn when a store is configured. Failures are
// logged and never break the conversation.
func (e *MentalHealthEngine) persistMessage(c *ConversationContext, role, content string) {
	if e.store == nil {
		return
	}
	msg := models.Message{
		ID:             ulid.Make().String(),
		ConversationID: c.ConversationID,
		Role:           role,
		AgentType:      c.AgentType,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := e.store.AddMessage(msg); err != nil {
		slog.Error("MentalHealthEngine.persistMessage: failed to store message", "error", err, "conversationID", c.ConversationID)
	}
}
