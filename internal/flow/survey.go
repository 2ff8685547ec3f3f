package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/modubiz/ConsultFlow/internal/genai"
	"github.com/modubiz/ConsultFlow/internal/models"
	"github.com/modubiz/ConsultFlow/internal/store"
)

// phq9Questions are the nine screening items, asked in fixed order.
var phq9Questions = [models.PHQ9QuestionCount]string{
	"일을 하는 것에 대한 흥미나 재미가 거의 없었나요?",
	"기분이 가라앉거나, 우울하거나, 희망이 없다고 느꼈나요?",
	"잠들기 어렵거나 자주 깼나요? 혹은 너무 많이 잤나요?",
	"피곤하다고 느끼거나 기운이 거의 없었나요?",
	"식욕이 줄었나요? 혹은 너무 많이 먹었나요?",
	"자신이 실패자라고 느끼거나, 자신과 가족을 실망시켰다고 느꼈나요?",
	"신문을 읽거나 TV를 보는 것과 같은 일상적인 일에 집중하기 어려웠나요?",
	"다른 사람들이 알아챌 정도로 말과 행동이 느려졌나요? 혹은 반대로 너무 안절부절못했나요?",
	"차라리 죽는 것이 낫겠다고 생각하거나, 어떤 식으로든 자신을 해치고 싶다고 생각했나요?",
}

const phq9Options = `0: 전혀 없음
1: 며칠 동안
2: 일주일 이상
3: 거의 매일`

const phq9OfferText = `우울 자가진단(PHQ-9)을 해보시겠어요?
지난 2주 동안의 기분에 대한 9개의 짧은 질문입니다. 약 2~3분 정도 걸려요.
시작하시려면 "네", 원하지 않으시면 "아니요"라고 답해주세요.`

const phq9CancelText = `설문을 중단했어요. 준비가 되면 언제든 다시 시작할 수 있습니다. 지금 기분은 어떠세요?`

// phq9StopPhrases cancel an active survey. This is the only path that moves
// a conversation stage backwards.
var phq9StopPhrases = []string{"그만", "그만할래요", "그만하고 싶어요", "설문 종료", "멈춤"}

var phq9TriggerKeywords = []string{"우울증", "자가진단", "자가 진단", "테스트", "phq", "PHQ", "설문", "진단", "검사", "우울 증상"}

var affirmativeWords = []string{"네", "예", "시작", "좋아요", "응", "그래", "할래요", "해볼게요"}

var declineWords = []string{"아니요", "아니오", "아니", "취소", "싫어", "안 할래", "안할래", "나중에"}

// interpretationFallbacks provide a narrative per severity level when the
// model is unavailable. The score itself is always computed locally.
var interpretationFallbacks = map[int]string{
	1: "검사 결과 우울 증상은 정상 범위에 있어요. 지금처럼 자신의 마음을 잘 돌봐주세요.",
	2: "가벼운 우울 증상이 보여요. 충분한 수면과 가벼운 운동, 가까운 사람과의 대화가 도움이 됩니다.",
	3: "중간 정도의 우울 증상이 있어요. 전문 상담사와 이야기를 나눠보시는 것을 권해드려요.",
	4: "다소 심한 우울 증상이 확인됐어요. 정신건강의학과 또는 전문 상담 기관 방문을 권해드립니다.",
	5: "심한 우울 증상이 확인됐어요. 가능한 한 빨리 전문가의 도움을 받으시길 강력히 권합니다.",
}

// PHQ9Survey runs the screening inside a mental health conversation. The
// score is the plain sum of item responses; the model only writes the
// narrative interpretation.
type PHQ9Survey struct {
	store  store.Store
	client genai.ClientInterface
}

// NewPHQ9Survey creates the survey runner. Both dependencies are optional;
// a nil store skips persistence and a nil client uses fixed interpretations.
func NewPHQ9Survey(st store.Store, client genai.ClientInterface) *PHQ9Survey {
	return &PHQ9Survey{store: st, client: client}
}

// WantsSurvey reports whether the message asks about depression screening.
func WantsSurvey(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range phq9TriggerKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// IsAffirmative reports whether the message accepts an offer.
func IsAffirmative(message string) bool {
	trimmed := strings.TrimSpace(message)
	for _, w := range affirmativeWords {
		if strings.HasPrefix(trimmed, w) {
			return true
		}
	}
	return false
}

// IsDecline reports whether the message declines an offer.
func IsDecline(message string) bool {
	trimmed := strings.TrimSpace(message)
	for _, w := range declineWords {
		if strings.HasPrefix(trimmed, w) {
			return true
		}
	}
	return false
}

// IsStopPhrase reports whether the message cancels an active survey.
func IsStopPhrase(message string) bool {
	trimmed := strings.TrimSpace(message)
	for _, p := range phq9StopPhrases {
		if trimmed == p || strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// ParseAnswerValue extracts a 0..3 response from a chat message.
func ParseAnswerValue(message string) (int, bool) {
	trimmed := strings.TrimSpace(message)
	if v, err := strconv.Atoi(trimmed); err == nil {
		if v >= 0 && v <= 3 {
			return v, true
		}
		return 0, false
	}
	switch {
	case strings.Contains(trimmed, "전혀"):
		return 0, true
	case strings.Contains(trimmed, "며칠"):
		return 1, true
	case strings.Contains(trimmed, "일주일"):
		return 2, true
	case strings.Contains(trimmed, "매일"):
		return 3, true
	}
	// Leading digit, e.g. "2번" or "3이요".
	if len(trimmed) > 0 && trimmed[0] >= '0' && trimmed[0] <= '3' {
		return int(trimmed[0] - '0'), true
	}
	return 0, false
}

// Offer marks the survey as offered and returns the offer text.
func (s *PHQ9Survey) Offer(c *ConversationContext) string {
	c.Survey.Offered = true
	return phq9OfferText
}

// Start begins the screening. The pre-survey stage is remembered so a
// cancel can restore it.
func (s *PHQ9Survey) Start(c *ConversationContext) (string, error) {
	if c.Survey.Active {
		return "", models.ErrSurveyAlreadyActive
	}
	c.PreSurveyStage = c.Stage
	c.Stage = models.StagePHQ9Survey
	c.Survey = PHQ9State{
		Active:    true,
		Offered:   true,
		Index:     0,
		Responses: make([]int, 0, models.PHQ9QuestionCount),
		StartedAt: time.Now(),
	}
	slog.Debug("PHQ9Survey.Start: survey started", "conversationID", c.ConversationID, "previousStage", c.PreSurveyStage)
	return s.questionText(0), nil
}

// Answer records one response. On the ninth answer it completes the
// screening: the score is summed, severity graded, the result persisted and
// the next stage chosen by suicide risk.
func (s *PHQ9Survey) Answer(ctx context.Context, c *ConversationContext, value int) (string, *models.PHQ9Result, error) {
	if !c.Survey.Active {
		return "", nil, models.ErrSurveyNotActive
	}
	if value < 0 || value > 3 {
		return "", nil, models.ErrInvalidSurveyAnswer
	}

	c.Survey.Responses = append(c.Survey.Responses, value)
	c.Survey.Index++

	if c.Survey.Index < models.PHQ9QuestionCount {
		return s.questionText(c.Survey.Index), nil, nil
	}
	return s.complete(ctx, c)
}

// Cancel aborts an active survey and restores the pre-survey stage.
func (s *PHQ9Survey) Cancel(c *ConversationContext) (string, error) {
	if !c.Survey.Active {
		return "", models.ErrSurveyNotActive
	}
	slog.Debug("PHQ9Survey.Cancel: survey cancelled", "conversationID", c.ConversationID, "answered", len(c.Survey.Responses), "restoredStage", c.PreSurveyStage)
	c.Stage = c.PreSurveyStage
	c.Survey = PHQ9State{Offered: true}
	return phq9CancelText, nil
}

// Status reports survey progress for the status endpoint. The current
// question and its answer options are included while the survey is active.
func (s *PHQ9Survey) Status(c *ConversationContext) models.SurveyStatus {
	status := models.SurveyStatus{
		Active:        c.Survey.Active,
		Offered:       c.Survey.Offered,
		Completed:     c.Survey.Completed,
		QuestionIndex: c.Survey.Index,
		QuestionTotal: models.PHQ9QuestionCount,
		Answered:      len(c.Survey.Responses),
	}
	if c.Survey.Active && c.Survey.Index < models.PHQ9QuestionCount {
		status.Question = phq9Questions[c.Survey.Index]
		status.Options = strings.Split(phq9Options, "\n")
	}
	return status
}

func (s *PHQ9Survey) questionText(index int) string {
	return fmt.Sprintf("질문 %d/%d. 지난 2주 동안, %s\n\n%s\n\n숫자로 답해주세요. 중단하시려면 \"그만\"이라고 말씀해주세요.",
		index+1, models.PHQ9QuestionCount, phq9Questions[index], phq9Options)
}

func (s *PHQ9Survey) complete(ctx context.Context, c *ConversationContext) (string, *models.PHQ9Result, error) {
	score := models.PHQ9Score(c.Survey.Responses)
	level := models.PHQ9Severity(score)
	suicideRisk := c.Survey.Responses[models.PHQ9QuestionCount-1] > 0

	result := &models.PHQ9Result{
		UserID:         c.UserID,
		ConversationID: c.ConversationID,
		Responses:      append([]int(nil), c.Survey.Responses...),
		TotalScore:     score,
		SeverityLevel:  level,
		SeverityLabel:  models.PHQ9SeverityLabel(level),
		SuicideRisk:    suicideRisk,
		CompletedAt:    time.Now(),
	}
	result.Interpretation = s.interpret(ctx, result)

	if s.store != nil {
		if err := s.store.SavePHQ9Result(*result); err != nil {
			// Persistence is best effort; the user still gets their result.
			slog.Error("PHQ9Survey.complete: failed to persist result", "error", err, "userID", c.UserID)
		}
	}

	c.Survey.Active = false
	c.Survey.Completed = true
	if suicideRisk {
		c.SuicideRisk = true
		c.ImmediateIntervention = true
		c.CrisisLevel = models.CrisisLevelSevere
		c.Stage = models.StageCrisisEvaluation
	} else {
		c.Stage = models.StageCounseling
	}
	slog.Debug("PHQ9Survey.complete: survey completed", "conversationID", c.ConversationID, "score", score, "level", level, "suicideRisk", suicideRisk)

	reply := fmt.Sprintf("검사가 끝났어요. 총점은 %d점(%s)입니다.\n\n%s", score, result.SeverityLabel, result.Interpretation)
	if suicideRisk {
		reply += "\n\n" + crisisHotlines
	}
	return reply, result, nil
}

// interpret produces the narrative for a completed screening. The model
// never changes the score or severity.
func (s *PHQ9Survey) interpret(ctx context.Context, r *models.PHQ9Result) string {
	fallback := interpretationFallbacks[r.SeverityLevel]
	if s.client == nil {
		return fallback
	}
	system := "당신은 따뜻한 정신건강 상담사입니다. PHQ-9 결과를 받은 사용자에게 2~3문장으로 공감과 권고를 전하세요. 점수나 진단을 바꾸지 마세요."
	user := fmt.Sprintf("총점: %d/27, 심각도: %s", r.TotalScore, r.SeverityLabel)
	text, err := s.client.Generate(ctx, system, user)
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Debug("PHQ9Survey.interpret: falling back to fixed interpretation", "error", err)
		return fallback
	}
	return text
}
