package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modubiz/ConsultFlow/internal/models"
	"github.com/modubiz/ConsultFlow/internal/store"
)

func startedSurvey(t *testing.T) (*PHQ9Survey, *ConversationContext) {
	t.Helper()
	s := NewPHQ9Survey(store.NewInMemoryStore(), nil)
	c := NewConversationContext("user-1", "conv-1", models.AgentMentalHealth)
	c.Stage = models.StageAssessment
	if _, err := s.Start(c); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return s, c
}

func answerAll(t *testing.T, s *PHQ9Survey, c *ConversationContext, values []int) *models.PHQ9Result {
	t.Helper()
	var result *models.PHQ9Result
	for i, v := range values {
		reply, r, err := s.Answer(context.Background(), c, v)
		if err != nil {
			t.Fatalf("Answer %d failed: %v", i, err)
		}
		if reply == "" {
			t.Fatalf("Answer %d returned empty reply", i)
		}
		result = r
	}
	return result
}

func TestSurveyScoringAndSeverity(t *testing.T) {
	cases := []struct {
		name      string
		responses []int
		score     int
		level     int
		label     string
	}{
		{"minimal", []int{0, 0, 1, 0, 1, 0, 1, 0, 0}, 3, 1, "정상"},
		{"mild", []int{1, 1, 1, 1, 1, 1, 1, 0, 0}, 7, 2, "경미한 우울"},
		{"moderate", []int{2, 2, 2, 2, 2, 1, 1, 0, 0}, 12, 3, "중등도 우울"},
		{"moderately severe", []int{2, 2, 2, 2, 2, 2, 2, 3, 0}, 17, 4, "중등도 심각 우울"},
		{"severe", []int{3, 3, 3, 3, 3, 3, 3, 3, 0}, 24, 5, "심각한 우울"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, c := startedSurvey(t)
			result := answerAll(t, s, c, tc.responses)
			if result == nil {
				t.Fatal("expected a result after nine answers")
			}
			if result.TotalScore != tc.score {
				t.Errorf("expected score %d, got %d", tc.score, result.TotalScore)
			}
			if result.SeverityLevel != tc.level {
				t.Errorf("expected level %d, got %d", tc.level, result.SeverityLevel)
			}
			if result.SeverityLabel != tc.label {
				t.Errorf("expected label %q, got %q", tc.label, result.SeverityLabel)
			}
			if result.SuicideRisk {
				t.Error("expected no suicide risk with item 9 at zero")
			}
			if c.Stage != models.StageCounseling {
				t.Errorf("expected COUNSELING after completion, got %s", c.Stage)
			}
		})
	}
}

func TestSurveyItemNineForcesCrisisPath(t *testing.T) {
	s, c := startedSurvey(t)
	result := answerAll(t, s, c, []int{0, 0, 0, 0, 0, 0, 0, 0, 3})
	if result == nil {
		t.Fatal("expected a result")
	}
	if !result.SuicideRisk {
		t.Error("expected suicide risk with item 9 above zero")
	}
	if !c.ImmediateIntervention || !c.SuicideRisk {
		t.Error("expected crisis flags set on the conversation")
	}
	if c.Stage != models.StageCrisisEvaluation {
		t.Errorf("expected CRISIS_EVALUATION, got %s", c.Stage)
	}
	// Severity still follows the plain sum.
	if result.TotalScore != 3 || result.SeverityLevel != 1 {
		t.Errorf("expected score 3 level 1, got score %d level %d", result.TotalScore, result.SeverityLevel)
	}
}

func TestSurveyAnswerBounds(t *testing.T) {
	s, c := startedSurvey(t)
	for _, v := range []int{-1, 4, 10} {
		if _, _, err := s.Answer(context.Background(), c, v); !errors.Is(err, models.ErrInvalidSurveyAnswer) {
			t.Errorf("expected ErrInvalidSurveyAnswer for %d, got %v", v, err)
		}
	}
	if len(c.Survey.Responses) != 0 {
		t.Errorf("expected no responses recorded after invalid answers, got %d", len(c.Survey.Responses))
	}
}

func TestSurveyCancelRestoresStage(t *testing.T) {
	s, c := startedSurvey(t)
	if c.Stage != models.StagePHQ9Survey {
		t.Fatalf("expected PHQ9_SURVEY while active, got %s", c.Stage)
	}

	// Answer a few, then cancel mid-survey.
	answerPartial := []int{1, 2, 0}
	for _, v := range answerPartial {
		if _, _, err := s.Answer(context.Background(), c, v); err != nil {
			t.Fatalf("Answer failed: %v", err)
		}
	}

	reply, err := s.Cancel(c)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if reply == "" {
		t.Error("expected a cancel reply")
	}
	if c.Stage != models.StageAssessment {
		t.Errorf("expected pre-survey stage restored, got %s", c.Stage)
	}
	if c.Survey.Active {
		t.Error("expected survey inactive after cancel")
	}
	if len(c.Survey.Responses) != 0 {
		t.Error("expected responses discarded after cancel")
	}
}

func TestSurveyLifecycleErrors(t *testing.T) {
	s := NewPHQ9Survey(nil, nil)
	c := NewConversationContext("user-1", "conv-1", models.AgentMentalHealth)

	if _, _, err := s.Answer(context.Background(), c, 1); !errors.Is(err, models.ErrSurveyNotActive) {
		t.Errorf("expected ErrSurveyNotActive before start, got %v", err)
	}
	if _, err := s.Cancel(c); !errors.Is(err, models.ErrSurveyNotActive) {
		t.Errorf("expected ErrSurveyNotActive on cancel before start, got %v", err)
	}

	if _, err := s.Start(c); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := s.Start(c); !errors.Is(err, models.ErrSurveyAlreadyActive) {
		t.Errorf("expected ErrSurveyAlreadyActive on double start, got %v", err)
	}
}

func TestSurveyPersistsResult(t *testing.T) {
	st := store.NewInMemoryStore()
	s := NewPHQ9Survey(st, nil)
	c := NewConversationContext("user-1", "conv-1", models.AgentMentalHealth)
	if _, err := s.Start(c); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	answerAll(t, s, c, []int{2, 2, 2, 2, 2, 2, 2, 2, 2})

	saved, err := st.GetLatestPHQ9Result("user-1")
	if err != nil {
		t.Fatalf("expected persisted result, got %v", err)
	}
	if saved.TotalScore != 18 || saved.SeverityLevel != 4 {
		t.Errorf("expected persisted score 18 level 4, got %d/%d", saved.TotalScore, saved.SeverityLevel)
	}
	if !saved.SuicideRisk {
		t.Error("expected persisted suicide risk with item 9 at 2")
	}
}

func TestParseAnswerValue(t *testing.T) {
	cases := []struct {
		in    string
		value int
		ok    bool
	}{
		{"0", 0, true},
		{"3", 3, true},
		{" 2 ", 2, true},
		{"2번", 2, true},
		{"전혀 없었어요", 0, true},
		{"며칠 동안 그랬어요", 1, true},
		{"거의 매일이요", 3, true},
		{"4", 0, false},
		{"-1", 0, false},
		{"글쎄요", 0, false},
	}
	for _, tc := range cases {
		v, ok := ParseAnswerValue(tc.in)
		if ok != tc.ok || (ok && v != tc.value) {
			t.Errorf("ParseAnswerValue(%q) = (%d, %v), want (%d, %v)", tc.in, v, ok, tc.value, tc.ok)
		}
	}
}

func TestSurveyTriggerAndStopPhrases(t *testing.T) {
	if !WantsSurvey("우울증 자가진단 해보고 싶어요") {
		t.Error("expected survey trigger on 자가진단")
	}
	if !WantsSurvey("PHQ 검사 받을 수 있나요") {
		t.Error("expected survey trigger on PHQ")
	}
	if WantsSurvey("오늘 날씨가 좋네요") {
		t.Error("unexpected survey trigger")
	}
	for _, p := range []string{"그만", "그만할래요", "그만하고 싶어요", "설문 종료", "멈춤"} {
		if !IsStopPhrase(p) {
			t.Errorf("expected stop phrase %q to cancel", p)
		}
	}
	if IsStopPhrase("계속할게요") {
		t.Error("unexpected stop phrase match")
	}
}

func TestSurveyQuestionTextIsSequential(t *testing.T) {
	s, c := startedSurvey(t)
	for i := 0; i < models.PHQ9QuestionCount-1; i++ {
		reply, _, err := s.Answer(context.Background(), c, 0)
		if err != nil {
			t.Fatalf("Answer failed: %v", err)
		}
		if i < models.PHQ9QuestionCount-2 && !strings.Contains(reply, "질문") {
			t.Errorf("expected next question text, got %q", reply)
		}
	}
}
