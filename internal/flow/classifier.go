package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modubiz/ConsultFlow/internal/genai"
	"github.com/modubiz/ConsultFlow/internal/models"
)

const classifySystemPrompt = `당신은 마케팅 상담 대화의 의도를 분류하는 도우미입니다.
사용자 메시지를 보고 JSON으로만 응답하세요:
{"intent": "", "next_action": "", "sentiment": ""}
intent: marketing_fundamentals | content_request | strategy_request | information_sharing | off_topic
next_action: continue_conversation | ask_clarification | generate_content | finalize_strategy
sentiment: positive | neutral | negative
JSON 외의 텍스트는 출력하지 마세요.`

// IntentClassifier labels each user message with an intent, a suggested
// next action and a sentiment. It never fails: any model or parse error
// yields the safe default classification.
type IntentClassifier struct {
	client genai.ClientInterface
}

// NewIntentClassifier creates a classifier. A nil client always yields the
// default classification.
func NewIntentClassifier(client genai.ClientInterface) *IntentClassifier {
	return &IntentClassifier{client: client}
}

// Classify labels the message. The returned struct always has every field
// populated.
func (ic *IntentClassifier) Classify(ctx context.Context, message string, stage models.Stage) models.IntentClassification {
	if ic.client == nil {
		return models.DefaultIntentClassification()
	}
	user := fmt.Sprintf("현재 단계: %s\n사용자 메시지: %s", stage, message)
	raw, err := ic.client.Generate(ctx, classifySystemPrompt, user)
	if err != nil {
		slog.Debug("IntentClassifier.Classify: generation failed, using default", "error", err)
		return models.DefaultIntentClassification()
	}
	var parsed models.IntentClassification
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		slog.Debug("IntentClassifier.Classify: strict parse failed, using default", "error", err)
		return models.DefaultIntentClassification()
	}
	// Partial output is as unusable as no output.
	if parsed.Intent == "" || parsed.NextAction == "" || parsed.Sentiment == "" {
		return models.DefaultIntentClassification()
	}
	return parsed
}
